package store

import (
	"context"
	"errors"
	"time"

	"deskpanel/internal/model"
)

// ErrNotFound is returned when a locker id selects no locker.
var ErrNotFound = errors.New("locker not found")

type EventKind string

const (
	EventLockers  EventKind = "lockers"
	EventExamMode EventKind = "exam_mode"
	EventLog      EventKind = "log"
)

// Event signals that a slice of shared state changed. Subscribers re-read
// the store rather than trusting a payload snapshot; propagation to other
// sessions is eventual.
type Event struct {
	Kind   EventKind `json:"kind"`
	At     time.Time `json:"at"`
	Origin string    `json:"origin,omitempty"`
}

// LockerFields carries the caller-supplied attributes of a new locker. The
// store assigns the id and the initial status.
type LockerFields struct {
	Location string
}

// LockerUpdate is a partial update; nil fields are left unchanged.
type LockerUpdate struct {
	Location *string
	Status   *model.LockerStatus
}

// Store is the authoritative holder of lockers, the shared exam-mode flag
// and the append-only audit log. All mutations may fail and failures are
// never swallowed. The engine holds no copy of this state; every decision
// reads the live value.
type Store interface {
	Lockers(ctx context.Context) ([]model.Locker, error)
	ExamMode(ctx context.Context) (bool, error)
	Logs(ctx context.Context, limit int) ([]model.LogEntry, error)

	Lock(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string) (model.LockerStatus, error)
	LockAll(ctx context.Context) error
	ToggleExamMode(ctx context.Context) (bool, error)

	AddLocker(ctx context.Context, fields LockerFields) (model.Locker, error)
	UpdateLocker(ctx context.Context, id string, update LockerUpdate) error
	DeleteLocker(ctx context.Context, id string) error

	AppendLog(ctx context.Context, entry model.LogEntry) error

	Subscribe(ctx context.Context) <-chan Event
}
