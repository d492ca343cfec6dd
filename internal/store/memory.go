package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"deskpanel/internal/model"
)

// Memory is the in-process Store used for single-instance deployments and
// tests. LockAll runs under the write lock, so a concurrent read observes
// either the fully-pre or fully-post state, never a partial bulk update.
type Memory struct {
	mu       sync.RWMutex
	lockers  map[string]model.Locker
	order    []string
	examMode bool
	logs     []model.LogEntry // newest-first
	hub      *Hub
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		lockers: make(map[string]model.Locker),
		hub:     NewHub(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Lockers(_ context.Context) ([]model.Locker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Locker, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.lockers[id])
	}
	return out, nil
}

func (m *Memory) ExamMode(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.examMode, nil
}

func (m *Memory) Logs(_ context.Context, limit int) ([]model.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.logs) {
		limit = len(m.logs)
	}
	out := make([]model.LogEntry, limit)
	copy(out, m.logs[:limit])
	return out, nil
}

func (m *Memory) Lock(_ context.Context, id string) error {
	return m.setStatus(id, model.LockerLocked)
}

func (m *Memory) Unlock(_ context.Context, id string) error {
	return m.setStatus(id, model.LockerUnlocked)
}

func (m *Memory) Toggle(_ context.Context, id string) (model.LockerStatus, error) {
	m.mu.Lock()
	locker, ok := m.lockers[id]
	if !ok {
		m.mu.Unlock()
		return "", ErrNotFound
	}
	if locker.Status == model.LockerLocked {
		locker.Status = model.LockerUnlocked
	} else {
		locker.Status = model.LockerLocked
	}
	m.lockers[id] = locker
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLockers})
	return locker.Status, nil
}

func (m *Memory) LockAll(_ context.Context) error {
	m.mu.Lock()
	for id, locker := range m.lockers {
		locker.Status = model.LockerLocked
		m.lockers[id] = locker
	}
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLockers})
	return nil
}

func (m *Memory) ToggleExamMode(_ context.Context) (bool, error) {
	m.mu.Lock()
	m.examMode = !m.examMode
	value := m.examMode
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventExamMode})
	return value, nil
}

func (m *Memory) AddLocker(_ context.Context, fields LockerFields) (model.Locker, error) {
	locker := model.Locker{
		ID:       uuid.NewString(),
		Location: fields.Location,
		Status:   model.LockerUnlocked,
	}

	m.mu.Lock()
	m.lockers[locker.ID] = locker
	m.order = append(m.order, locker.ID)
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLockers})
	return locker, nil
}

func (m *Memory) UpdateLocker(_ context.Context, id string, update LockerUpdate) error {
	m.mu.Lock()
	locker, ok := m.lockers[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if update.Location != nil {
		locker.Location = *update.Location
	}
	if update.Status != nil {
		locker.Status = *update.Status
	}
	m.lockers[id] = locker
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLockers})
	return nil
}

func (m *Memory) DeleteLocker(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.lockers[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.lockers, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLockers})
	return nil
}

func (m *Memory) AppendLog(_ context.Context, entry model.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}

	m.mu.Lock()
	m.logs = append([]model.LogEntry{entry}, m.logs...)
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLog})
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) <-chan Event {
	return m.hub.Subscribe(ctx)
}

// EventHub exposes the fan-out hub so a cross-instance bridge can inject
// remote events.
func (m *Memory) EventHub() *Hub {
	return m.hub
}

func (m *Memory) setStatus(id string, status model.LockerStatus) error {
	m.mu.Lock()
	locker, ok := m.lockers[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	locker.Status = status
	m.lockers[id] = locker
	m.mu.Unlock()

	m.hub.Publish(Event{Kind: EventLockers})
	return nil
}
