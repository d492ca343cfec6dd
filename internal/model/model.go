package model

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Profile is the authenticated identity the policy engine acts on behalf of.
// It is immutable from the engine's perspective; it changes only via
// sign-in and sign-out at the identity provider.
type Profile struct {
	ID   string
	Name string
	Role Role
}

type LockerStatus string

const (
	LockerLocked   LockerStatus = "locked"
	LockerUnlocked LockerStatus = "unlocked"
)

type Locker struct {
	ID       string       `json:"id"`
	Location string       `json:"location"`
	Status   LockerStatus `json:"status"`
}

// DeskMode is a pure function of the shared exam-mode flag. It is never
// stored or set independently.
type DeskMode string

const (
	DeskModeNormal DeskMode = "normal"
	DeskModeExam   DeskMode = "exam"
)

func DeskModeFor(examMode bool) DeskMode {
	if examMode {
		return DeskModeExam
	}
	return DeskModeNormal
}

// Action is the closed audit vocabulary. Codes are stable and self-describing:
// downstream renderers key off substrings (e.g. "BLOCKED" implies a denial),
// so a code is never reused for a different semantic.
type Action string

const (
	ActionLogin           Action = "LOGIN"
	ActionLogout          Action = "LOGOUT"
	ActionLock            Action = "LOCK"
	ActionUnlock          Action = "UNLOCK"
	ActionLockAll         Action = "LOCK_ALL"
	ActionResearchAccess  Action = "RESEARCH_ACCESS"
	ActionResearchBlocked Action = "RESEARCH_BLOCKED"
	ActionExamAction      Action = "EXAM_ACTION"
	ActionExamModeOn      Action = "EXAM_MODE_ON"
	ActionExamModeOff     Action = "EXAM_MODE_OFF"
)

// LogEntry is an append-only audit record. Once accepted by the store it is
// never mutated or deleted.
type LogEntry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Detail    string    `json:"detail"`
	UserName  string    `json:"userName"`
	UserRole  Role      `json:"userRole"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationSuccess NotificationType = "success"
)

// Notification is a transient, session-local event. It is never persisted
// and never synchronized across sessions.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
}
