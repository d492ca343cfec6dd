package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskpanel/internal/identity"
	"deskpanel/internal/ids"
	"deskpanel/internal/model"
	"deskpanel/internal/notify"
	"deskpanel/internal/obs"
	"deskpanel/internal/store"
)

// User-facing outcome messages. Denials and unauthenticated attempts are
// distinguishable fixed strings; backend failures stay generic so internal
// detail never leaks.
const (
	msgMustLogIn       = "You must be logged in."
	msgResearchBlocked = "Research access is blocked during exam mode."
	msgResearchGranted = "Research access granted."
	msgExamAction      = "Exam action recorded."
	msgAdminRequired   = "Administrator access required."
	msgBackendError    = "Something went wrong. Please try again."
)

// Engine gates every state-changing request through policy, delegates the
// approved mutation to the locker store, and synthesizes an audit entry plus
// an optional notification. It holds no copy of shared state: every decision
// reads the live exam-mode value from the store.
type Engine struct {
	store            store.Store
	identity         identity.Provider
	notifications    *notify.Registry
	requireAdminCRUD bool
	now              func() time.Time
}

type Option func(*Engine)

// WithAdminCRUDGate controls whether locker add/update/delete require the
// admin role. The observed original left these ungated; the gate is explicit
// and configurable here rather than silently omitted.
func WithAdminCRUDGate(enabled bool) Option {
	return func(e *Engine) { e.requireAdminCRUD = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(st store.Store, idp identity.Provider, notifications *notify.Registry, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("engine: store is required")
	}
	if idp == nil {
		return nil, errors.New("engine: identity provider is required")
	}
	if notifications == nil {
		notifications = notify.NewRegistry()
	}
	e := &Engine{
		store:            st,
		identity:         idp,
		notifications:    notifications,
		requireAdminCRUD: true,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Notifications() *notify.Registry {
	return e.notifications
}

// DeskMode derives the operating mode from the live exam-mode flag. It is
// never stored: exam iff the flag is set, normal otherwise.
func (e *Engine) DeskMode(ctx context.Context) (model.DeskMode, error) {
	examMode, err := e.store.ExamMode(ctx)
	if err != nil {
		return "", err
	}
	return model.DeskModeFor(examMode), nil
}

// RecordLogin audits session establishment for the current profile.
func (e *Engine) RecordLogin(ctx context.Context) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if err := e.appendAudit(ctx, profile, model.ActionLogin, "Signed in to the desk panel"); err != nil {
		return backendError(err)
	}
	return ok("Signed in.")
}

// LockLocker, UnlockLocker and ToggleLocker operate a single locker. No
// exam-mode restriction applies: operating one locker is a facilities
// action, not a content-access action. Failed mutations propagate and are
// not audited.
func (e *Engine) LockLocker(ctx context.Context, id string) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if err := e.store.Lock(ctx, id); err != nil {
		return backendError(err)
	}
	if err := e.appendAudit(ctx, profile, model.ActionLock, fmt.Sprintf("Locked locker %s", id)); err != nil {
		return backendError(err)
	}
	return ok("Locker locked.")
}

func (e *Engine) UnlockLocker(ctx context.Context, id string) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if err := e.store.Unlock(ctx, id); err != nil {
		return backendError(err)
	}
	if err := e.appendAudit(ctx, profile, model.ActionUnlock, fmt.Sprintf("Unlocked locker %s", id)); err != nil {
		return backendError(err)
	}
	return ok("Locker unlocked.")
}

func (e *Engine) ToggleLocker(ctx context.Context, id string) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	status, err := e.store.Toggle(ctx, id)
	if err != nil {
		return backendError(err)
	}
	action := model.ActionUnlock
	detail := fmt.Sprintf("Unlocked locker %s", id)
	message := "Locker unlocked."
	if status == model.LockerLocked {
		action = model.ActionLock
		detail = fmt.Sprintf("Locked locker %s", id)
		message = "Locker locked."
	}
	if err := e.appendAudit(ctx, profile, action, detail); err != nil {
		return backendError(err)
	}
	return ok(message)
}

// LockAllLockers sets every locker to locked as one semantic action.
func (e *Engine) LockAllLockers(ctx context.Context) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if err := e.store.LockAll(ctx); err != nil {
		return backendError(err)
	}
	if err := e.appendAudit(ctx, profile, model.ActionLockAll, "Locked all lockers"); err != nil {
		return backendError(err)
	}
	e.notifications.For(profile.ID).Push(model.NotificationInfo, "Lockers", "All lockers have been locked.")
	return ok("All lockers locked.")
}

// ToggleExamMode flips the shared exam-mode flag. It is the single authority
// for mode changes; the desk mode re-derives from the new value.
func (e *Engine) ToggleExamMode(ctx context.Context) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	examMode, err := e.store.ToggleExamMode(ctx)
	if err != nil {
		return backendError(err)
	}
	action := model.ActionExamModeOff
	detail := "Exam mode disabled"
	if examMode {
		action = model.ActionExamModeOn
		detail = "Exam mode enabled"
	}
	if err := e.appendAudit(ctx, profile, action, detail); err != nil {
		return backendError(err)
	}
	if examMode {
		e.notifications.For(profile.ID).Push(model.NotificationWarning, "Exam mode", "Exam mode is on. Research access is blocked.")
		return ok("Exam mode enabled.")
	}
	e.notifications.For(profile.ID).Push(model.NotificationInfo, "Exam mode", "Exam mode is off.")
	return ok("Exam mode disabled.")
}

// PerformResearch is the policy decision point. The decision reads the
// current exam-mode value on every call; a session that observes exam mode
// begin mid-session starts denying immediately. Both branches are audited.
func (e *Engine) PerformResearch(ctx context.Context) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	examMode, err := e.store.ExamMode(ctx)
	if err != nil {
		return backendError(err)
	}
	if examMode {
		if err := e.appendAudit(ctx, profile, model.ActionResearchBlocked, "Attempted research access during exam mode"); err != nil {
			return backendError(err)
		}
		e.notifications.For(profile.ID).Push(model.NotificationWarning, "Research blocked", msgResearchBlocked)
		return denied(msgResearchBlocked)
	}
	if err := e.appendAudit(ctx, profile, model.ActionResearchAccess, "Accessed research resources"); err != nil {
		return backendError(err)
	}
	return ok(msgResearchGranted)
}

// PerformExamAction is permitted regardless of exam mode: exam mode exists
// to restrict non-exam activity, not exam activity itself.
func (e *Engine) PerformExamAction(ctx context.Context) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if err := e.appendAudit(ctx, profile, model.ActionExamAction, "Performed an exam action"); err != nil {
		return backendError(err)
	}
	return ok(msgExamAction)
}

// Logout audits the sign-out before invoking the identity provider, so the
// log reflects intent even if sign-out itself errors.
func (e *Engine) Logout(ctx context.Context) Result {
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if err := e.appendAudit(ctx, profile, model.ActionLogout, "Signed out of the desk panel"); err != nil {
		return backendError(err)
	}
	if err := e.identity.SignOut(ctx); err != nil {
		return backendError(err)
	}
	return ok("Signed out.")
}

// Locker CRUD. Not part of the audit vocabulary; gated by role when the
// admin gate is enabled.
func (e *Engine) AddLocker(ctx context.Context, fields store.LockerFields) (model.Locker, Result) {
	if res := e.requireCRUDAccess(ctx); !res.Success() {
		return model.Locker{}, res
	}
	locker, err := e.store.AddLocker(ctx, fields)
	if err != nil {
		return model.Locker{}, backendError(err)
	}
	return locker, ok("Locker added.")
}

func (e *Engine) UpdateLocker(ctx context.Context, id string, update store.LockerUpdate) Result {
	if res := e.requireCRUDAccess(ctx); !res.Success() {
		return res
	}
	if err := e.store.UpdateLocker(ctx, id, update); err != nil {
		return backendError(err)
	}
	return ok("Locker updated.")
}

func (e *Engine) DeleteLocker(ctx context.Context, id string) Result {
	if res := e.requireCRUDAccess(ctx); !res.Success() {
		return res
	}
	if err := e.store.DeleteLocker(ctx, id); err != nil {
		return backendError(err)
	}
	return ok("Locker deleted.")
}

func (e *Engine) requireProfile(ctx context.Context) (*model.Profile, Result) {
	profile, err := e.identity.Profile(ctx)
	if err != nil {
		return nil, backendError(err)
	}
	if profile == nil {
		return nil, unauthenticated()
	}
	return profile, Result{Status: StatusOK}
}

func (e *Engine) requireCRUDAccess(ctx context.Context) Result {
	if !e.requireAdminCRUD {
		return Result{Status: StatusOK}
	}
	profile, res := e.requireProfile(ctx)
	if !res.Success() {
		return res
	}
	if profile.Role != model.RoleAdmin {
		return denied(msgAdminRequired)
	}
	return Result{Status: StatusOK}
}

func (e *Engine) appendAudit(ctx context.Context, profile *model.Profile, action model.Action, detail string) error {
	entry := model.LogEntry{
		ID:        ids.New(),
		Action:    action,
		Detail:    detail,
		UserName:  profile.Name,
		UserRole:  profile.Role,
		CreatedAt: e.now(),
	}
	if err := e.store.AppendLog(ctx, entry); err != nil {
		return err
	}
	obs.RecordDecision(string(action))
	return nil
}
