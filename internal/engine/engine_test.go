package engine

import (
	"context"
	"errors"
	"testing"

	"deskpanel/internal/identity"
	"deskpanel/internal/model"
	"deskpanel/internal/notify"
	"deskpanel/internal/store"
)

type staticProvider struct {
	profile    *model.Profile
	signOutErr error
	signedOut  bool
}

func (p *staticProvider) Profile(context.Context) (*model.Profile, error) {
	return p.profile, nil
}

func (p *staticProvider) SignOut(context.Context) error {
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.signedOut = true
	return nil
}

var _ identity.Provider = (*staticProvider)(nil)

func teacherProfile() *model.Profile {
	return &model.Profile{ID: "user-1", Name: "Ada Teacher", Role: model.RoleTeacher}
}

func adminProfile() *model.Profile {
	return &model.Profile{ID: "user-2", Name: "Sam Admin", Role: model.RoleAdmin}
}

func newEngine(t *testing.T, profile *model.Profile, opts ...Option) (*Engine, *store.Memory, *staticProvider) {
	t.Helper()
	mem := store.NewMemory()
	provider := &staticProvider{profile: profile}
	eng, err := New(mem, provider, notify.NewRegistry(), opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng, mem, provider
}

func auditEntries(t *testing.T, mem *store.Memory) []model.LogEntry {
	t.Helper()
	logs, err := mem.Logs(context.Background(), 0)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	return logs
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, &staticProvider{}, nil); err == nil {
		t.Fatalf("expected nil store to fail fast")
	}
	if _, err := New(store.NewMemory(), nil, nil); err == nil {
		t.Fatalf("expected nil identity provider to fail fast")
	}
}

func TestDeskModeDerivesFromExamMode(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		examMode, err := mem.ExamMode(ctx)
		if err != nil {
			t.Fatalf("exam mode: %v", err)
		}
		mode, err := eng.DeskMode(ctx)
		if err != nil {
			t.Fatalf("desk mode: %v", err)
		}
		if examMode && mode != model.DeskModeExam {
			t.Fatalf("expected exam mode, got %s", mode)
		}
		if !examMode && mode != model.DeskModeNormal {
			t.Fatalf("expected normal mode, got %s", mode)
		}
		if _, err := mem.ToggleExamMode(ctx); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
}

func TestPerformResearchDeniedDuringExamMode(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()
	locker, _ := mem.AddLocker(ctx, store.LockerFields{Location: "Desk 1"})
	if _, err := mem.ToggleExamMode(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	res := eng.PerformResearch(ctx)
	if res.Status != StatusDenied {
		t.Fatalf("expected denial, got %v", res.Status)
	}
	if res.Message != "Research access is blocked during exam mode." {
		t.Fatalf("unexpected message %q", res.Message)
	}

	logs := auditEntries(t, mem)
	if len(logs) != 1 || logs[0].Action != model.ActionResearchBlocked {
		t.Fatalf("expected exactly one RESEARCH_BLOCKED entry, got %+v", logs)
	}
	if logs[0].UserName != "Ada Teacher" || logs[0].UserRole != model.RoleTeacher {
		t.Fatalf("expected entry attributed to the actor, got %+v", logs[0])
	}

	lockers, _ := mem.Lockers(ctx)
	if lockers[0].Status != locker.Status {
		t.Fatalf("expected no locker-state change on denial")
	}
}

func TestPerformResearchAllowedInNormalMode(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	res := eng.PerformResearch(ctx)
	if !res.Success() {
		t.Fatalf("expected success, got %v %q", res.Status, res.Message)
	}
	if res.Message != "Research access granted." {
		t.Fatalf("unexpected message %q", res.Message)
	}

	logs := auditEntries(t, mem)
	if len(logs) != 1 || logs[0].Action != model.ActionResearchAccess {
		t.Fatalf("expected exactly one RESEARCH_ACCESS entry, got %+v", logs)
	}
}

func TestPerformResearchReEvaluatesLiveExamMode(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	if res := eng.PerformResearch(ctx); !res.Success() {
		t.Fatalf("expected initial success")
	}
	if _, err := mem.ToggleExamMode(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res := eng.PerformResearch(ctx); res.Status != StatusDenied {
		t.Fatalf("expected denial once exam mode begins mid-session")
	}
}

func TestUnauthenticatedOperationsShortCircuit(t *testing.T) {
	eng, mem, _ := newEngine(t, nil)
	ctx := context.Background()

	for name, res := range map[string]Result{
		"research":    eng.PerformResearch(ctx),
		"exam action": eng.PerformExamAction(ctx),
		"lock all":    eng.LockAllLockers(ctx),
		"toggle exam": eng.ToggleExamMode(ctx),
		"logout":      eng.Logout(ctx),
	} {
		if res.Status != StatusUnauthenticated {
			t.Fatalf("%s: expected unauthenticated, got %v", name, res.Status)
		}
		if res.Message != "You must be logged in." {
			t.Fatalf("%s: unexpected message %q", name, res.Message)
		}
	}

	if logs := auditEntries(t, mem); len(logs) != 0 {
		t.Fatalf("expected zero audit entries for unauthenticated attempts, got %d", len(logs))
	}
}

func TestPerformExamActionModeIndependent(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	for _, examMode := range []bool{false, true} {
		current, _ := mem.ExamMode(ctx)
		if current != examMode {
			if _, err := mem.ToggleExamMode(ctx); err != nil {
				t.Fatalf("toggle: %v", err)
			}
		}
		res := eng.PerformExamAction(ctx)
		if !res.Success() || res.Message != "Exam action recorded." {
			t.Fatalf("exam mode %v: expected identical success, got %v %q", examMode, res.Status, res.Message)
		}
	}

	logs := auditEntries(t, mem)
	if len(logs) != 2 {
		t.Fatalf("expected two EXAM_ACTION entries, got %d", len(logs))
	}
	for _, entry := range logs {
		if entry.Action != model.ActionExamAction {
			t.Fatalf("unexpected action %s", entry.Action)
		}
	}
}

func TestToggleExamModeInvolutionAndAudit(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	initial, _ := mem.ExamMode(ctx)
	if res := eng.ToggleExamMode(ctx); !res.Success() {
		t.Fatalf("first toggle failed: %v", res.Status)
	}
	if res := eng.ToggleExamMode(ctx); !res.Success() {
		t.Fatalf("second toggle failed: %v", res.Status)
	}
	final, _ := mem.ExamMode(ctx)
	if final != initial {
		t.Fatalf("expected double toggle to restore exam mode %v", initial)
	}

	logs := auditEntries(t, mem)
	if len(logs) != 2 {
		t.Fatalf("expected two mode-change entries, got %d", len(logs))
	}
	if logs[1].Action != model.ActionExamModeOn || logs[0].Action != model.ActionExamModeOff {
		t.Fatalf("expected EXAM_MODE_ON then EXAM_MODE_OFF, got %s then %s", logs[1].Action, logs[0].Action)
	}

	notifications := eng.Notifications().For("user-1").List()
	if len(notifications) != 2 {
		t.Fatalf("expected a notification per mode change, got %d", len(notifications))
	}
}

func TestLockAllLockersLocksEverything(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	a, _ := mem.AddLocker(ctx, store.LockerFields{Location: "A"})
	mem.AddLocker(ctx, store.LockerFields{Location: "B"})
	mem.AddLocker(ctx, store.LockerFields{Location: "C"})
	if err := mem.Lock(ctx, a.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	res := eng.LockAllLockers(ctx)
	if !res.Success() {
		t.Fatalf("lock all failed: %v", res.Status)
	}

	lockers, _ := mem.Lockers(ctx)
	for _, locker := range lockers {
		if locker.Status != model.LockerLocked {
			t.Fatalf("expected all lockers locked, %s is %s", locker.Location, locker.Status)
		}
	}

	logs := auditEntries(t, mem)
	if len(logs) != 1 || logs[0].Action != model.ActionLockAll {
		t.Fatalf("expected one LOCK_ALL entry, got %+v", logs)
	}
	if len(eng.Notifications().For("user-1").List()) != 1 {
		t.Fatalf("expected a lock-all notification")
	}
}

func TestToggleLockerAuditsResultingStatus(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()
	locker, _ := mem.AddLocker(ctx, store.LockerFields{Location: "Desk 1"})

	if res := eng.ToggleLocker(ctx, locker.ID); !res.Success() {
		t.Fatalf("toggle: %v", res.Status)
	}
	if res := eng.ToggleLocker(ctx, locker.ID); !res.Success() {
		t.Fatalf("toggle: %v", res.Status)
	}

	logs := auditEntries(t, mem)
	if len(logs) != 2 {
		t.Fatalf("expected two entries, got %d", len(logs))
	}
	if logs[1].Action != model.ActionLock || logs[0].Action != model.ActionUnlock {
		t.Fatalf("expected LOCK then UNLOCK, got %s then %s", logs[1].Action, logs[0].Action)
	}
}

func TestFailedMutationIsNotAudited(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	res := eng.LockLocker(ctx, "missing")
	if res.Status != StatusBackendError {
		t.Fatalf("expected backend error, got %v", res.Status)
	}
	if res.Message != "Something went wrong. Please try again." {
		t.Fatalf("expected generic message, got %q", res.Message)
	}
	if !errors.Is(res.Err, store.ErrNotFound) {
		t.Fatalf("expected wrapped store error, got %v", res.Err)
	}
	if logs := auditEntries(t, mem); len(logs) != 0 {
		t.Fatalf("expected no audit entry for a failed mutation")
	}
}

func TestLogoutAuditsBeforeSignOut(t *testing.T) {
	eng, mem, provider := newEngine(t, teacherProfile())
	ctx := context.Background()

	if res := eng.Logout(ctx); !res.Success() {
		t.Fatalf("logout failed: %v", res.Status)
	}
	if !provider.signedOut {
		t.Fatalf("expected identity sign-out to be invoked")
	}
	logs := auditEntries(t, mem)
	if len(logs) != 1 || logs[0].Action != model.ActionLogout {
		t.Fatalf("expected LOGOUT entry, got %+v", logs)
	}
}

func TestLogoutAuditSurvivesSignOutFailure(t *testing.T) {
	eng, mem, provider := newEngine(t, teacherProfile())
	provider.signOutErr = errors.New("provider down")
	ctx := context.Background()

	res := eng.Logout(ctx)
	if res.Status != StatusBackendError {
		t.Fatalf("expected backend error, got %v", res.Status)
	}
	logs := auditEntries(t, mem)
	if len(logs) != 1 || logs[0].Action != model.ActionLogout {
		t.Fatalf("expected LOGOUT entry recorded before the failing sign-out, got %+v", logs)
	}
}

func TestLockerCRUDGate(t *testing.T) {
	eng, _, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	if _, res := eng.AddLocker(ctx, store.LockerFields{Location: "Desk 1"}); res.Status != StatusDenied {
		t.Fatalf("expected non-admin add to be denied, got %v", res.Status)
	}

	admin, mem, _ := newEngine(t, adminProfile())
	locker, res := admin.AddLocker(ctx, store.LockerFields{Location: "Desk 1"})
	if !res.Success() {
		t.Fatalf("expected admin add to succeed, got %v", res.Status)
	}
	if res := admin.DeleteLocker(ctx, locker.ID); !res.Success() {
		t.Fatalf("expected admin delete to succeed, got %v", res.Status)
	}
	if logs := auditEntries(t, mem); len(logs) != 0 {
		t.Fatalf("locker CRUD is outside the audit vocabulary, got %+v", logs)
	}
}

func TestLockerCRUDGateDisabled(t *testing.T) {
	eng, _, _ := newEngine(t, teacherProfile(), WithAdminCRUDGate(false))
	ctx := context.Background()

	if _, res := eng.AddLocker(ctx, store.LockerFields{Location: "Desk 1"}); !res.Success() {
		t.Fatalf("expected ungated add to succeed, got %v", res.Status)
	}
}

func TestResearchBlockedRaisesNotification(t *testing.T) {
	eng, mem, _ := newEngine(t, teacherProfile())
	ctx := context.Background()
	if _, err := mem.ToggleExamMode(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	eng.PerformResearch(ctx)
	notifications := eng.Notifications().For("user-1").List()
	if len(notifications) != 1 || notifications[0].Type != model.NotificationWarning {
		t.Fatalf("expected a warning notification, got %+v", notifications)
	}
}

func TestNotificationsScopedToActingProfile(t *testing.T) {
	eng, _, _ := newEngine(t, teacherProfile())
	ctx := context.Background()

	if res := eng.ToggleExamMode(ctx); !res.Success() {
		t.Fatalf("toggle: %v", res.Status)
	}

	if got := eng.Notifications().For("user-1").List(); len(got) != 1 {
		t.Fatalf("expected the actor to receive the notification, got %+v", got)
	}
	if got := eng.Notifications().For("user-2").List(); len(got) != 0 {
		t.Fatalf("expected other profiles to see nothing, got %+v", got)
	}
}
