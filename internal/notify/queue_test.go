package notify

import (
	"testing"

	"deskpanel/internal/model"
)

func TestPushPrependsNewestFirst(t *testing.T) {
	q := NewQueue()
	q.Push(model.NotificationInfo, "first", "a")
	q.Push(model.NotificationWarning, "second", "b")

	entries := q.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "second" || entries[1].Title != "first" {
		t.Fatalf("expected newest-first ordering, got %q then %q", entries[0].Title, entries[1].Title)
	}
	if entries[0].Read {
		t.Fatalf("expected new entries to be unread")
	}
	if entries[0].ID == entries[1].ID {
		t.Fatalf("expected distinct ids")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	q := NewQueue()
	entry := q.Push(model.NotificationInfo, "title", "msg")

	q.MarkRead(entry.ID)
	once := q.List()
	q.MarkRead(entry.ID)
	twice := q.List()

	if !once[0].Read || !twice[0].Read {
		t.Fatalf("expected entry to stay read")
	}
	if len(once) != len(twice) {
		t.Fatalf("expected repeated mark-read to not change the queue")
	}
}

func TestMarkReadUnknownIDIsNoOp(t *testing.T) {
	q := NewQueue()
	q.Push(model.NotificationInfo, "title", "msg")
	q.MarkRead("missing")
	if q.List()[0].Read {
		t.Fatalf("expected unrelated entry to stay unread")
	}
}

func TestClearEmptiesQueue(t *testing.T) {
	q := NewQueue()
	q.Push(model.NotificationInfo, "title", "msg")
	q.Clear()
	if len(q.List()) != 0 {
		t.Fatalf("expected empty queue after clear")
	}
}

func TestRegistryIsolatesProfiles(t *testing.T) {
	r := NewRegistry()
	r.For("user-1").Push(model.NotificationWarning, "title", "msg")

	if len(r.For("user-2").List()) != 0 {
		t.Fatalf("expected other profile's queue to be empty")
	}
	r.For("user-2").Clear()
	if len(r.For("user-1").List()) != 1 {
		t.Fatalf("expected clear on one profile to leave the other untouched")
	}
	if r.For("user-1") != r.For("user-1") {
		t.Fatalf("expected a stable queue per profile")
	}
}

func TestListReturnsCopy(t *testing.T) {
	q := NewQueue()
	q.Push(model.NotificationInfo, "title", "msg")
	entries := q.List()
	entries[0].Read = true
	if q.List()[0].Read {
		t.Fatalf("expected List to return a snapshot")
	}
}
