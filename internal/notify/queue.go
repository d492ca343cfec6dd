package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"deskpanel/internal/model"
)

// Queue holds transient events for the current session. Entries are ordered
// newest-first and live only in memory; dismissal is the caller's concern.
type Queue struct {
	mu      sync.Mutex
	entries []model.Notification
	now     func() time.Time
}

func NewQueue() *Queue {
	return &Queue{now: func() time.Time { return time.Now().UTC() }}
}

func (q *Queue) Push(kind model.NotificationType, title, message string) model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry := model.Notification{
		ID:        uuid.NewString(),
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: q.now(),
	}
	q.entries = append([]model.Notification{entry}, q.entries...)
	return entry
}

// MarkRead flips the read flag for the matching entry. Calling it again, or
// with an unknown id, is a no-op.
func (q *Queue) MarkRead(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].Read = true
			return
		}
	}
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

func (q *Queue) List() []model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Notification, len(q.entries))
	copy(out, q.entries)
	return out
}

// Registry hands out one queue per signed-in profile. Notifications stay
// session-local: one user's warnings and clears never reach another user's
// panel.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

func (r *Registry) For(profileID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[profileID]
	if !ok {
		q = NewQueue()
		r.queues[profileID] = q
	}
	return q
}
