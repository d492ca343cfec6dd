package connectivity

import (
	"sync"
	"time"
)

const defaultClearDelay = 3 * time.Second

type State struct {
	Online      bool `json:"online"`
	Dismissed   bool `json:"dismissed"`
	Reconnected bool `json:"reconnected"`
}

// Observer tracks the online/offline signal and the transient "reconnected"
// indicator shown after a session comes back online. The indicator clears
// itself after a fixed delay; going offline again before the delay elapses
// invalidates the pending clear so a stale indicator never shows.
//
// Connectivity has no bearing on access-control policy.
type Observer struct {
	mu          sync.Mutex
	online      bool
	wasOffline  bool
	dismissed   bool
	reconnected bool
	clearDelay  time.Duration
	timer       *time.Timer
	gen         uint64
}

func NewObserver(clearDelay time.Duration) *Observer {
	if clearDelay <= 0 {
		clearDelay = defaultClearDelay
	}
	return &Observer{online: true, clearDelay: clearDelay}
}

func (o *Observer) SetOnline(online bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if online == o.online {
		return
	}
	o.online = online

	if !online {
		// Offline transition re-arms the persistent indicator and cancels
		// any pending reconnected clear.
		o.wasOffline = true
		o.dismissed = false
		o.reconnected = false
		o.gen++
		if o.timer != nil {
			o.timer.Stop()
			o.timer = nil
		}
		return
	}

	if !o.wasOffline {
		return
	}
	o.wasOffline = false
	o.reconnected = true
	o.gen++
	gen := o.gen
	o.timer = time.AfterFunc(o.clearDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.gen == gen {
			o.reconnected = false
			o.timer = nil
		}
	})
}

// Dismiss suppresses the persistent offline indicator until the next offline
// transition re-arms it.
func (o *Observer) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dismissed = true
}

func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{Online: o.online, Dismissed: o.dismissed, Reconnected: o.reconnected}
}
