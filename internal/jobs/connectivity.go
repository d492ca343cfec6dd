package jobs

import (
	"context"
	"log"
	"time"

	"deskpanel/internal/config"
	"deskpanel/internal/connectivity"
)

// Prober reports whether the backing services are reachable. The database
// and Redis pings satisfy this.
type Prober func(ctx context.Context) error

// StartConnectivityProbe feeds the observer from a periodic reachability
// probe. An immediate probe runs before the first tick so the indicator
// reflects reality at startup.
func StartConnectivityProbe(ctx context.Context, cfg config.Config, observer *connectivity.Observer, probe Prober) {
	if observer == nil || probe == nil {
		return
	}
	interval := cfg.ConnectivityProbePeriod
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := cfg.ConnectivityProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	runProbe := func() {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		err := probe(tickCtx)
		cancel()
		if err != nil {
			log.Printf("connectivity probe failed: %v", err)
		}
		observer.SetOnline(err == nil)
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		runProbe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runProbe()
			}
		}
	}()
}
