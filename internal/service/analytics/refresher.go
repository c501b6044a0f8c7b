package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/engagement-tracker/internal/pkg/distlock"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = 5 * time.Minute

// passOverlap widens each pass backwards to absorb clock skew between this
// process and the database that stamps insert times.
const passOverlap = 30 * time.Second

// Refresher periodically recomputes snapshots for campaigns that had events
// stored since its previous pass. Selection is by insert time, so hits
// replayed late from the queue still refresh their campaign. Only the
// replica holding the lock works.
type Refresher struct {
	svc      *Service
	lock     distlock.DistLock
	interval time.Duration

	mu       sync.Mutex
	running  bool
	lastPass time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRefresher(svc *Service, lock distlock.DistLock, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		svc:      svc,
		lock:     lock,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("refresher already running")
	}
	r.running = true
	r.mu.Unlock()

	logger.Info("starting snapshot refresher", "interval", r.interval.String())
	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
	logger.Info("snapshot refresher stopped")
}

func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				logger.Error("snapshot refresh failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single pass and returns how many snapshots were
// rewritten. It is a no-op when another replica holds the lock. A failure on
// one campaign is logged and does not stop the others.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	refreshed := 0
	ran, err := distlock.WithLock(ctx, r.lock, func(ctx context.Context) error {
		started := r.svc.now()

		r.mu.Lock()
		since := r.lastPass
		r.mu.Unlock()
		if since.IsZero() {
			since = started.Add(-r.interval)
		}
		since = since.Add(-passOverlap)

		ids, err := r.svc.stores.Events.CampaignsWithEventsSince(ctx, since)
		if err != nil {
			return fmt.Errorf("active campaigns: %w", err)
		}
		for _, id := range ids {
			if _, err := r.svc.recompute(ctx, id); err != nil {
				logger.Warn("snapshot recompute failed", "campaign_id", id, "error", err)
				continue
			}
			refreshed++
		}

		r.mu.Lock()
		r.lastPass = started
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return refreshed, err
	}
	if !ran {
		logger.Debug("snapshot refresh skipped, lock held elsewhere")
	} else if refreshed > 0 {
		logger.Info("snapshots refreshed", "count", refreshed)
	}
	return refreshed, nil
}
