package fleet

import (
	"context"
	"fmt"
	"time"
)

// Scheduler drives the engine's maintenance on a fixed interval: the
// expiry sweep and the autoscale check.  Both are idempotent, so the
// loop can run alongside bookings (which perform the same maintenance
// inline).
type Scheduler struct {
	mgr      *Manager
	interval time.Duration
	audit    AuditLogger
}

// NewScheduler builds a maintenance loop for the manager.  A
// non-positive interval falls back to thirty seconds.
func NewScheduler(mgr *Manager, interval time.Duration, audit AuditLogger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{mgr: mgr, interval: interval, audit: audit}
}

// Start blocks, ticking until the context is cancelled.  Run it in its
// own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.audit.Log(fmt.Sprintf("maintenance scheduler started (interval %s)", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.audit.Log("maintenance scheduler stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if released := s.mgr.Sweep(); released > 0 {
		s.audit.Log(fmt.Sprintf("maintenance sweep released %d expired holds", released))
	}
	s.mgr.CheckAutoscale()
}
