package sync

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler drives periodic synchronization without overlapping passes.
//
// One pass runs at a time: the syncing flag is the mutual exclusion at this
// level, and it is cleared on every exit path so a failing pass can never
// wedge the scheduler. Stopping the timer does not cancel an in-flight pass
// and never clears the queues; pending work survives across sessions.
type Scheduler struct {
	interval time.Duration
	logger   *log.Logger

	authed func() bool
	online func() bool
	pass   func(ctx context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	syncing atomic.Bool
}

// NewScheduler creates a scheduler that runs pass every interval while
// authed() and online() both hold.
func NewScheduler(interval time.Duration, authed, online func() bool, pass func(ctx context.Context), logger *log.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		logger:   logger,
		authed:   authed,
		online:   online,
		pass:     pass,
	}
}

// Start launches the recurring timer. Any previously running timer is stopped
// first, so restarts are idempotent.
func (s *Scheduler) Start() {
	s.Stop()

	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	interval := s.interval
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Printf("sync timer started (every %v)", interval)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.PerformScheduledSync(ctx)
			}
		}
	}()
}

// Stop halts the recurring timer. An in-flight pass is not cancelled, only
// new passes are prevented. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()
	s.logger.Printf("sync timer stopped")
}

// SetInterval changes the tick interval. A running timer is restarted so the
// new interval takes effect immediately; an in-flight pass is unaffected.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	if s.interval == interval {
		s.mu.Unlock()
		return
	}
	s.interval = interval
	running := s.cancel != nil
	s.mu.Unlock()

	if running {
		s.Start()
	}
}

// Running reports whether the timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Syncing reports whether a pass is currently in flight.
func (s *Scheduler) Syncing() bool {
	return s.syncing.Load()
}

// CanSync is true iff the user is authenticated, the device is online, and no
// pass is currently in flight.
func (s *Scheduler) CanSync() bool {
	return s.authed() && s.online() && !s.syncing.Load()
}

// PerformScheduledSync runs one gated pass. It is a no-op unless CanSync();
// the syncing flag is set for the duration and cleared on every exit path.
func (s *Scheduler) PerformScheduledSync(ctx context.Context) {
	if !s.authed() || !s.online() {
		return
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return
	}
	defer s.syncing.Store(false)

	s.pass(ctx)
}
