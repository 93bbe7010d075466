package sweeper

import (
	"context"
	"sync"
	"time"

	"skedit/internal/locks/notify"
	"skedit/pkg/logger"
	"skedit/pkg/metrics"
	"skedit/pkg/model"
)

type ExpiredLockSweeper interface {
	SweepExpired(ctx context.Context) ([]*model.Lock, error)
}

// Sweeper periodically reclaims locks whose holders stopped heartbeating.
type Sweeper struct {
	locks    ExpiredLockSweeper
	notifier notify.Notifier
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(locks ExpiredLockSweeper, notifier notify.Notifier, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *Sweeper {
	if notifier == nil {
		notifier = notify.Noop()
	}
	timeout := interval
	if timeout <= 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	return &Sweeper{
		locks:    locks,
		notifier: notifier,
		interval: interval,
		timeout:  timeout,
		log:      log.Component("lock_sweeper"),
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("Lock sweeper started", "interval", s.interval)
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("Lock sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single pass and returns how many locks it reclaimed.
// Errors are logged, never returned.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	swept, err := s.locks.SweepExpired(ctx)
	if err != nil {
		s.metrics.SweepFailed()
		s.log.Error("Failed to sweep expired locks", "error", err)
	}
	if len(swept) == 0 {
		return 0
	}

	s.metrics.LocksSwept(len(swept))
	for _, lock := range swept {
		s.notifier.LockExpired(lock)
	}
	s.log.Info("Expired locks cleaned up", "count", len(swept))
	return len(swept)
}
