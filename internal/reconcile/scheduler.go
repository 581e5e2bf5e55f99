package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"aegis/internal/async"
	"aegis/internal/feedback"
	"aegis/internal/logging"
	"aegis/internal/store"
)

// Scheduler sweeps fallback records on a fixed cadence using robfig/cron.
// Overlapping sweeps are skipped, not queued.
type Scheduler struct {
	cron      *cron.Cron
	worker    *Worker
	store     *store.Store
	interval  time.Duration
	batchSize int
	gap       time.Duration
	logger    logging.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewScheduler builds a Scheduler. interval <= 0 selects 5s, batchSize <= 0
// selects 10, gap < 0 selects 1s.
func NewScheduler(worker *Worker, st *store.Store, interval time.Duration, batchSize int, gap time.Duration, logger logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if gap < 0 {
		gap = time.Second
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		worker:    worker,
		store:     st,
		interval:  interval,
		batchSize: batchSize,
		gap:       gap,
		logger:    logging.OrNop(logger),
		stopped:   make(chan struct{}),
	}
}

// Start schedules the periodic sweep and ties the scheduler's lifetime to
// ctx. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		s.sweep(sweepCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("register reconcile sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Reconciliation scheduler started (interval=%s batch=%d)", s.interval, s.batchSize)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the sweep and waits for an in-flight run to wind down. Safe to
// call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Reconciliation scheduler stopping...")
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		close(s.stopped)
		s.logger.Info("Reconciliation scheduler stopped")
	})
}

// Done returns a channel closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Enqueue reconciles one record in the background, outside the sweep
// cadence. Used by ingest to shorten the fallback window for fresh records.
func (s *Scheduler) Enqueue(id uuid.UUID) {
	async.Go(s.logger, "reconcile.enqueue", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.worker.Reconcile(ctx, id)
	})
}

// sweep drains one batch of the oldest fallback records, pacing calls with a
// gap so the sweep never bursts the provider.
func (s *Scheduler) sweep(ctx context.Context) {
	records, err := s.store.ListBySource(ctx, feedback.SourceFallback, s.batchSize)
	if err != nil {
		s.logger.Warn("Reconcile sweep query failed: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	s.logger.Debug("Reconcile sweep: %d candidate(s)", len(records))

	for i, rec := range records {
		if ctx.Err() != nil {
			return
		}
		s.worker.Reconcile(ctx, rec.ID)

		if s.gap > 0 && i < len(records)-1 {
			timer := time.NewTimer(s.gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}
