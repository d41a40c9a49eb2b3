package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
)

// Sweeper fails jobs stuck in processing, typically after a worker
// crashed between the claim and the terminal write. It uses the same
// compare-and-set transition as the orchestrator, so a job that
// finishes while a sweep is in flight is left alone.
type Sweeper struct {
	jobs       JobStore
	metrics    *metrics.Collector
	logger     *slog.Logger
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

// SweeperConfig configures the stuck-job sweeper.
type SweeperConfig struct {
	Jobs       JobStore
	Metrics    *metrics.Collector
	Logger     *slog.Logger
	StaleAfter time.Duration
	Interval   time.Duration
	Now        func() time.Time
}

// NewSweeper creates a sweeper. StaleAfter bounds how long a job may sit
// in processing without an update before it is declared dead.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Sweeper{
		jobs:       cfg.Jobs,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		staleAfter: cfg.StaleAfter,
		interval:   cfg.Interval,
		now:        cfg.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "stale_after", s.staleAfter, "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Info("swept stuck jobs", "count", n)
			}
		}
	}
}

// Sweep fails every job stuck in processing past the staleness bound.
// Returns the number of jobs transitioned.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	stale, err := s.jobs.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		jobID := models.MustRecordIDString(stale[i].ID)
		_, err := s.jobs.UpdateJobStatus(ctx, jobID, models.JobStatusProcessing, map[string]any{
			"status":        string(models.JobStatusFailed),
			"error_message": "processing exceeded the staleness bound",
			"failure_kind":  string(FailureTimeout),
		})
		if err != nil {
			// The job finished between the listing and the transition.
			if errors.Is(err, db.ErrStatusConflict) {
				continue
			}
			return swept, err
		}
		s.metrics.RecordOutcome(metrics.OutcomeSwept)
		s.logger.Warn("stuck job failed by sweeper", "job", jobID, "last_update", stale[i].Updated)
		swept++
	}
	return swept, nil
}
