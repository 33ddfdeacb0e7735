package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tubelens/internal/artifacts"
	"tubelens/internal/logging"
	"tubelens/internal/observe"
)

// RetentionStore lists and deletes stored analyses.
type RetentionStore interface {
	OlderThan(cutoff time.Time) ([]string, error)
	Delete(id string) (artifacts.DeleteResult, error)
}

// JournalRemover drops journal entries for deleted analyses.
type JournalRemover interface {
	Remove(ctx context.Context, id string) (bool, error)
}

// Sweeper deletes analyses older than a maximum age.
type Sweeper struct {
	store   RetentionStore
	journal JournalRemover
	maxAge  time.Duration
	metrics *observe.Metrics
	logger  *slog.Logger
	now     func() time.Time
	cron    *cron.Cron
}

// NewSweeper builds a sweeper. journal and metrics may be nil.
func NewSweeper(store RetentionStore, journal JournalRemover, maxAge time.Duration, metrics *observe.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = observe.Nop()
	}
	return &Sweeper{
		store:   store,
		journal: journal,
		maxAge:  maxAge,
		metrics: metrics,
		logger:  logging.NewComponentLogger(logger, "retention"),
		now:     time.Now,
	}
}

// Sweep deletes every analysis created before now-maxAge and returns how many
// were removed. Individual failures are logged and do not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.maxAge)
	ids, err := s.store.OlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired analyses: %w", err)
	}
	removed := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if _, err := s.store.Delete(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			logging.WarnWithContext(s.logger, "retention delete failed", "retention_delete_failed",
				logging.String("analysis_id", id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "expired artifacts remain on disk"),
			)
			continue
		}
		if s.journal != nil {
			if _, err := s.journal.Remove(ctx, id); err != nil {
				s.logger.Debug("journal remove failed", logging.String("analysis_id", id), logging.Error(err))
			}
		}
		removed++
	}
	if removed > 0 {
		s.metrics.RetentionDeleted.Add(ctx, int64(removed))
	}
	s.logger.Info("retention sweep finished",
		logging.Int("expired", len(ids)),
		logging.Int("removed", removed),
		logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
		logging.String(logging.FieldEventType, "retention_sweep"),
	)
	return removed, errors.Join(errs...)
}

// Start schedules Sweep with a six-field cron expression (seconds first).
// Overlapping runs are skipped.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger{logger: s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})),
	)
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			logging.WarnWithContext(s.logger, "retention sweep incomplete", "retention_sweep_failed",
				logging.Error(err),
			)
		}
	}); err != nil {
		return fmt.Errorf("schedule retention %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("retention scheduled",
		logging.String("schedule", schedule),
		logging.Duration("max_age", s.maxAge),
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Warn("cron: "+msg, append(keysAndValues, "error", err)...)
}
