package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/logger"
)

type FinishedImportDeleter interface {
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type FailureDeleter interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type JanitorConfig struct {
	// Retention is how long completed and failed lineages and record failures are kept.
	Retention time.Duration
	Interval  time.Duration
}

// Janitor periodically deletes finished import lineages and record failures older than
// the retention. In-progress lineages are never touched, they are what a rerun resumes.
type Janitor struct {
	imports  FinishedImportDeleter
	failures FailureDeleter
	cfg      JanitorConfig
	now      func() time.Time

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewJanitor(imports FinishedImportDeleter, failures FailureDeleter, cfg JanitorConfig) *Janitor {
	return &Janitor{
		imports:   imports,
		failures:  failures,
		cfg:       cfg,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until ctx is done or Stop is called.
func (j *Janitor) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "collector.worker.janitor"})
	defer close(j.stoppedCh)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "janitor started",
		"interval", j.cfg.Interval,
		"retention", j.cfg.Retention)

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			slog.InfoContext(ctx, "janitor stopping")
			return
		case <-ticker.C:
			if _, _, err := j.CleanOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "cleanup cycle error", "error", err)
			}
		}
	}
}

func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.stoppedCh
}

// CleanOnce deletes everything that finished before now minus the retention.
func (j *Janitor) CleanOnce(ctx context.Context) (imports, failures int64, err error) {
	before := j.now().UTC().Add(-j.cfg.Retention)

	imports, err = j.imports.DeleteFinishedBefore(ctx, before)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting finished imports: %w", err)
	}
	failures, err = j.failures.DeleteBefore(ctx, before)
	if err != nil {
		return imports, 0, fmt.Errorf("deleting import failures: %w", err)
	}

	if imports > 0 || failures > 0 {
		slog.InfoContext(ctx, "cleaned up finished imports",
			"before", before,
			"import_lineages", imports,
			"import_failures", failures)
	}
	return imports, failures, nil
}
