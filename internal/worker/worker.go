package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/logger"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
)

// RunCoordinator is satisfied by *importer.Coordinator.
type RunCoordinator interface {
	Run(ctx context.Context, req importer.RunRequest) (*importer.RunReport, error)
}

type Config struct {
	Groups   []string
	Interval time.Duration
	// OnReport, when set, receives every finished run.
	OnReport func(*importer.RunReport)
}

// Worker triggers a collector run right away and then once per interval. Runs never
// overlap: a run that outlasts the interval delays the next tick.
type Worker struct {
	coordinator RunCoordinator
	cfg         Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(coordinator RunCoordinator, cfg Config) *Worker {
	return &Worker{
		coordinator: coordinator,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Run blocks until ctx is done or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "collector.worker"})
	defer close(w.stoppedCh)

	if w.cfg.Interval <= 0 {
		return fmt.Errorf("worker interval must be positive, got %s", w.cfg.Interval)
	}

	slog.InfoContext(ctx, "worker started",
		"interval", w.cfg.Interval,
		"groups", w.cfg.Groups)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.runOnceSafe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		case <-ticker.C:
			w.runOnceSafe(ctx)
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) runOnceSafe(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in collector run",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	report, err := w.coordinator.Run(ctx, importer.RunRequest{Groups: w.cfg.Groups})
	if err != nil {
		slog.ErrorContext(ctx, "collector run could not start", "error", err)
		return
	}
	if !report.WatermarkAdvanced {
		slog.WarnContext(ctx, "collector run finished with failures, next run resumes them",
			"run_id", report.RunID,
			"failed_walkers", len(report.Failed()))
	}
	if w.cfg.OnReport != nil {
		w.cfg.OnReport(report)
	}
}
