package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/id"
	"github.com/magiccrafter/engineering-metrics-data-collector/common/logger"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

// RunPublisher announces finished runs to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, report *RunReport) error
}

type CoordinatorConfig struct {
	// InitialIngestionDate is the since of the very first run. Nil means now.
	InitialIngestionDate *time.Time
	// GroupConcurrency bounds how many groups are walked at once. All import types of
	// a group always run in parallel.
	GroupConcurrency int
	// FailureRetention is how far back unresolved record failures lower since.
	// Zero disables lowering.
	FailureRetention time.Duration
}

// Coordinator runs every walker for every group and advances the run watermark
// only when all of them completed.
type Coordinator struct {
	runs      RunStore
	failures  FailureStore
	walkers   []Runner
	publisher RunPublisher
	cfg       CoordinatorConfig
	now       func() time.Time
}

type CoordinatorOption func(*Coordinator)

func WithFailureStore(failures FailureStore) CoordinatorOption {
	return func(c *Coordinator) { c.failures = failures }
}

func WithPublisher(p RunPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(runs RunStore, walkers []Runner, cfg CoordinatorConfig, opts ...CoordinatorOption) *Coordinator {
	if cfg.GroupConcurrency <= 0 {
		cfg.GroupConcurrency = 1
	}
	c := &Coordinator{
		runs:    runs,
		walkers: walkers,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunRequest selects the groups of a run. Since overrides the computed watermark.
type RunRequest struct {
	Groups []string
	Since  *time.Time
}

// RunReport is the aggregated outcome of one run.
type RunReport struct {
	RunID             string
	Since             time.Time
	StartedAt         time.Time
	CompletedAt       time.Time
	Walkers           []WalkerReport
	WatermarkAdvanced bool
	// WatermarkErr is set when every walker completed but the run could not be recorded.
	WatermarkErr error
}

func (r *RunReport) AllSucceeded() bool {
	for _, w := range r.Walkers {
		if !w.Succeeded() {
			return false
		}
	}
	return true
}

func (r *RunReport) Failed() []WalkerReport {
	var failed []WalkerReport
	for _, w := range r.Walkers {
		if !w.Succeeded() {
			failed = append(failed, w)
		}
	}
	return failed
}

// Since computes the lower bound of the next run: the completion time of the latest
// recorded run, else the initial ingestion date, else now. Unresolved record failures
// within the retention window lower it to their own watermark.
func (c *Coordinator) Since(ctx context.Context) (time.Time, error) {
	now := c.now().UTC()

	var since time.Time
	latest, err := c.runs.Latest(ctx)
	switch {
	case err == nil:
		since = latest.CompletedAt
	case errors.Is(err, store.ErrNotFound):
		if c.cfg.InitialIngestionDate != nil {
			since = *c.cfg.InitialIngestionDate
		} else {
			since = now
		}
	default:
		return time.Time{}, fmt.Errorf("reading latest collector run: %w", err)
	}

	if c.failures != nil && c.cfg.FailureRetention > 0 {
		oldest, err := c.failures.OldestOpenSince(ctx, now.Add(-c.cfg.FailureRetention))
		if err != nil {
			return time.Time{}, fmt.Errorf("reading open import failures: %w", err)
		}
		if oldest != nil && oldest.Before(since) {
			slog.InfoContext(ctx, "lowering since to retry failed records",
				"since", since,
				"lowered_to", *oldest)
			since = *oldest
		}
	}

	return since, nil
}

// Run executes every (group, import type) pair. The returned error is only set when
// the run could not start; walker failures are reported in the RunReport.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	runID := id.NewString()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(runID),
		Component: "collector.importer.coordinator",
	})
	sc := logger.StartSpan(ctx, "importer.coordinator.run")
	defer sc.End()
	ctx = sc.Context()

	if len(req.Groups) == 0 || len(c.walkers) == 0 {
		sc.RecordError(ErrNothingToRun)
		return nil, ErrNothingToRun
	}

	startedAt := c.now().UTC()

	since, err := c.resolveSince(ctx, req)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}

	slog.InfoContext(ctx, "collector run started",
		"groups", req.Groups,
		"import_types", c.ImportTypes(),
		"since", since)

	reports := make([]WalkerReport, len(req.Groups)*len(c.walkers))

	// Tasks never return an error so no sibling is cancelled.
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.GroupConcurrency)
	for gi, group := range req.Groups {
		g.Go(func() error {
			var tg errgroup.Group
			for wi, w := range c.walkers {
				tg.Go(func() error {
					reports[gi*len(c.walkers)+wi] = c.runSafe(ctx, w, group, since)
					return nil
				})
			}
			_ = tg.Wait()
			return nil
		})
	}
	_ = g.Wait()

	report := &RunReport{
		RunID:     runID,
		Since:     since,
		StartedAt: startedAt,
		Walkers:   reports,
	}

	report.CompletedAt = c.now().UTC()
	if report.CompletedAt.Before(startedAt) {
		report.CompletedAt = startedAt
	}

	if report.AllSucceeded() {
		if _, err := c.runs.Append(ctx, startedAt, report.CompletedAt); err != nil {
			report.WatermarkErr = fmt.Errorf("appending collector run: %w", err)
			sc.RecordError(report.WatermarkErr)
			slog.ErrorContext(ctx, "watermark not advanced", "error", report.WatermarkErr)
		} else {
			report.WatermarkAdvanced = true
			slog.InfoContext(ctx, "watermark advanced",
				"started_at", startedAt,
				"completed_at", report.CompletedAt)
		}
	} else {
		for _, f := range report.Failed() {
			slog.WarnContext(ctx, "walker failed",
				"group_key", f.GroupKey,
				"import_type", f.ImportType,
				"last_cursor", derefOr(f.LastCursor, ""),
				"error", f.Err)
		}
		slog.WarnContext(ctx, "watermark not advanced", "failed_walkers", len(report.Failed()))
	}

	if c.publisher != nil {
		if err := c.publisher.PublishRun(ctx, report); err != nil {
			slog.WarnContext(ctx, "publishing run event failed", "error", err)
		}
	}

	return report, nil
}

func (c *Coordinator) resolveSince(ctx context.Context, req RunRequest) (time.Time, error) {
	if req.Since != nil {
		slog.InfoContext(ctx, "using since override", "since", *req.Since)
		return req.Since.UTC(), nil
	}
	return c.Since(ctx)
}

// runSafe turns a walker panic into a failed report so siblings keep running.
func (c *Coordinator) runSafe(ctx context.Context, w Runner, groupKey string, since time.Time) (report WalkerReport) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic in walker",
				"group_key", groupKey,
				"import_type", w.ImportType(),
				"panic", r,
				"stack", string(debug.Stack()))
			report = WalkerReport{
				GroupKey:   groupKey,
				ImportType: w.ImportType(),
				State:      StateFailed,
				Since:      since,
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return w.Run(ctx, groupKey, since)
}

// ImportTypes lists the import types the coordinator runs per group.
func (c *Coordinator) ImportTypes() []model.ImportType {
	types := make([]model.ImportType, 0, len(c.walkers))
	for _, w := range c.walkers {
		types = append(types, w.ImportType())
	}
	return types
}
