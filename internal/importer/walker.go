package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/logger"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// State is the position of a walker in its import loop.
type State string

const (
	StateIdle          State = "idle"
	StateResuming      State = "resuming"
	StateFetching      State = "fetching"
	StatePersisting    State = "persisting"
	StateCheckpointing State = "checkpointing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// Policy decides what a malformed item does to its page.
type Policy int

const (
	// Strict fails the whole page, and with it the walker, on the first malformed item.
	Strict Policy = iota
	// Lenient skips malformed items and counts them.
	Lenient
)

// Entity binds a source to a sink for one import type.
type Entity[R, T any] struct {
	Type      model.ImportType
	Source    Source[R]
	Transform func(R) (T, error)
	// Key returns the natural key, used for failure tracking.
	Key func(T) string
	// Filter, when set, drops records that are not relevant for the watermark before
	// they are enriched or persisted.
	Filter    func(record T, since time.Time) bool
	Enrichers []Enricher[T]
	Sink      Sink[T]
	Policy    Policy
}

// RecordFailure is a per-record outcome that did not stop the page.
type RecordFailure struct {
	Key string
	Err error
}

// PageReport is the outcome of one fetched page.
type PageReport struct {
	Cursor             *string
	Fetched            int
	Malformed          int
	Filtered           int
	Persisted          int
	PersistFailures    []RecordFailure
	EnrichmentFailures []RecordFailure
	// Untracked counts persistence failures that could not be recorded for retry.
	Untracked int
}

// WalkerReport is the outcome of one (group, import type) walk.
type WalkerReport struct {
	GroupKey   string
	ImportType model.ImportType
	ImportID   int64
	State      State
	Resumed    bool
	Since      time.Time
	// LastCursor is the cursor of the last checkpointed page; a rerun resumes after it.
	LastCursor *string
	Pages      []PageReport
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the walk completed with every failed record tracked for
// retry. A completed walk that lost track of a record must not advance the watermark.
func (r WalkerReport) Succeeded() bool {
	return r.State == StateCompleted && r.Untracked() == 0
}

func (r WalkerReport) Fetched() int { return r.sum(func(p PageReport) int { return p.Fetched }) }
func (r WalkerReport) Persisted() int { return r.sum(func(p PageReport) int { return p.Persisted }) }
func (r WalkerReport) Filtered() int { return r.sum(func(p PageReport) int { return p.Filtered }) }
func (r WalkerReport) Malformed() int { return r.sum(func(p PageReport) int { return p.Malformed }) }
func (r WalkerReport) PersistFailed() int { return r.sum(func(p PageReport) int { return len(p.PersistFailures) }) }
func (r WalkerReport) EnrichFailed() int { return r.sum(func(p PageReport) int { return len(p.EnrichmentFailures) }) }
func (r WalkerReport) Untracked() int { return r.sum(func(p PageReport) int { return p.Untracked }) }

func (r WalkerReport) sum(f func(PageReport) int) int {
	n := 0
	for _, p := range r.Pages {
		n += f(p)
	}
	return n
}

// Runner is a walker with its record types erased, as the coordinator sees it.
type Runner interface {
	ImportType() model.ImportType
	Run(ctx context.Context, groupKey string, since time.Time) WalkerReport
}

// Walker drives fetch, transform, filter, enrich, persist and checkpoint for one entity.
// It holds no per-run state and may run for several groups at once.
type Walker[R, T any] struct {
	entity   Entity[R, T]
	progress ProgressStore
	failures FailureStore
	metrics  *metrics
}

// NewWalker builds a walker. failures may be nil, persistence failures are then counted
// as untracked and the walk does not succeed.
func NewWalker[R, T any](entity Entity[R, T], progress ProgressStore, failures FailureStore) *Walker[R, T] {
	return &Walker[R, T]{
		entity:   entity,
		progress: progress,
		failures: failures,
		metrics:  newMetrics(),
	}
}

func (w *Walker[R, T]) ImportType() model.ImportType {
	return w.entity.Type
}

// Run walks the group's collection from the lineage's last checkpoint to the end.
// It never returns an error: the outcome, including failures, is in the report.
func (w *Walker[R, T]) Run(ctx context.Context, groupKey string, since time.Time) WalkerReport {
	start := time.Now()
	importType := string(w.entity.Type)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		GroupKey:   logger.Ptr(groupKey),
		ImportType: logger.Ptr(importType),
		Component:  "collector.importer.walker",
	})
	sc := logger.StartImportSpan(ctx, "importer.walker.run", groupKey, importType)
	defer sc.End()
	ctx = sc.Context()

	attrs := walkerAttrs(groupKey, importType)
	report := WalkerReport{
		GroupKey:   groupKey,
		ImportType: w.entity.Type,
		State:      StateIdle,
		Since:      since,
	}
	defer func() {
		report.Duration = time.Since(start)
		w.metrics.recordWalker(ctx, attrs, report.State, report.Duration)
		if report.Err != nil {
			sc.RecordError(report.Err)
		}
		sc.SetAttributes(
			attribute.String("collector.state", string(report.State)),
			attribute.Int("collector.persisted", report.Persisted()),
		)
	}()

	report.State = StateResuming
	p, resumed, err := w.progress.Open(ctx, groupKey, w.entity.Type, since)
	if err != nil {
		// No lineage row to mark failed; the next run opens it again.
		report.State = StateFailed
		report.Err = classify(KindPersistence, "opening import progress", err)
		slog.ErrorContext(ctx, "opening import progress failed", "error", report.Err)
		return report
	}

	report.ImportID = p.ID
	report.Resumed = resumed
	report.LastCursor = p.LastCursor
	// The stored cursor is only valid for the query it was issued for.
	watermark := p.WatermarkSince
	report.Since = watermark

	ctx = logger.WithLogFields(ctx, logger.LogFields{ImportID: logger.Ptr(p.ID)})
	if resumed {
		slog.InfoContext(ctx, "resuming import",
			"watermark_since", watermark,
			"last_cursor", derefOr(p.LastCursor, ""),
			"total_processed", p.TotalProcessed)
	} else {
		slog.InfoContext(ctx, "starting import", "watermark_since", watermark)
	}

	cursor := p.LastCursor
	for {
		report.State = StateFetching
		page, err := w.entity.Source.Fetch(ctx, groupKey, watermark, cursor)
		if err != nil {
			w.fail(ctx, &report, p.ID, classify(KindTransport, "fetching page", err))
			return report
		}

		report.State = StatePersisting
		pr, err := w.processPage(ctx, groupKey, watermark, page)
		if err != nil {
			w.fail(ctx, &report, p.ID, err)
			return report
		}
		report.Pages = append(report.Pages, pr)
		w.metrics.recordPage(ctx, attrs, pr)

		if page.HasMore && page.NextCursor == nil {
			w.fail(ctx, &report, p.ID, DataShape("fetching page", errors.New("page has more items but no next cursor")))
			return report
		}

		report.State = StateCheckpointing
		if err := w.progress.Checkpoint(ctx, p.ID, page.NextCursor, pr.Persisted); err != nil {
			w.fail(ctx, &report, p.ID, classify(KindPersistence, "checkpointing page", err))
			return report
		}
		if page.NextCursor != nil {
			cursor = page.NextCursor
			report.LastCursor = page.NextCursor
		}

		slog.DebugContext(ctx, "page checkpointed",
			"cursor", derefOr(page.NextCursor, ""),
			"fetched", pr.Fetched,
			"persisted", pr.Persisted,
			"filtered", pr.Filtered,
			"has_more", page.HasMore)

		if !page.HasMore {
			break
		}
	}

	if err := w.progress.Complete(ctx, p.ID); err != nil {
		// Everything is written but the lineage stays open; the next run resumes at its end.
		report.State = StateFailed
		report.Err = classify(KindPersistence, "completing import progress", err)
		slog.ErrorContext(ctx, "completing import progress failed", "error", report.Err)
		return report
	}

	report.State = StateCompleted
	if n := report.Untracked(); n > 0 {
		report.Err = classify(KindPersistence, "tracking failed records",
			fmt.Errorf("%w: %d", ErrUntrackedFailures, n))
		slog.ErrorContext(ctx, "import completed with untracked failures", "untracked", n)
	}
	slog.InfoContext(ctx, "import completed",
		"pages", len(report.Pages),
		"fetched", report.Fetched(),
		"persisted", report.Persisted(),
		"persist_failed", report.PersistFailed(),
		"enrichment_failed", report.EnrichFailed())
	return report
}

// processPage transforms every item before writing any, so a strict entity never
// persists part of a malformed page.
func (w *Walker[R, T]) processPage(ctx context.Context, groupKey string, watermark time.Time, page Page[R]) (PageReport, error) {
	pr := PageReport{Cursor: page.NextCursor, Fetched: len(page.Items)}

	records := make([]T, 0, len(page.Items))
	for i, item := range page.Items {
		rec, err := w.entity.Transform(item)
		if err != nil {
			if w.entity.Policy == Strict {
				return pr, classify(KindDataShape, fmt.Sprintf("transforming item %d", i), err)
			}
			pr.Malformed++
			slog.WarnContext(ctx, "skipping malformed item", "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}

	var written []string
	for _, rec := range records {
		if w.entity.Filter != nil && !w.entity.Filter(rec, watermark) {
			pr.Filtered++
			continue
		}

		key := w.entity.Key(rec)
		for _, enricher := range w.entity.Enrichers {
			enriched, err := enricher.Enrich(ctx, rec)
			if err != nil {
				pr.EnrichmentFailures = append(pr.EnrichmentFailures, RecordFailure{Key: key, Err: err})
				slog.WarnContext(ctx, "enrichment failed, persisting without it",
					"enricher", enricher.Name(),
					"key", key,
					"error", err)
				continue
			}
			rec = enriched
		}

		if err := w.entity.Sink.Upsert(ctx, rec); err != nil {
			err = classify(KindPersistence, "upserting record", err)
			pr.PersistFailures = append(pr.PersistFailures, RecordFailure{Key: key, Err: err})
			slog.ErrorContext(ctx, "upsert failed, skipping record", "key", key, "error", err)
			if err := w.recordFailure(ctx, groupKey, watermark, key, err); err != nil {
				pr.Untracked++
				slog.ErrorContext(ctx, "recording import failure failed", "key", key, "error", err)
			}
			continue
		}
		pr.Persisted++
		written = append(written, key)
	}

	if w.failures != nil && len(written) > 0 {
		if err := w.failures.Resolve(ctx, groupKey, w.entity.Type, written); err != nil {
			slog.WarnContext(ctx, "resolving import failures failed", "error", err)
		}
	}

	return pr, nil
}

func (w *Walker[R, T]) recordFailure(ctx context.Context, groupKey string, watermark time.Time, key string, cause error) error {
	if w.failures == nil {
		return errNoFailureStore
	}
	return w.failures.Record(ctx, model.ImportFailure{
		GroupKey:       groupKey,
		ImportType:     w.entity.Type,
		NaturalKey:     key,
		WatermarkSince: watermark,
		ErrorMessage:   cause.Error(),
	})
}

// fail marks the lineage failed. The cursor is left as last checkpointed.
func (w *Walker[R, T]) fail(ctx context.Context, report *WalkerReport, id int64, cause error) {
	report.State = StateFailed
	report.Err = cause

	// The lineage must be marked even when the walk was cancelled.
	if err := w.progress.Fail(context.WithoutCancel(ctx), id, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "marking import failed failed", "error", err)
	}
	slog.ErrorContext(ctx, "import failed",
		"error", cause,
		"kind", KindOf(cause),
		"last_cursor", derefOr(report.LastCursor, ""))
}

func derefOr[V any](p *V, fallback V) V {
	if p == nil {
		return fallback
	}
	return *p
}
