package importer

import (
	"context"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// Page is one page of a remote collection. HasMore is authoritative: a page with
// HasMore false ends the walk even when NextCursor is set.
type Page[R any] struct {
	Items      []R
	NextCursor *string
	HasMore    bool
	TotalCount *int
}

// Source fetches one page of a group's collection. since is an inclusive lower bound on
// the items' last modification time and a nil cursor asks for the first page.
// Failures are returned as *Error; a source never drops items silently.
type Source[R any] interface {
	Fetch(ctx context.Context, groupKey string, since time.Time, cursor *string) (Page[R], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[R any] func(ctx context.Context, groupKey string, since time.Time, cursor *string) (Page[R], error)

func (f SourceFunc[R]) Fetch(ctx context.Context, groupKey string, since time.Time, cursor *string) (Page[R], error) {
	return f(ctx, groupKey, since, cursor)
}

// Sink upserts one record by its natural key. Upsert must be atomic and idempotent.
type Sink[T any] interface {
	Upsert(ctx context.Context, record T) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(ctx context.Context, record T) error

func (f SinkFunc[T]) Upsert(ctx context.Context, record T) error {
	return f(ctx, record)
}

// Enricher adds derived fields to a record. A failing enricher never blocks persistence:
// the walker keeps the record it had before the call.
type Enricher[T any] interface {
	Name() string
	Enrich(ctx context.Context, record T) (T, error)
}

// ProgressStore persists import lineages.
type ProgressStore interface {
	// Open returns the open lineage of (groupKey, importType), reopening a failed one,
	// or creates a new one with the given watermark. resumed is true for an existing lineage.
	Open(ctx context.Context, groupKey string, importType model.ImportType, since time.Time) (p *model.ImportProgress, resumed bool, err error)
	// Checkpoint records a finished page. A nil cursor keeps the stored one.
	Checkpoint(ctx context.Context, id int64, cursor *string, processed int) error
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, message string) error
}

// RunStore is the append-only collector run log.
type RunStore interface {
	// Latest returns store.ErrNotFound when no run was recorded yet.
	Latest(ctx context.Context) (*model.CollectorRun, error)
	Append(ctx context.Context, startedAt, completedAt time.Time) (*model.CollectorRun, error)
}

// FailureStore tracks records whose persistence failed so a later run fetches them again.
type FailureStore interface {
	Record(ctx context.Context, failure model.ImportFailure) error
	Resolve(ctx context.Context, groupKey string, importType model.ImportType, naturalKeys []string) error
	// OldestOpenSince returns the lowest watermark of failures seen after retainedAfter, or nil.
	OldestOpenSince(ctx context.Context, retainedAfter time.Time) (*time.Time, error)
}
