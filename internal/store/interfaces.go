package store

import (
	"context"
	"errors"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ImportProgressStore persists import lineages, one open lineage per (group, import type).
type ImportProgressStore interface {
	Open(ctx context.Context, groupKey string, importType model.ImportType, since time.Time) (*model.ImportProgress, bool, error)
	Get(ctx context.Context, id int64) (*model.ImportProgress, error)
	Checkpoint(ctx context.Context, id int64, cursor *string, processed int) error
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, message string) error
	List(ctx context.Context, status *model.ImportStatus, limit int32) ([]model.ImportProgress, error)
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// CollectorRunStore is the append-only run watermark log.
type CollectorRunStore interface {
	Latest(ctx context.Context) (*model.CollectorRun, error)
	Append(ctx context.Context, startedAt, completedAt time.Time) (*model.CollectorRun, error)
}

// ImportFailureStore tracks records whose upsert failed.
type ImportFailureStore interface {
	Record(ctx context.Context, failure model.ImportFailure) error
	Resolve(ctx context.Context, groupKey string, importType model.ImportType, naturalKeys []string) error
	OldestOpenSince(ctx context.Context, retainedAfter time.Time) (*time.Time, error)
	List(ctx context.Context, limit int32) ([]model.ImportFailure, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type ProjectStore interface {
	Upsert(ctx context.Context, project model.Project) error
}

type IssueStore interface {
	Upsert(ctx context.Context, issue model.Issue) error
}

// MergeRequestStore upserts merge requests. Nil enrichment fields keep stored values.
type MergeRequestStore interface {
	Upsert(ctx context.Context, mr model.MergeRequest) error
	Get(ctx context.Context, id string) (*model.MergeRequest, error)
}

type ClosedIssueStore interface {
	Upsert(ctx context.Context, link model.ClosedIssueOnMerge) error
	// ListUnresolvedExternal pages external issue keys of a group that have no
	// external issue row yet, ordered by key, starting after the given key.
	ListUnresolvedExternal(ctx context.Context, groupKey string, since time.Time, after *string, limit int32) ([]string, error)
}

type ExternalIssueStore interface {
	Upsert(ctx context.Context, issue model.ExternalIssue) error
}
