package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/id"
	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// ErrLineageClosed is returned when a lineage that is no longer in progress is updated.
var ErrLineageClosed = errors.New("import lineage is not in progress")

type importProgressStore struct {
	queries *sqlc.Queries
}

func newImportProgressStore(queries *sqlc.Queries) ImportProgressStore {
	return &importProgressStore{queries: queries}
}

func (s *importProgressStore) Open(ctx context.Context, groupKey string, importType model.ImportType, since time.Time) (*model.ImportProgress, bool, error) {
	key := sqlc.GetOpenImportProgressParams{GroupKey: groupKey, ImportType: string(importType)}

	row, err := s.queries.GetOpenImportProgress(ctx, key)
	if err == nil {
		p, err := s.reopen(ctx, row)
		return p, true, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("loading open import progress: %w", err)
	}

	row, err = s.queries.CreateImportProgress(ctx, sqlc.CreateImportProgressParams{
		ID:             id.New(),
		GroupKey:       groupKey,
		ImportType:     string(importType),
		WatermarkSince: timestamptz(since),
	})
	if err == nil {
		return toImportProgressModel(row), false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("creating import progress: %w", err)
	}

	// Lost a race against another open lineage for the same key.
	row, err = s.queries.GetOpenImportProgress(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("loading open import progress: %w", err)
	}
	p, err := s.reopen(ctx, row)
	return p, true, err
}

func (s *importProgressStore) reopen(ctx context.Context, row sqlc.ImportProgress) (*model.ImportProgress, error) {
	if row.Status == string(model.ImportStatusInProgress) {
		return toImportProgressModel(row), nil
	}
	reopened, err := s.queries.ReopenImportProgress(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("reopening import progress %d: %w", row.ID, err)
	}
	return toImportProgressModel(reopened), nil
}

func (s *importProgressStore) Get(ctx context.Context, id int64) (*model.ImportProgress, error) {
	row, err := s.queries.GetImportProgress(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toImportProgressModel(row), nil
}

func (s *importProgressStore) Checkpoint(ctx context.Context, id int64, cursor *string, processed int) error {
	n, err := s.queries.CheckpointImportProgress(ctx, sqlc.CheckpointImportProgressParams{
		ID:        id,
		Cursor:    cursor,
		Processed: int32(processed),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("checkpointing import progress %d: %w", id, ErrLineageClosed)
	}
	return nil
}

func (s *importProgressStore) Complete(ctx context.Context, id int64) error {
	n, err := s.queries.CompleteImportProgress(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("completing import progress %d: %w", id, ErrLineageClosed)
	}
	return nil
}

func (s *importProgressStore) Fail(ctx context.Context, id int64, message string) error {
	n, err := s.queries.FailImportProgress(ctx, sqlc.FailImportProgressParams{
		ID:           id,
		ErrorMessage: &message,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("failing import progress %d: %w", id, ErrLineageClosed)
	}
	return nil
}

func (s *importProgressStore) List(ctx context.Context, status *model.ImportStatus, limit int32) ([]model.ImportProgress, error) {
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	rows, err := s.queries.ListImportProgress(ctx, sqlc.ListImportProgressParams{
		Status: statusArg,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.ImportProgress, 0, len(rows))
	for _, row := range rows {
		out = append(out, *toImportProgressModel(row))
	}
	return out, nil
}

func (s *importProgressStore) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.queries.DeleteFinishedImportProgressBefore(ctx, timestamptz(before))
}

func toImportProgressModel(row sqlc.ImportProgress) *model.ImportProgress {
	return &model.ImportProgress{
		ID:             row.ID,
		GroupKey:       row.GroupKey,
		ImportType:     model.ImportType(row.ImportType),
		WatermarkSince: row.WatermarkSince.Time,
		LastCursor:     row.LastCursor,
		TotalProcessed: int(row.TotalProcessed),
		Status:         model.ImportStatus(row.Status),
		StartedAt:      row.StartedAt.Time,
		LastActivityAt: row.LastActivityAt.Time,
		CompletedAt:    timePtr(row.CompletedAt),
		ErrorMessage:   row.ErrorMessage,
	}
}
