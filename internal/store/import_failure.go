package store

import (
	"context"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type importFailureStore struct {
	queries *sqlc.Queries
}

func newImportFailureStore(queries *sqlc.Queries) ImportFailureStore {
	return &importFailureStore{queries: queries}
}

func (s *importFailureStore) Record(ctx context.Context, f model.ImportFailure) error {
	return s.queries.RecordImportFailure(ctx, sqlc.RecordImportFailureParams{
		GroupKey:       f.GroupKey,
		ImportType:     string(f.ImportType),
		NaturalKey:     f.NaturalKey,
		WatermarkSince: timestamptz(f.WatermarkSince),
		ErrorMessage:   f.ErrorMessage,
	})
}

func (s *importFailureStore) Resolve(ctx context.Context, groupKey string, importType model.ImportType, naturalKeys []string) error {
	if len(naturalKeys) == 0 {
		return nil
	}
	_, err := s.queries.ResolveImportFailures(ctx, sqlc.ResolveImportFailuresParams{
		GroupKey:    groupKey,
		ImportType:  string(importType),
		NaturalKeys: naturalKeys,
	})
	return err
}

func (s *importFailureStore) OldestOpenSince(ctx context.Context, retainedAfter time.Time) (*time.Time, error) {
	since, err := s.queries.GetOldestOpenFailureSince(ctx, timestamptz(retainedAfter))
	if err != nil {
		return nil, err
	}
	return timePtr(since), nil
}

func (s *importFailureStore) List(ctx context.Context, limit int32) ([]model.ImportFailure, error) {
	rows, err := s.queries.ListImportFailures(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.ImportFailure, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.ImportFailure{
			GroupKey:       row.GroupKey,
			ImportType:     model.ImportType(row.ImportType),
			NaturalKey:     row.NaturalKey,
			WatermarkSince: row.WatermarkSince.Time,
			ErrorMessage:   row.ErrorMessage,
			Attempts:       int(row.Attempts),
			FirstFailedAt:  row.FirstFailedAt.Time,
			LastFailedAt:   row.LastFailedAt.Time,
		})
	}
	return out, nil
}

func (s *importFailureStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.queries.DeleteImportFailuresBefore(ctx, timestamptz(before))
}
