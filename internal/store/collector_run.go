package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type collectorRunStore struct {
	queries *sqlc.Queries
}

func newCollectorRunStore(queries *sqlc.Queries) CollectorRunStore {
	return &collectorRunStore{queries: queries}
}

func (s *collectorRunStore) Latest(ctx context.Context) (*model.CollectorRun, error) {
	row, err := s.queries.GetLatestCollectorRun(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCollectorRunModel(row), nil
}

func (s *collectorRunStore) Append(ctx context.Context, startedAt, completedAt time.Time) (*model.CollectorRun, error) {
	if completedAt.Before(startedAt) {
		return nil, fmt.Errorf("collector run completed at %s before it started at %s", completedAt, startedAt)
	}
	row, err := s.queries.CreateCollectorRun(ctx, sqlc.CreateCollectorRunParams{
		StartedAt:   timestamptz(startedAt),
		CompletedAt: timestamptz(completedAt),
	})
	if err != nil {
		return nil, err
	}
	return toCollectorRunModel(row), nil
}

func toCollectorRunModel(row sqlc.CollectorRun) *model.CollectorRun {
	return &model.CollectorRun{
		ID:          row.ID,
		StartedAt:   row.StartedAt.Time,
		CompletedAt: row.CompletedAt.Time,
	}
}
