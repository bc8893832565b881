package store

import (
	"context"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type projectStore struct {
	queries *sqlc.Queries
}

func newProjectStore(queries *sqlc.Queries) ProjectStore {
	return &projectStore{queries: queries}
}

func (s *projectStore) Upsert(ctx context.Context, p model.Project) error {
	topics, err := jsonb(p.Topics)
	if err != nil {
		return err
	}
	return s.queries.UpsertProject(ctx, sqlc.Project{
		PID:       p.ID,
		PName:     p.Name,
		PPath:     p.Path,
		PFullPath: p.FullPath,
		PWebUrl:   p.WebURL,
		Topics:    topics,
		GroupKey:  p.GroupKey,
	})
}
