package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getLatestCollectorRun = `-- name: GetLatestCollectorRun :one
SELECT id, started_at, completed_at
FROM engineering_metrics.collector_runs
ORDER BY completed_at DESC
LIMIT 1
`

func (q *Queries) GetLatestCollectorRun(ctx context.Context) (CollectorRun, error) {
	row := q.db.QueryRow(ctx, getLatestCollectorRun)
	var i CollectorRun
	err := row.Scan(&i.ID, &i.StartedAt, &i.CompletedAt)
	return i, err
}

const createCollectorRun = `-- name: CreateCollectorRun :one
INSERT INTO engineering_metrics.collector_runs (started_at, completed_at)
VALUES ($1, $2)
RETURNING id, started_at, completed_at
`

type CreateCollectorRunParams struct {
	StartedAt   pgtype.Timestamptz `json:"started_at"`
	CompletedAt pgtype.Timestamptz `json:"completed_at"`
}

func (q *Queries) CreateCollectorRun(ctx context.Context, arg CreateCollectorRunParams) (CollectorRun, error) {
	row := q.db.QueryRow(ctx, createCollectorRun, arg.StartedAt, arg.CompletedAt)
	var i CollectorRun
	err := row.Scan(&i.ID, &i.StartedAt, &i.CompletedAt)
	return i, err
}
