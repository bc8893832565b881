package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const importProgressColumns = `id, group_key, import_type, watermark_since, last_cursor, total_processed,
       status, started_at, last_activity_at, completed_at, error_message`

func scanImportProgress(row pgx.Row) (ImportProgress, error) {
	var i ImportProgress
	err := row.Scan(
		&i.ID,
		&i.GroupKey,
		&i.ImportType,
		&i.WatermarkSince,
		&i.LastCursor,
		&i.TotalProcessed,
		&i.Status,
		&i.StartedAt,
		&i.LastActivityAt,
		&i.CompletedAt,
		&i.ErrorMessage,
	)
	return i, err
}

const getOpenImportProgress = `-- name: GetOpenImportProgress :one
SELECT ` + importProgressColumns + `
FROM engineering_metrics.import_progress
WHERE group_key = $1 AND import_type = $2 AND status IN ('in_progress', 'failed')
ORDER BY started_at DESC
LIMIT 1
`

type GetOpenImportProgressParams struct {
	GroupKey   string `json:"group_key"`
	ImportType string `json:"import_type"`
}

func (q *Queries) GetOpenImportProgress(ctx context.Context, arg GetOpenImportProgressParams) (ImportProgress, error) {
	return scanImportProgress(q.db.QueryRow(ctx, getOpenImportProgress, arg.GroupKey, arg.ImportType))
}

const getImportProgress = `-- name: GetImportProgress :one
SELECT ` + importProgressColumns + `
FROM engineering_metrics.import_progress
WHERE id = $1
`

func (q *Queries) GetImportProgress(ctx context.Context, id int64) (ImportProgress, error) {
	return scanImportProgress(q.db.QueryRow(ctx, getImportProgress, id))
}

// Returns pgx.ErrNoRows when another open lineage already exists for the key.
const createImportProgress = `-- name: CreateImportProgress :one
INSERT INTO engineering_metrics.import_progress (
    id, group_key, import_type, watermark_since, total_processed, status, started_at, last_activity_at
) VALUES ($1, $2, $3, $4, 0, 'in_progress', NOW(), NOW())
ON CONFLICT (group_key, import_type) WHERE status IN ('in_progress', 'failed') DO NOTHING
RETURNING ` + importProgressColumns + `
`

type CreateImportProgressParams struct {
	ID             int64              `json:"id"`
	GroupKey       string             `json:"group_key"`
	ImportType     string             `json:"import_type"`
	WatermarkSince pgtype.Timestamptz `json:"watermark_since"`
}

func (q *Queries) CreateImportProgress(ctx context.Context, arg CreateImportProgressParams) (ImportProgress, error) {
	return scanImportProgress(q.db.QueryRow(ctx, createImportProgress,
		arg.ID,
		arg.GroupKey,
		arg.ImportType,
		arg.WatermarkSince,
	))
}

const reopenImportProgress = `-- name: ReopenImportProgress :one
UPDATE engineering_metrics.import_progress
SET status = 'in_progress', error_message = NULL, completed_at = NULL, last_activity_at = NOW()
WHERE id = $1 AND status IN ('in_progress', 'failed')
RETURNING ` + importProgressColumns + `
`

func (q *Queries) ReopenImportProgress(ctx context.Context, id int64) (ImportProgress, error) {
	return scanImportProgress(q.db.QueryRow(ctx, reopenImportProgress, id))
}

const checkpointImportProgress = `-- name: CheckpointImportProgress :execrows
UPDATE engineering_metrics.import_progress
SET last_cursor = COALESCE($2, last_cursor),
    total_processed = total_processed + $3,
    last_activity_at = NOW()
WHERE id = $1 AND status = 'in_progress'
`

type CheckpointImportProgressParams struct {
	ID        int64   `json:"id"`
	Cursor    *string `json:"cursor"`
	Processed int32   `json:"processed"`
}

func (q *Queries) CheckpointImportProgress(ctx context.Context, arg CheckpointImportProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, checkpointImportProgress, arg.ID, arg.Cursor, arg.Processed)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const completeImportProgress = `-- name: CompleteImportProgress :execrows
UPDATE engineering_metrics.import_progress
SET status = 'completed', completed_at = NOW(), last_activity_at = NOW(), error_message = NULL
WHERE id = $1 AND status = 'in_progress'
`

func (q *Queries) CompleteImportProgress(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, completeImportProgress, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failImportProgress = `-- name: FailImportProgress :execrows
UPDATE engineering_metrics.import_progress
SET status = 'failed', error_message = $2, last_activity_at = NOW()
WHERE id = $1 AND status = 'in_progress'
`

type FailImportProgressParams struct {
	ID           int64   `json:"id"`
	ErrorMessage *string `json:"error_message"`
}

func (q *Queries) FailImportProgress(ctx context.Context, arg FailImportProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, failImportProgress, arg.ID, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listImportProgress = `-- name: ListImportProgress :many
SELECT ` + importProgressColumns + `
FROM engineering_metrics.import_progress
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY last_activity_at DESC
LIMIT $2
`

type ListImportProgressParams struct {
	Status *string `json:"status"`
	Limit  int32   `json:"limit"`
}

func (q *Queries) ListImportProgress(ctx context.Context, arg ListImportProgressParams) ([]ImportProgress, error) {
	rows, err := q.db.Query(ctx, listImportProgress, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ImportProgress{}
	for rows.Next() {
		i, err := scanImportProgress(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// In-progress lineages are never deleted, whatever their age. A stale failed lineage is;
// its group and type then restart from the first page.
const deleteFinishedImportProgressBefore = `-- name: DeleteFinishedImportProgressBefore :execrows
DELETE FROM engineering_metrics.import_progress
WHERE status IN ('completed', 'failed')
  AND last_activity_at < $1
`

func (q *Queries) DeleteFinishedImportProgressBefore(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteFinishedImportProgressBefore, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
