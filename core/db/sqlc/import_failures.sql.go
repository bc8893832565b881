package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const recordImportFailure = `-- name: RecordImportFailure :exec
INSERT INTO engineering_metrics.import_failures (
    group_key, import_type, natural_key, watermark_since, error_message, attempts, first_failed_at, last_failed_at
) VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
ON CONFLICT (group_key, import_type, natural_key) DO UPDATE SET
    watermark_since = LEAST(import_failures.watermark_since, EXCLUDED.watermark_since),
    error_message = EXCLUDED.error_message,
    attempts = import_failures.attempts + 1,
    last_failed_at = NOW()
`

type RecordImportFailureParams struct {
	GroupKey       string             `json:"group_key"`
	ImportType     string             `json:"import_type"`
	NaturalKey     string             `json:"natural_key"`
	WatermarkSince pgtype.Timestamptz `json:"watermark_since"`
	ErrorMessage   string             `json:"error_message"`
}

func (q *Queries) RecordImportFailure(ctx context.Context, arg RecordImportFailureParams) error {
	_, err := q.db.Exec(ctx, recordImportFailure,
		arg.GroupKey,
		arg.ImportType,
		arg.NaturalKey,
		arg.WatermarkSince,
		arg.ErrorMessage,
	)
	return err
}

const resolveImportFailures = `-- name: ResolveImportFailures :execrows
DELETE FROM engineering_metrics.import_failures
WHERE group_key = $1 AND import_type = $2 AND natural_key = ANY($3::text[])
`

type ResolveImportFailuresParams struct {
	GroupKey    string   `json:"group_key"`
	ImportType  string   `json:"import_type"`
	NaturalKeys []string `json:"natural_keys"`
}

func (q *Queries) ResolveImportFailures(ctx context.Context, arg ResolveImportFailuresParams) (int64, error) {
	result, err := q.db.Exec(ctx, resolveImportFailures, arg.GroupKey, arg.ImportType, arg.NaturalKeys)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// NULL when there is nothing unresolved newer than $1.
const getOldestOpenFailureSince = `-- name: GetOldestOpenFailureSince :one
SELECT MIN(watermark_since)::timestamptz
FROM engineering_metrics.import_failures
WHERE last_failed_at >= $1
`

func (q *Queries) GetOldestOpenFailureSince(ctx context.Context, retainedAfter pgtype.Timestamptz) (pgtype.Timestamptz, error) {
	row := q.db.QueryRow(ctx, getOldestOpenFailureSince, retainedAfter)
	var since pgtype.Timestamptz
	err := row.Scan(&since)
	return since, err
}

const listImportFailures = `-- name: ListImportFailures :many
SELECT group_key, import_type, natural_key, watermark_since, error_message, attempts, first_failed_at, last_failed_at
FROM engineering_metrics.import_failures
ORDER BY last_failed_at DESC
LIMIT $1
`

func (q *Queries) ListImportFailures(ctx context.Context, limit int32) ([]ImportFailure, error) {
	rows, err := q.db.Query(ctx, listImportFailures, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ImportFailure{}
	for rows.Next() {
		var i ImportFailure
		if err := rows.Scan(
			&i.GroupKey,
			&i.ImportType,
			&i.NaturalKey,
			&i.WatermarkSince,
			&i.ErrorMessage,
			&i.Attempts,
			&i.FirstFailedAt,
			&i.LastFailedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteImportFailuresBefore = `-- name: DeleteImportFailuresBefore :execrows
DELETE FROM engineering_metrics.import_failures
WHERE last_failed_at < $1
`

func (q *Queries) DeleteImportFailuresBefore(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteImportFailuresBefore, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
