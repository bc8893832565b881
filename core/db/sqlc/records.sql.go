package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertProject = `-- name: UpsertProject :exec
INSERT INTO engineering_metrics.projects (p_id, p_name, p_path, p_full_path, p_web_url, topics, group_key)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (p_id) DO UPDATE SET
    p_name = EXCLUDED.p_name,
    p_path = EXCLUDED.p_path,
    p_full_path = EXCLUDED.p_full_path,
    p_web_url = EXCLUDED.p_web_url,
    topics = EXCLUDED.topics,
    group_key = EXCLUDED.group_key
`

func (q *Queries) UpsertProject(ctx context.Context, arg Project) error {
	_, err := q.db.Exec(ctx, upsertProject,
		arg.PID,
		arg.PName,
		arg.PPath,
		arg.PFullPath,
		arg.PWebUrl,
		arg.Topics,
		arg.GroupKey,
	)
	return err
}

const upsertIssue = `-- name: UpsertIssue :exec
INSERT INTO engineering_metrics.issues (
    issue_id, issue_iid, issue_title, issue_web_url, project_id, labels,
    created_at, updated_at, closed_at, created_by, updated_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (issue_id) DO UPDATE SET
    issue_iid = EXCLUDED.issue_iid,
    issue_title = EXCLUDED.issue_title,
    issue_web_url = EXCLUDED.issue_web_url,
    project_id = EXCLUDED.project_id,
    labels = EXCLUDED.labels,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at,
    closed_at = EXCLUDED.closed_at,
    created_by = EXCLUDED.created_by,
    updated_by = EXCLUDED.updated_by
`

func (q *Queries) UpsertIssue(ctx context.Context, arg Issue) error {
	_, err := q.db.Exec(ctx, upsertIssue,
		arg.IssueID,
		arg.IssueIid,
		arg.IssueTitle,
		arg.IssueWebUrl,
		arg.ProjectID,
		arg.Labels,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.ClosedAt,
		arg.CreatedBy,
		arg.UpdatedBy,
	)
	return err
}

// Enrichment columns keep their stored value when the incoming one is NULL.
const upsertMergeRequest = `-- name: UpsertMergeRequest :exec
INSERT INTO engineering_metrics.merge_requests (
    mr_id, mr_iid, mr_title, mr_description, mr_web_url, project_id, project_name, project_path,
    created_at, updated_at, merged_at, created_by, merged_by, approved, approved_by,
    diff_stats_summary, labels, mr_ai_title, mr_ai_summary, mr_ai_model, mr_ai_category
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (mr_id) DO UPDATE SET
    mr_iid = EXCLUDED.mr_iid,
    mr_title = EXCLUDED.mr_title,
    mr_description = EXCLUDED.mr_description,
    mr_web_url = EXCLUDED.mr_web_url,
    project_id = EXCLUDED.project_id,
    project_name = EXCLUDED.project_name,
    project_path = EXCLUDED.project_path,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at,
    merged_at = EXCLUDED.merged_at,
    created_by = EXCLUDED.created_by,
    merged_by = EXCLUDED.merged_by,
    approved = EXCLUDED.approved,
    approved_by = EXCLUDED.approved_by,
    diff_stats_summary = EXCLUDED.diff_stats_summary,
    labels = EXCLUDED.labels,
    mr_ai_title = COALESCE(EXCLUDED.mr_ai_title, merge_requests.mr_ai_title),
    mr_ai_summary = COALESCE(EXCLUDED.mr_ai_summary, merge_requests.mr_ai_summary),
    mr_ai_model = COALESCE(EXCLUDED.mr_ai_model, merge_requests.mr_ai_model),
    mr_ai_category = COALESCE(EXCLUDED.mr_ai_category, merge_requests.mr_ai_category)
`

func (q *Queries) UpsertMergeRequest(ctx context.Context, arg MergeRequest) error {
	_, err := q.db.Exec(ctx, upsertMergeRequest,
		arg.MrID,
		arg.MrIid,
		arg.MrTitle,
		arg.MrDescription,
		arg.MrWebUrl,
		arg.ProjectID,
		arg.ProjectName,
		arg.ProjectPath,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.MergedAt,
		arg.CreatedBy,
		arg.MergedBy,
		arg.Approved,
		arg.ApprovedBy,
		arg.DiffStatsSummary,
		arg.Labels,
		arg.MrAiTitle,
		arg.MrAiSummary,
		arg.MrAiModel,
		arg.MrAiCategory,
	)
	return err
}

const getMergeRequest = `-- name: GetMergeRequest :one
SELECT mr_id, mr_iid, mr_title, mr_description, mr_web_url, project_id, project_name, project_path,
       created_at, updated_at, merged_at, created_by, merged_by, approved, approved_by,
       diff_stats_summary, labels, mr_ai_title, mr_ai_summary, mr_ai_model, mr_ai_category
FROM engineering_metrics.merge_requests
WHERE mr_id = $1
`

func (q *Queries) GetMergeRequest(ctx context.Context, mrID string) (MergeRequest, error) {
	row := q.db.QueryRow(ctx, getMergeRequest, mrID)
	var i MergeRequest
	err := row.Scan(
		&i.MrID,
		&i.MrIid,
		&i.MrTitle,
		&i.MrDescription,
		&i.MrWebUrl,
		&i.ProjectID,
		&i.ProjectName,
		&i.ProjectPath,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.MergedAt,
		&i.CreatedBy,
		&i.MergedBy,
		&i.Approved,
		&i.ApprovedBy,
		&i.DiffStatsSummary,
		&i.Labels,
		&i.MrAiTitle,
		&i.MrAiSummary,
		&i.MrAiModel,
		&i.MrAiCategory,
	)
	return i, err
}

const upsertClosedIssueOnMerge = `-- name: UpsertClosedIssueOnMerge :exec
INSERT INTO engineering_metrics.closed_issues_on_merge (mr_id, mr_iid, issue_id, issue_iid, project_id, group_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (mr_id, issue_id) DO UPDATE SET
    mr_iid = EXCLUDED.mr_iid,
    issue_iid = EXCLUDED.issue_iid,
    project_id = EXCLUDED.project_id,
    group_key = EXCLUDED.group_key
`

type UpsertClosedIssueOnMergeParams struct {
	MrID      string  `json:"mr_id"`
	MrIid     string  `json:"mr_iid"`
	IssueID   string  `json:"issue_id"`
	IssueIid  *string `json:"issue_iid"`
	ProjectID string  `json:"project_id"`
	GroupKey  string  `json:"group_key"`
}

func (q *Queries) UpsertClosedIssueOnMerge(ctx context.Context, arg UpsertClosedIssueOnMergeParams) error {
	_, err := q.db.Exec(ctx, upsertClosedIssueOnMerge,
		arg.MrID,
		arg.MrIid,
		arg.IssueID,
		arg.IssueIid,
		arg.ProjectID,
		arg.GroupKey,
	)
	return err
}

const upsertExternalIssue = `-- name: UpsertExternalIssue :exec
INSERT INTO engineering_metrics.external_issues (issue_tracker, issue_id, issue_display_id, title, web_url, imported_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (issue_tracker, issue_id) DO UPDATE SET
    issue_display_id = EXCLUDED.issue_display_id,
    title = EXCLUDED.title,
    web_url = EXCLUDED.web_url,
    imported_at = NOW()
`

type UpsertExternalIssueParams struct {
	IssueTracker   string `json:"issue_tracker"`
	IssueID        string `json:"issue_id"`
	IssueDisplayID string `json:"issue_display_id"`
	Title          string `json:"title"`
	WebUrl         string `json:"web_url"`
}

func (q *Queries) UpsertExternalIssue(ctx context.Context, arg UpsertExternalIssueParams) error {
	_, err := q.db.Exec(ctx, upsertExternalIssue,
		arg.IssueTracker,
		arg.IssueID,
		arg.IssueDisplayID,
		arg.Title,
		arg.WebUrl,
	)
	return err
}

// Keyset page over external issue keys linked from merge requests of a group
// that have no external_issues row yet.
const listUnresolvedExternalIssueKeys = `-- name: ListUnresolvedExternalIssueKeys :many
SELECT DISTINCT c.issue_id
FROM engineering_metrics.closed_issues_on_merge c
WHERE c.group_key = $1
  AND c.issue_iid IS NULL
  AND c.created_at >= $2
  AND ($3::text IS NULL OR c.issue_id > $3::text)
  AND NOT EXISTS (
      SELECT 1 FROM engineering_metrics.external_issues e
      WHERE e.issue_tracker = $4 AND e.issue_display_id = c.issue_id
  )
ORDER BY c.issue_id
LIMIT $5
`

type ListUnresolvedExternalIssueKeysParams struct {
	GroupKey     string             `json:"group_key"`
	Since        pgtype.Timestamptz `json:"since"`
	After        *string            `json:"after"`
	IssueTracker string             `json:"issue_tracker"`
	Limit        int32              `json:"limit"`
}

func (q *Queries) ListUnresolvedExternalIssueKeys(ctx context.Context, arg ListUnresolvedExternalIssueKeysParams) ([]string, error) {
	rows, err := q.db.Query(ctx, listUnresolvedExternalIssueKeys,
		arg.GroupKey,
		arg.Since,
		arg.After,
		arg.IssueTracker,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var issueID string
		if err := rows.Scan(&issueID); err != nil {
			return nil, err
		}
		items = append(items, issueID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
