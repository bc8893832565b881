package sqlc

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Project struct {
	PID       string `json:"p_id"`
	PName     string `json:"p_name"`
	PPath     string `json:"p_path"`
	PFullPath string `json:"p_full_path"`
	PWebUrl   string `json:"p_web_url"`
	Topics    []byte `json:"topics"`
	GroupKey  string `json:"group_key"`
}

type Issue struct {
	IssueID     string             `json:"issue_id"`
	IssueIid    string             `json:"issue_iid"`
	IssueTitle  string             `json:"issue_title"`
	IssueWebUrl string             `json:"issue_web_url"`
	ProjectID   string             `json:"project_id"`
	Labels      []byte             `json:"labels"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
	ClosedAt    pgtype.Timestamptz `json:"closed_at"`
	CreatedBy   string             `json:"created_by"`
	UpdatedBy   *string            `json:"updated_by"`
}

type MergeRequest struct {
	MrID             string             `json:"mr_id"`
	MrIid            string             `json:"mr_iid"`
	MrTitle          string             `json:"mr_title"`
	MrDescription    *string            `json:"mr_description"`
	MrWebUrl         string             `json:"mr_web_url"`
	ProjectID        string             `json:"project_id"`
	ProjectName      *string            `json:"project_name"`
	ProjectPath      *string            `json:"project_path"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
	MergedAt         pgtype.Timestamptz `json:"merged_at"`
	CreatedBy        string             `json:"created_by"`
	MergedBy         *string            `json:"merged_by"`
	Approved         bool               `json:"approved"`
	ApprovedBy       []byte             `json:"approved_by"`
	DiffStatsSummary []byte             `json:"diff_stats_summary"`
	Labels           []byte             `json:"labels"`
	MrAiTitle        *string            `json:"mr_ai_title"`
	MrAiSummary      *string            `json:"mr_ai_summary"`
	MrAiModel        *string            `json:"mr_ai_model"`
	MrAiCategory     *string            `json:"mr_ai_category"`
}

type ClosedIssuesOnMerge struct {
	MrID      string             `json:"mr_id"`
	MrIid     string             `json:"mr_iid"`
	IssueID   string             `json:"issue_id"`
	IssueIid  *string            `json:"issue_iid"`
	ProjectID string             `json:"project_id"`
	GroupKey  string             `json:"group_key"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type ExternalIssue struct {
	IssueTracker   string             `json:"issue_tracker"`
	IssueID        string             `json:"issue_id"`
	IssueDisplayID string             `json:"issue_display_id"`
	Title          string             `json:"title"`
	WebUrl         string             `json:"web_url"`
	ImportedAt     pgtype.Timestamptz `json:"imported_at"`
}

type ImportProgress struct {
	ID             int64              `json:"id"`
	GroupKey       string             `json:"group_key"`
	ImportType     string             `json:"import_type"`
	WatermarkSince pgtype.Timestamptz `json:"watermark_since"`
	LastCursor     *string            `json:"last_cursor"`
	TotalProcessed int32              `json:"total_processed"`
	Status         string             `json:"status"`
	StartedAt      pgtype.Timestamptz `json:"started_at"`
	LastActivityAt pgtype.Timestamptz `json:"last_activity_at"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
	ErrorMessage   *string            `json:"error_message"`
}

type CollectorRun struct {
	ID          int64              `json:"id"`
	StartedAt   pgtype.Timestamptz `json:"started_at"`
	CompletedAt pgtype.Timestamptz `json:"completed_at"`
}

type ImportFailure struct {
	GroupKey       string             `json:"group_key"`
	ImportType     string             `json:"import_type"`
	NaturalKey     string             `json:"natural_key"`
	WatermarkSince pgtype.Timestamptz `json:"watermark_since"`
	ErrorMessage   string             `json:"error_message"`
	Attempts       int32              `json:"attempts"`
	FirstFailedAt  pgtype.Timestamptz `json:"first_failed_at"`
	LastFailedAt   pgtype.Timestamptz `json:"last_failed_at"`
}
