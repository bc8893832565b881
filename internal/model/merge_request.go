package model

import "time"

type MergeRequest struct {
	ID               string            `json:"mr_id"`
	IID              string            `json:"mr_iid"`
	Title            string            `json:"mr_title"`
	Description      *string           `json:"mr_description,omitempty"`
	WebURL           string            `json:"mr_web_url"`
	ProjectID        string            `json:"project_id"`
	ProjectName      *string           `json:"project_name,omitempty"`
	ProjectPath      *string           `json:"project_path,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	MergedAt         *time.Time        `json:"merged_at,omitempty"`
	CreatedBy        string            `json:"created_by"`
	MergedBy         *string           `json:"merged_by,omitempty"`
	Approved         bool              `json:"approved"`
	ApprovedBy       []string          `json:"approved_by"`
	DiffStatsSummary *DiffStatsSummary `json:"diff_stats_summary,omitempty"`
	Labels           []string          `json:"labels"`

	// GroupKey is the collected group the record was fetched for. It is not a column of
	// merge_requests; closed issue links carry it.
	GroupKey string `json:"-"`

	// Derived by the enrichment service. Nil fields never overwrite stored values.
	AI *MergeRequestAI `json:"ai,omitempty"`

	// Issues this merge request closes, written in the same transaction as the record.
	ClosedIssues []ClosedIssueOnMerge `json:"closed_issues,omitempty"`
}

type DiffStatsSummary struct {
	Additions int `json:"additions"`
	Changes   int `json:"changes"`
	Deletions int `json:"deletions"`
	FileCount int `json:"file_count"`
}

type MergeRequestAI struct {
	Category string `json:"mr_ai_category"`
	Title    string `json:"mr_ai_title"`
	Summary  string `json:"mr_ai_summary"`
	Model    string `json:"mr_ai_model"`
}

// Merge request categories the enrichment service may assign.
const (
	CategoryFeature  = "Feature"
	CategoryBugfix   = "Bugfix"
	CategoryRefactor = "Refactor"
	CategoryPlatform = "Platform"
	CategoryChore    = "Chore"
)

var MergeRequestCategories = []string{
	CategoryFeature,
	CategoryBugfix,
	CategoryRefactor,
	CategoryPlatform,
	CategoryChore,
}
