package model

import "time"

type Issue struct {
	ID        string     `json:"issue_id"`
	IID       string     `json:"issue_iid"`
	Title     string     `json:"issue_title"`
	WebURL    string     `json:"issue_web_url"`
	ProjectID string     `json:"project_id"`
	Labels    []string   `json:"labels"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedBy string     `json:"created_by"`
	UpdatedBy *string    `json:"updated_by,omitempty"`
}

// IssueTrackerJira is the issue_tracker value of external issues resolved through Jira.
const IssueTrackerJira = "jira"

// ExternalIssue is an issue of another tracker referenced by a merge request.
// ID is the tracker's internal id, DisplayID the human key (e.g. PROJ-12).
type ExternalIssue struct {
	IssueTracker string    `json:"issue_tracker"`
	ID           string    `json:"issue_id"`
	DisplayID    string    `json:"issue_display_id"`
	Title        string    `json:"title"`
	WebURL       string    `json:"web_url"`
	ImportedAt   time.Time `json:"imported_at"`
}

// ClosedIssueOnMerge links a merge request to an issue it closes.
// IssueIID is nil for issues of an external tracker; IssueID then holds the external key.
type ClosedIssueOnMerge struct {
	MergeRequestID  string  `json:"mr_id"`
	MergeRequestIID string  `json:"mr_iid"`
	IssueID         string  `json:"issue_id"`
	IssueIID        *string `json:"issue_iid,omitempty"`
	ProjectID       string  `json:"project_id"`
	GroupKey        string  `json:"group_key"`
}

func (c ClosedIssueOnMerge) External() bool {
	return c.IssueIID == nil
}
