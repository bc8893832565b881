package model

import "time"

type ImportStatus string

const (
	ImportStatusInProgress ImportStatus = "in_progress"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// ImportType names one entity collection walked per group.
type ImportType string

const (
	ImportTypeProjects      ImportType = "projects"
	ImportTypeIssues        ImportType = "issues"
	ImportTypeMergeRequests ImportType = "merge_requests"
	ImportTypeLinkedIssues  ImportType = "linked_issues"
)

// ImportProgress is one import lineage of a (group, import type) pair.
// LastCursor is the cursor of the last checkpointed page and is never rewound.
type ImportProgress struct {
	ID             int64        `json:"id"`
	GroupKey       string       `json:"group_key"`
	ImportType     ImportType   `json:"import_type"`
	WatermarkSince time.Time    `json:"watermark_since"`
	LastCursor     *string      `json:"last_cursor,omitempty"`
	TotalProcessed int          `json:"total_processed"`
	Status         ImportStatus `json:"status"`
	StartedAt      time.Time    `json:"started_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage   *string      `json:"error_message,omitempty"`
}

// CollectorRun records a fully successful run. Its CompletedAt is the next run's since.
type CollectorRun struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ImportFailure is a record whose persistence failed and was not yet written by a later run.
type ImportFailure struct {
	GroupKey       string     `json:"group_key"`
	ImportType     ImportType `json:"import_type"`
	NaturalKey     string     `json:"natural_key"`
	WatermarkSince time.Time  `json:"watermark_since"`
	ErrorMessage   string     `json:"error_message"`
	Attempts       int        `json:"attempts"`
	FirstFailedAt  time.Time  `json:"first_failed_at"`
	LastFailedAt   time.Time  `json:"last_failed_at"`
}
