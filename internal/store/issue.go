package store

import (
	"context"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type issueStore struct {
	queries *sqlc.Queries
}

func newIssueStore(queries *sqlc.Queries) IssueStore {
	return &issueStore{queries: queries}
}

func (s *issueStore) Upsert(ctx context.Context, issue model.Issue) error {
	labels, err := jsonb(issue.Labels)
	if err != nil {
		return err
	}
	return s.queries.UpsertIssue(ctx, sqlc.Issue{
		IssueID:     issue.ID,
		IssueIid:    issue.IID,
		IssueTitle:  issue.Title,
		IssueWebUrl: issue.WebURL,
		ProjectID:   issue.ProjectID,
		Labels:      labels,
		CreatedAt:   timestamptz(issue.CreatedAt),
		UpdatedAt:   timestamptz(issue.UpdatedAt),
		ClosedAt:    nullTimestamptz(issue.ClosedAt),
		CreatedBy:   issue.CreatedBy,
		UpdatedBy:   issue.UpdatedBy,
	})
}
