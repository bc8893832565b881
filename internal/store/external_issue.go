package store

import (
	"context"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type externalIssueStore struct {
	queries *sqlc.Queries
}

func newExternalIssueStore(queries *sqlc.Queries) ExternalIssueStore {
	return &externalIssueStore{queries: queries}
}

func (s *externalIssueStore) Upsert(ctx context.Context, issue model.ExternalIssue) error {
	return s.queries.UpsertExternalIssue(ctx, sqlc.UpsertExternalIssueParams{
		IssueTracker:   issue.IssueTracker,
		IssueID:        issue.ID,
		IssueDisplayID: issue.DisplayID,
		Title:          issue.Title,
		WebUrl:         issue.WebURL,
	})
}
