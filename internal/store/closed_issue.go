package store

import (
	"context"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type closedIssueStore struct {
	queries *sqlc.Queries
}

func newClosedIssueStore(queries *sqlc.Queries) ClosedIssueStore {
	return &closedIssueStore{queries: queries}
}

func (s *closedIssueStore) Upsert(ctx context.Context, link model.ClosedIssueOnMerge) error {
	return s.queries.UpsertClosedIssueOnMerge(ctx, sqlc.UpsertClosedIssueOnMergeParams{
		MrID:      link.MergeRequestID,
		MrIid:     link.MergeRequestIID,
		IssueID:   link.IssueID,
		IssueIid:  link.IssueIID,
		ProjectID: link.ProjectID,
		GroupKey:  link.GroupKey,
	})
}

func (s *closedIssueStore) ListUnresolvedExternal(ctx context.Context, groupKey string, since time.Time, after *string, limit int32) ([]string, error) {
	return s.queries.ListUnresolvedExternalIssueKeys(ctx, sqlc.ListUnresolvedExternalIssueKeysParams{
		GroupKey:     groupKey,
		Since:        timestamptz(since),
		After:        after,
		IssueTracker: model.IssueTrackerJira,
		Limit:        limit,
	})
}
