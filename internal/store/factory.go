package store

import (
	"github.com/magiccrafter/engineering-metrics-data-collector/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) ImportProgress() ImportProgressStore {
	return newImportProgressStore(s.queries)
}

func (s *Stores) CollectorRuns() CollectorRunStore {
	return newCollectorRunStore(s.queries)
}

func (s *Stores) ImportFailures() ImportFailureStore {
	return newImportFailureStore(s.queries)
}

func (s *Stores) Projects() ProjectStore {
	return newProjectStore(s.queries)
}

func (s *Stores) Issues() IssueStore {
	return newIssueStore(s.queries)
}

func (s *Stores) MergeRequests() MergeRequestStore {
	return newMergeRequestStore(s.queries)
}

func (s *Stores) ClosedIssues() ClosedIssueStore {
	return newClosedIssueStore(s.queries)
}

func (s *Stores) ExternalIssues() ExternalIssueStore {
	return newExternalIssueStore(s.queries)
}
