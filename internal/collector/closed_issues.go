package collector

import (
	"context"
	"fmt"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

// ClosedIssueLister lists the issues a merge request closes.
type ClosedIssueLister interface {
	ClosesIssues(ctx context.Context, projectID, mrIID string) ([]gitlab.ClosedIssue, error)
}

// ClosedIssuesEnricher attaches the issues a merge request closes so the sink can write
// them with the record.
type ClosedIssuesEnricher struct {
	gitlab ClosedIssueLister
}

func NewClosedIssuesEnricher(gl ClosedIssueLister) *ClosedIssuesEnricher {
	return &ClosedIssuesEnricher{gitlab: gl}
}

func (e *ClosedIssuesEnricher) Name() string {
	return "closed_issues"
}

func (e *ClosedIssuesEnricher) Enrich(ctx context.Context, mr model.MergeRequest) (model.MergeRequest, error) {
	issues, err := e.gitlab.ClosesIssues(ctx, mr.ProjectID, mr.IID)
	if err != nil {
		return mr, err
	}

	links := make([]model.ClosedIssueOnMerge, 0, len(issues))
	for _, issue := range issues {
		links = append(links, model.ClosedIssueOnMerge{
			MergeRequestID:  mr.ID,
			MergeRequestIID: mr.IID,
			IssueID:         issue.ID,
			IssueIID:        issue.IID,
			ProjectID:       mr.ProjectID,
			GroupKey:        mr.GroupKey,
		})
	}
	mr.ClosedIssues = links
	return mr, nil
}

// MergeRequestSink writes a merge request and its closed issue links in one transaction.
type MergeRequestSink struct {
	tx store.TxRunner
}

func NewMergeRequestSink(tx store.TxRunner) *MergeRequestSink {
	return &MergeRequestSink{tx: tx}
}

func (s *MergeRequestSink) Upsert(ctx context.Context, mr model.MergeRequest) error {
	return s.tx.WithTx(ctx, func(stores store.StoreProvider) error {
		if err := stores.MergeRequests().Upsert(ctx, mr); err != nil {
			return fmt.Errorf("upserting merge request: %w", err)
		}
		for _, link := range mr.ClosedIssues {
			if err := stores.ClosedIssues().Upsert(ctx, link); err != nil {
				return fmt.Errorf("upserting closed issue %s: %w", link.IssueID, err)
			}
		}
		return nil
	})
}
