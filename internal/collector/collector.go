package collector

import (
	"context"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

// GitLab is the part of the GitLab client the collector walks.
type GitLab interface {
	FetchProjects(ctx context.Context, groupKey string, since time.Time, cursor *string) (importer.Page[*gitlab.ProjectNode], error)
	FetchIssues(ctx context.Context, groupKey string, since time.Time, cursor *string) (importer.Page[*gitlab.IssueNode], error)
	FetchMergeRequests(ctx context.Context, groupKey string, since time.Time, cursor *string) (importer.Page[*gitlab.MergeRequestNode], error)
	ClosesIssues(ctx context.Context, projectID, mrIID string) ([]gitlab.ClosedIssue, error)
}

// IssueResolver resolves an external issue key through its tracker.
type IssueResolver interface {
	ExternalIssue(ctx context.Context, key string) (model.ExternalIssue, error)
}

// Deps are the collaborators of the import walkers. Tracker and Summaries are optional:
// without a tracker there is no linked issue walker, without Summaries merge requests
// are stored without derived fields.
type Deps struct {
	GitLab    GitLab
	Tracker   IssueResolver
	Summaries importer.Enricher[model.MergeRequest]

	Progress       importer.ProgressStore
	Failures       importer.FailureStore
	Projects       store.ProjectStore
	Issues         store.IssueStore
	ClosedIssues   store.ClosedIssueStore
	ExternalIssues store.ExternalIssueStore
	Tx             store.TxRunner

	// LinkedIssuePageSize bounds how many keys are resolved per checkpoint.
	LinkedIssuePageSize int
	// LinkedIssueLookback widens the linked issue window below since, so links written
	// by a previous run after this walker passed them are still picked up.
	LinkedIssueLookback time.Duration
}

// Walkers builds one walker per import type. Walkers are stateless and shared by all groups.
func Walkers(d Deps) []importer.Runner {
	walkers := []importer.Runner{
		importer.NewWalker(ProjectsEntity(d), d.Progress, d.Failures),
		importer.NewWalker(IssuesEntity(d), d.Progress, d.Failures),
		importer.NewWalker(MergeRequestsEntity(d), d.Progress, d.Failures),
	}
	if d.Tracker != nil {
		walkers = append(walkers, importer.NewWalker(LinkedIssuesEntity(d), d.Progress, d.Failures))
	}
	return walkers
}

// ProjectsEntity skips malformed projects; one bad node should not hold back the rest.
func ProjectsEntity(d Deps) importer.Entity[*gitlab.ProjectNode, model.Project] {
	return importer.Entity[*gitlab.ProjectNode, model.Project]{
		Type:      model.ImportTypeProjects,
		Source:    importer.SourceFunc[*gitlab.ProjectNode](d.GitLab.FetchProjects),
		Transform: gitlab.ProjectFromNode,
		Key:       func(p model.Project) string { return p.ID },
		Sink:      importer.SinkFunc[model.Project](d.Projects.Upsert),
		Policy:    importer.Lenient,
	}
}

func IssuesEntity(d Deps) importer.Entity[*gitlab.IssueNode, model.Issue] {
	return importer.Entity[*gitlab.IssueNode, model.Issue]{
		Type:      model.ImportTypeIssues,
		Source:    importer.SourceFunc[*gitlab.IssueNode](d.GitLab.FetchIssues),
		Transform: gitlab.IssueFromNode,
		Key:       func(i model.Issue) string { return i.ID },
		Sink:      importer.SinkFunc[model.Issue](d.Issues.Upsert),
		Policy:    importer.Strict,
	}
}

// MergeRequestsEntity only keeps merge requests merged since the watermark. Closed issue
// discovery runs before the summary so a failed summary still stores the links.
func MergeRequestsEntity(d Deps) importer.Entity[*gitlab.MergeRequestNode, model.MergeRequest] {
	enrichers := []importer.Enricher[model.MergeRequest]{NewClosedIssuesEnricher(d.GitLab)}
	if d.Summaries != nil {
		enrichers = append(enrichers, d.Summaries)
	}
	return importer.Entity[*gitlab.MergeRequestNode, model.MergeRequest]{
		Type:      model.ImportTypeMergeRequests,
		Source:    importer.SourceFunc[*gitlab.MergeRequestNode](d.GitLab.FetchMergeRequests),
		Transform: gitlab.MergeRequestFromNode,
		Key:       func(mr model.MergeRequest) string { return mr.ID },
		Filter:    gitlab.MergedSince,
		Enrichers: enrichers,
		Sink:      NewMergeRequestSink(d.Tx),
		Policy:    importer.Strict,
	}
}

func LinkedIssuesEntity(d Deps) importer.Entity[LinkedIssue, model.ExternalIssue] {
	return importer.Entity[LinkedIssue, model.ExternalIssue]{
		Type:      model.ImportTypeLinkedIssues,
		Source:    NewLinkedIssueSource(d.ClosedIssues, d.Tracker, d.LinkedIssuePageSize, d.LinkedIssueLookback),
		Transform: LinkedIssueToExternal,
		Key:       func(i model.ExternalIssue) string { return i.DisplayID },
		Sink:      importer.SinkFunc[model.ExternalIssue](d.ExternalIssues.Upsert),
		Policy:    importer.Lenient,
	}
}
