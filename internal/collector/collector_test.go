package collector_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/collector"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

var _ = Describe("Collector", func() {
	var (
		ctx      context.Context
		gl       *fakeGitLab
		tracker  *fakeTracker
		db       *memDB
		progress *memProgress
		since    time.Time
		deps     collector.Deps
	)

	BeforeEach(func() {
		ctx = context.Background()
		since = time.Date(2020, 3, 2, 9, 15, 0, 0, time.UTC)
		gl = &fakeGitLab{closes: map[string][]gitlab.ClosedIssue{}}
		tracker = &fakeTracker{issues: map[string]model.ExternalIssue{}, errs: map[string]error{}}
		db = newMemDB()
		progress = newMemProgress()
		deps = collector.Deps{
			GitLab:         gl,
			Tracker:        tracker,
			Progress:       progress,
			Projects:       projectStore{db},
			Issues:         issueStore{db},
			ClosedIssues:   closedIssueStore{db: db},
			ExternalIssues: externalIssueStore{db},
			Tx:             db,
		}
	})

	Describe("Walkers", func() {
		It("builds one walker per import type", func() {
			var types []model.ImportType
			for _, w := range collector.Walkers(deps) {
				types = append(types, w.ImportType())
			}
			Expect(types).To(Equal([]model.ImportType{
				model.ImportTypeProjects,
				model.ImportTypeIssues,
				model.ImportTypeMergeRequests,
				model.ImportTypeLinkedIssues,
			}))
		})

		It("skips linked issues without a tracker", func() {
			deps.Tracker = nil
			Expect(collector.Walkers(deps)).To(HaveLen(3))
		})
	})

	Describe("merge requests", func() {
		It("persists merged ones with their closed issues and skips the rest", func() {
			gl.mergeRequests = []*gitlab.MergeRequestNode{
				mergeRequestNode("gid://gitlab/MergeRequest/221742778", "777", "2020-03-02T09:20:00Z"),
				mergeRequestNode("gid://gitlab/MergeRequest/221706264", "888", ""),
				mergeRequestNode("gid://gitlab/MergeRequest/1", "1", "2020-03-02T09:00:00Z"),
			}
			gl.closes["52263413!777"] = []gitlab.ClosedIssue{
				{ID: "130", IID: ptr("12")},
				{ID: "PROJ-7"},
			}

			walker := importer.NewWalker(collector.MergeRequestsEntity(deps), progress, nil)
			report := walker.Run(ctx, "acme", since)

			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.Fetched()).To(Equal(3))
			Expect(report.Filtered()).To(Equal(2))
			Expect(report.Persisted()).To(Equal(1))
			Expect(db.mergeRequests).To(HaveKey("gid://gitlab/MergeRequest/221742778"))
			Expect(db.links).To(HaveLen(2))
			Expect(db.links).To(HaveKeyWithValue("gid://gitlab/MergeRequest/221742778|PROJ-7", model.ClosedIssueOnMerge{
				MergeRequestID:  "gid://gitlab/MergeRequest/221742778",
				MergeRequestIID: "777",
				IssueID:         "PROJ-7",
				ProjectID:       "52263413",
			}))
		})

		It("persists the record when both enrichers fail", func() {
			gl.mergeRequests = []*gitlab.MergeRequestNode{
				mergeRequestNode("gid://gitlab/MergeRequest/221742778", "777", "2020-03-02T09:20:00Z"),
			}
			gl.closesErr = importer.Transport("fetching closed issues", errors.New("timeout"))
			deps.Summaries = failingEnricher{}

			walker := importer.NewWalker(collector.MergeRequestsEntity(deps), progress, nil)
			report := walker.Run(ctx, "acme", since)

			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.EnrichFailed()).To(Equal(2))
			Expect(report.Persisted()).To(Equal(1))
			Expect(db.mergeRequests["gid://gitlab/MergeRequest/221742778"].AI).To(BeNil())
			Expect(db.links).To(BeEmpty())
		})

		It("fails the walk on a malformed merge request", func() {
			bad := mergeRequestNode("gid://gitlab/MergeRequest/2", "2", "2020-03-02T09:20:00Z")
			bad.UpdatedAt = "not a time"
			gl.mergeRequests = []*gitlab.MergeRequestNode{
				mergeRequestNode("gid://gitlab/MergeRequest/221742778", "777", "2020-03-02T09:20:00Z"),
				bad,
			}

			walker := importer.NewWalker(collector.MergeRequestsEntity(deps), progress, nil)
			report := walker.Run(ctx, "acme", since)

			Expect(report.Succeeded()).To(BeFalse())
			Expect(importer.KindOf(report.Err)).To(Equal(importer.KindDataShape))
			Expect(db.mergeRequests).To(BeEmpty())
		})
	})

	Describe("MergeRequestSink", func() {
		It("writes nothing when a link fails", func() {
			db.failLinkUpsert = errors.New("constraint violation")
			sink := collector.NewMergeRequestSink(db)

			err := sink.Upsert(ctx, model.MergeRequest{
				ID:           "gid://gitlab/MergeRequest/1",
				ClosedIssues: []model.ClosedIssueOnMerge{{MergeRequestID: "gid://gitlab/MergeRequest/1", IssueID: "PROJ-1"}},
			})
			Expect(err).To(MatchError(ContainSubstring("constraint violation")))
			Expect(db.mergeRequests).To(BeEmpty())
		})
	})

	Describe("ClosedIssuesEnricher", func() {
		It("links closed issues to the merge request and its group", func() {
			gl.closes["52263413!888"] = []gitlab.ClosedIssue{{ID: "PROJ-7"}}
			enricher := collector.NewClosedIssuesEnricher(gl)

			mr, err := enricher.Enrich(ctx, model.MergeRequest{
				ID:        "gid://gitlab/MergeRequest/221706264",
				IID:       "888",
				ProjectID: "52263413",
				GroupKey:  "acme",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(mr.ClosedIssues).To(ConsistOf(model.ClosedIssueOnMerge{
				MergeRequestID:  "gid://gitlab/MergeRequest/221706264",
				MergeRequestIID: "888",
				IssueID:         "PROJ-7",
				ProjectID:       "52263413",
				GroupKey:        "acme",
			}))
			Expect(mr.ClosedIssues[0].External()).To(BeTrue())
		})
	})

	Describe("linked issues", func() {
		var recent time.Time

		BeforeEach(func() {
			recent = since.Add(time.Hour)
			for _, key := range []string{"PROJ-1", "PROJ-2", "PROJ-3", "PROJ-4", "PROJ-5"} {
				db.addLink("acme", "gid://gitlab/MergeRequest/1", key, recent)
				tracker.issues[key] = model.ExternalIssue{
					IssueTracker: model.IssueTrackerJira,
					ID:           "id-" + key,
					DisplayID:    key,
					Title:        "title " + key,
				}
			}
			db.addLink("other", "gid://gitlab/MergeRequest/2", "OTHER-1", recent)
		})

		It("pages unresolved keys with a key cursor", func() {
			source := collector.NewLinkedIssueSource(closedIssueStore{db: db}, tracker, 2, time.Hour)

			page, err := source.Fetch(ctx, "acme", since, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(2))
			Expect(page.HasMore).To(BeTrue())
			Expect(*page.NextCursor).To(Equal("PROJ-2"))
			Expect(db.lastSince).To(Equal(since.Add(-time.Hour)))

			page, err = source.Fetch(ctx, "acme", since, page.NextCursor)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items[0].Key).To(Equal("PROJ-3"))

			page, err = source.Fetch(ctx, "acme", since, ptr("PROJ-4"))
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(1))
			Expect(page.HasMore).To(BeFalse())
		})

		It("resolves every key of the group and skips unknown ones", func() {
			delete(tracker.issues, "PROJ-3")
			deps.LinkedIssuePageSize = 2

			walker := importer.NewWalker(collector.LinkedIssuesEntity(deps), progress, nil)
			report := walker.Run(ctx, "acme", since)

			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.Persisted()).To(Equal(4))
			Expect(report.Malformed()).To(Equal(1))
			Expect(db.externalIssues).To(HaveLen(4))
			Expect(db.externalIssues).NotTo(HaveKey("jira|id-OTHER-1"))
		})

		It("fails the walk on tracker outages and resumes after the last page", func() {
			tracker.errs["PROJ-3"] = importer.Transport("get jira issue PROJ-3", errors.New("503"))
			deps.LinkedIssuePageSize = 2

			walker := importer.NewWalker(collector.LinkedIssuesEntity(deps), progress, nil)
			report := walker.Run(ctx, "acme", since)
			Expect(report.Succeeded()).To(BeFalse())
			Expect(importer.KindOf(report.Err)).To(Equal(importer.KindTransport))
			Expect(*report.LastCursor).To(Equal("PROJ-2"))
			Expect(db.externalIssues).To(HaveLen(2))

			delete(tracker.errs, "PROJ-3")
			tracker.asked = nil
			report = walker.Run(ctx, "acme", since)
			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.Resumed).To(BeTrue())
			Expect(tracker.asked).To(Equal([]string{"PROJ-3", "PROJ-4", "PROJ-5"}))
			Expect(db.externalIssues).To(HaveLen(5))
		})

		It("ignores links older than the lookback window", func() {
			db.addLink("acme", "gid://gitlab/MergeRequest/3", "OLD-1", since.Add(-48*time.Hour))
			source := collector.NewLinkedIssueSource(closedIssueStore{db: db}, tracker, 50, time.Hour)

			page, err := source.Fetch(ctx, "acme", since, nil)
			Expect(err).NotTo(HaveOccurred())
			var keys []string
			for _, item := range page.Items {
				keys = append(keys, item.Key)
			}
			Expect(keys).NotTo(ContainElement("OLD-1"))
			Expect(keys).To(HaveLen(5))
		})
	})
})
