package gitlab_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/config"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		mock   *gitlabAPIMock
		client *gitlab.Client
		since  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		since = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
		mock = newGitLabAPIMock()
		mock.start()
		DeferCleanup(mock.close)

		var err error
		client, err = gitlab.New(config.GitLabConfig{
			BaseURL:        mock.baseURL(),
			Token:          "token",
			PageSize:       2,
			RequestTimeout: 5 * time.Second,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a token", func() {
		_, err := gitlab.New(config.GitLabConfig{BaseURL: "https://gitlab.example.com"})
		Expect(err).To(HaveOccurred())
	})

	Describe("FetchMergeRequests", func() {
		It("returns the page with its cursor and transforms every node", func() {
			mock.graphql["mergeRequests"] = mergeRequestsPage

			page, err := client.FetchMergeRequests(ctx, "acme", since, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(2))
			Expect(page.HasMore).To(BeTrue())
			Expect(*page.NextCursor).To(Equal("eyJpZCI6IjIyMTcwNjI2NCJ9"))
			Expect(*page.TotalCount).To(Equal(2))

			mr, err := gitlab.MergeRequestFromNode(page.Items[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(mr.ID).To(Equal("gid://gitlab/MergeRequest/221742778"))
			Expect(mr.IID).To(Equal("777"))
			Expect(mr.Title).To(Equal(`Resolve "pipeline check"`))
			Expect(mr.ProjectID).To(Equal("52263413"))
			Expect(*mr.ProjectName).To(Equal("cool_project_1"))
			Expect(mr.CreatedAt).To(Equal(time.Date(2020, 3, 2, 9, 0, 0, 0, time.UTC)))
			Expect(*mr.MergedAt).To(Equal(time.Date(2020, 3, 2, 9, 20, 0, 0, time.UTC)))
			Expect(mr.CreatedBy).To(Equal("dev1"))
			Expect(*mr.MergedBy).To(Equal("dev1"))
			Expect(mr.Approved).To(BeTrue())
			Expect(mr.ApprovedBy).To(Equal([]string{"dev2"}))
			Expect(*mr.DiffStatsSummary).To(Equal(model.DiffStatsSummary{Additions: 2, Changes: 4, Deletions: 2, FileCount: 1}))
			Expect(mr.Labels).To(Equal([]string{"backend"}))
			Expect(mr.GroupKey).To(Equal("acme"))
			Expect(mr.AI).To(BeNil())

			open, err := gitlab.MergeRequestFromNode(page.Items[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(open.MergedAt).To(BeNil())
			Expect(open.MergedBy).To(BeNil())
			Expect(open.Description).To(BeNil())
			Expect(open.DiffStatsSummary).To(BeNil())
			Expect(open.ApprovedBy).To(BeEmpty())
		})

		It("sends the group, since and cursor as variables", func() {
			mock.graphql["mergeRequests"] = mergeRequestsPage
			cursor := "abc"

			_, err := client.FetchMergeRequests(ctx, "acme/platform", since, &cursor)
			Expect(err).NotTo(HaveOccurred())

			req := mock.lastRequest()
			Expect(req.Variables).To(HaveKeyWithValue("fullPath", "acme/platform"))
			Expect(req.Variables).To(HaveKeyWithValue("updatedAfter", "2020-03-01T00:00:00Z"))
			Expect(req.Variables).To(HaveKeyWithValue("after", "abc"))
			Expect(req.Variables).To(HaveKeyWithValue("first", BeNumerically("==", 2)))
		})

		It("reports an unknown group as not found", func() {
			mock.graphql["mergeRequests"] = `{"data": {"group": null}}`

			_, err := client.FetchMergeRequests(ctx, "missing", since, nil)
			Expect(importer.KindOf(err)).To(Equal(importer.KindNotFound))
		})

		It("classifies GraphQL errors", func() {
			mock.graphql["mergeRequests"] = `{"data": null, "errors": [{"message": "Timeout on validation of query"}]}`

			_, err := client.FetchMergeRequests(ctx, "acme", since, nil)
			Expect(importer.KindOf(err)).To(Equal(importer.KindTransport))
			Expect(err.Error()).To(ContainSubstring("Timeout on validation"))
		})

		It("classifies rejected tokens as authorization failures", func() {
			mock.graphqlStatus = http.StatusUnauthorized

			_, err := client.FetchMergeRequests(ctx, "acme", since, nil)
			Expect(importer.KindOf(err)).To(Equal(importer.KindAuthorization))
		})

		It("classifies server errors as transport failures", func() {
			mock.graphqlStatus = http.StatusBadGateway

			_, err := client.FetchMergeRequests(ctx, "acme", since, nil)
			Expect(importer.KindOf(err)).To(Equal(importer.KindTransport))
		})

		It("rejects a node with an unparsable timestamp", func() {
			node := &gitlab.MergeRequestNode{
				ID:        "gid://gitlab/MergeRequest/1",
				CreatedAt: "yesterday",
				UpdatedAt: "2020-03-02T09:10:00Z",
			}
			_, err := gitlab.MergeRequestFromNode(node)
			Expect(err).To(MatchError(ContainSubstring("createdAt")))

			_, err = gitlab.MergeRequestFromNode(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FetchIssues", func() {
		It("transforms issues with labels and optional fields", func() {
			mock.graphql["issues"] = issuesPage

			page, err := client.FetchIssues(ctx, "acme", since, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.HasMore).To(BeFalse())
			Expect(page.NextCursor).To(BeNil())

			issue, err := gitlab.IssueFromNode(page.Items[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(issue.ID).To(Equal("gid://gitlab/Issue/130"))
			Expect(issue.IID).To(Equal("12"))
			Expect(issue.ProjectID).To(Equal("52263413"))
			Expect(issue.Labels).To(Equal([]string{"bug", "ci"}))
			Expect(issue.UpdatedAt).To(Equal(time.Date(2020, 3, 2, 9, 20, 0, 123000000, time.UTC)))
			Expect(issue.ClosedAt).NotTo(BeNil())
			Expect(issue.CreatedBy).To(Equal("dev3"))
			Expect(issue.UpdatedBy).To(BeNil())
		})
	})

	Describe("FetchProjects", func() {
		It("keeps null nodes for the transform to reject", func() {
			mock.graphql["projects"] = projectsPage

			page, err := client.FetchProjects(ctx, "acme", since, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(2))

			project, err := gitlab.ProjectFromNode(page.Items[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(project.FullPath).To(Equal("acme/cool_project_1"))
			Expect(project.Topics).To(Equal([]string{"go"}))
			Expect(project.GroupKey).To(Equal("acme"))

			_, err = gitlab.ProjectFromNode(page.Items[1])
			Expect(err).To(HaveOccurred())
		})

		It("does not filter by since", func() {
			mock.graphql["projects"] = projectsPage

			_, err := client.FetchProjects(ctx, "acme", since, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(mock.lastRequest().Variables).NotTo(HaveKey("updatedAfter"))
		})
	})

	Describe("ClosesIssues", func() {
		It("returns GitLab issues with iid and Jira keys without", func() {
			mock.rest["/projects/52263413/merge_requests/888/closes_issues"] = `[
				{"id": 130, "iid": 12, "title": "pipeline check fails"},
				{"id": "PROJ-7", "title": "Jira issue"}
			]`

			issues, err := client.ClosesIssues(ctx, "52263413", "888")
			Expect(err).NotTo(HaveOccurred())
			Expect(issues).To(HaveLen(2))
			Expect(issues[0].ID).To(Equal("130"))
			Expect(*issues[0].IID).To(Equal("12"))
			Expect(issues[1].ID).To(Equal("PROJ-7"))
			Expect(issues[1].IID).To(BeNil())
		})

		It("returns an empty list", func() {
			mock.rest["/projects/52263413/merge_requests/777/closes_issues"] = `[]`

			issues, err := client.ClosesIssues(ctx, "52263413", "777")
			Expect(err).NotTo(HaveOccurred())
			Expect(issues).To(BeEmpty())
		})

		It("classifies missing merge requests as not found", func() {
			_, err := client.ClosesIssues(ctx, "52263413", "999")
			Expect(importer.KindOf(err)).To(Equal(importer.KindNotFound))
		})

		It("rejects issues without an id", func() {
			mock.rest["/projects/1/merge_requests/2/closes_issues"] = `[{"iid": 3}]`

			_, err := client.ClosesIssues(ctx, "1", "2")
			Expect(importer.KindOf(err)).To(Equal(importer.KindDataShape))
		})
	})

	Describe("Diffs", func() {
		It("returns the file diffs", func() {
			mock.rest["/projects/52263413/merge_requests/777/diffs"] = `[
				{"old_path": "a.go", "new_path": "a.go", "diff": "@@ -1 +1 @@\n-a\n+b\n"}
			]`

			diffs, err := client.Diffs(ctx, "52263413", "777")
			Expect(err).NotTo(HaveOccurred())
			Expect(diffs).To(HaveLen(1))
			Expect(diffs[0].NewPath).To(Equal("a.go"))
			Expect(diffs[0].Diff).To(ContainSubstring("+b"))
		})

		It("classifies forbidden projects as authorization failures", func() {
			mock.restStatus["/projects/9/merge_requests/1/diffs"] = http.StatusForbidden

			_, err := client.Diffs(ctx, "9", "1")
			Expect(importer.KindOf(err)).To(Equal(importer.KindAuthorization))
		})
	})

	Describe("MergedSince", func() {
		It("keeps merge requests merged at or after since", func() {
			at := since
			before := since.Add(-time.Second)
			Expect(gitlab.MergedSince(model.MergeRequest{MergedAt: &at}, since)).To(BeTrue())
			Expect(gitlab.MergedSince(model.MergeRequest{MergedAt: &before}, since)).To(BeFalse())
			Expect(gitlab.MergedSince(model.MergeRequest{}, since)).To(BeFalse())
		})
	})
})
