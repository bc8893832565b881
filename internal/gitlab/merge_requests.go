package gitlab

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

const groupMergeRequestsQuery = `query groupMergeRequests($fullPath: ID!, $updatedAfter: Time, $first: Int!, $after: String) {
  group(fullPath: $fullPath) {
    mergeRequests(includeSubgroups: true, updatedAfter: $updatedAfter, first: $first, after: $after) {
      count
      pageInfo { endCursor hasNextPage }
      nodes {
        id
        iid
        title
        description
        webUrl
        projectId
        project { name path }
        createdAt
        updatedAt
        mergedAt
        author { username }
        mergeUser { username }
        approved
        approvedBy { nodes { username } }
        diffStatsSummary { additions changes deletions fileCount }
        labels { nodes { title } }
      }
    }
  }
}`

// MergeRequestNode is a merge request as returned by the GraphQL API.
type MergeRequestNode struct {
	ID          string  `json:"id"`
	IID         string  `json:"iid"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	WebURL      string  `json:"webUrl"`
	ProjectID   int64   `json:"projectId"`
	Project     *struct {
		Name *string `json:"name"`
		Path *string `json:"path"`
	} `json:"project"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
	MergedAt   *string `json:"mergedAt"`
	Author     *User   `json:"author"`
	MergeUser  *User   `json:"mergeUser"`
	Approved   bool    `json:"approved"`
	ApprovedBy *struct {
		Nodes []*User `json:"nodes"`
	} `json:"approvedBy"`
	DiffStatsSummary *struct {
		Additions int `json:"additions"`
		Changes   int `json:"changes"`
		Deletions int `json:"deletions"`
		FileCount int `json:"fileCount"`
	} `json:"diffStatsSummary"`
	Labels *titledNodes `json:"labels"`

	groupKey string
}

// FetchMergeRequests pages the merge requests of a group updated at or after since.
// Open and closed merge requests are returned too; callers filter on merged_at.
func (c *Client) FetchMergeRequests(ctx context.Context, groupKey string, since time.Time, cursor *string) (importer.Page[*MergeRequestNode], error) {
	page, err := fetchGroupPage[MergeRequestNode](ctx, c, "fetching group merge requests", "mergeRequests", groupKey, groupMergeRequestsQuery, map[string]any{
		"fullPath":     groupKey,
		"updatedAfter": since.UTC().Format(time.RFC3339),
		"first":        c.pageSize,
		"after":        cursorVar(cursor),
	})
	if err != nil {
		return page, err
	}
	for _, n := range page.Items {
		if n != nil {
			n.groupKey = groupKey
		}
	}
	return page, nil
}

// MergeRequestFromNode fails on any unparsable timestamp.
func MergeRequestFromNode(n *MergeRequestNode) (model.MergeRequest, error) {
	if n == nil {
		return model.MergeRequest{}, errors.New("null merge request node")
	}
	createdAt, err := parseTime("createdAt", n.CreatedAt)
	if err != nil {
		return model.MergeRequest{}, err
	}
	updatedAt, err := parseTime("updatedAt", n.UpdatedAt)
	if err != nil {
		return model.MergeRequest{}, err
	}
	mergedAt, err := parseOptionalTime("mergedAt", n.MergedAt)
	if err != nil {
		return model.MergeRequest{}, err
	}
	if n.Author == nil {
		return model.MergeRequest{}, errors.New("merge request node without author")
	}

	mr := model.MergeRequest{
		ID:          n.ID,
		IID:         n.IID,
		Title:       n.Title,
		Description: n.Description,
		WebURL:      n.WebURL,
		ProjectID:   strconv.FormatInt(n.ProjectID, 10),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		MergedAt:    mergedAt,
		CreatedBy:   n.Author.Username,
		Approved:    n.Approved,
		ApprovedBy:  []string{},
		Labels:      n.Labels.titles(),
		GroupKey:    n.groupKey,
	}
	if n.Project != nil {
		mr.ProjectName = n.Project.Name
		mr.ProjectPath = n.Project.Path
	}
	if n.MergeUser != nil {
		mr.MergedBy = &n.MergeUser.Username
	}
	if n.ApprovedBy != nil {
		for _, u := range n.ApprovedBy.Nodes {
			if u != nil {
				mr.ApprovedBy = append(mr.ApprovedBy, u.Username)
			}
		}
	}
	if d := n.DiffStatsSummary; d != nil {
		mr.DiffStatsSummary = &model.DiffStatsSummary{
			Additions: d.Additions,
			Changes:   d.Changes,
			Deletions: d.Deletions,
			FileCount: d.FileCount,
		}
	}
	return mr, nil
}

// MergedSince keeps merge requests merged at or after since.
func MergedSince(mr model.MergeRequest, since time.Time) bool {
	return mr.MergedAt != nil && !mr.MergedAt.Before(since)
}
