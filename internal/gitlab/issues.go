package gitlab

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

const groupIssuesQuery = `query groupIssues($fullPath: ID!, $updatedAfter: Time, $first: Int!, $after: String) {
  group(fullPath: $fullPath) {
    issues(includeSubgroups: true, updatedAfter: $updatedAfter, first: $first, after: $after) {
      count
      pageInfo { endCursor hasNextPage }
      nodes {
        id
        iid
        title
        webUrl
        projectId
        createdAt
        updatedAt
        closedAt
        author { username }
        updatedBy { username }
        labels { nodes { title } }
      }
    }
  }
}`

// IssueNode is an issue as returned by the GraphQL API.
type IssueNode struct {
	ID        string       `json:"id"`
	IID       string       `json:"iid"`
	Title     string       `json:"title"`
	WebURL    string       `json:"webUrl"`
	ProjectID int64        `json:"projectId"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
	ClosedAt  *string      `json:"closedAt"`
	Author    *User        `json:"author"`
	UpdatedBy *User        `json:"updatedBy"`
	Labels    *titledNodes `json:"labels"`
}

// FetchIssues pages the issues of a group updated at or after since.
func (c *Client) FetchIssues(ctx context.Context, groupKey string, since time.Time, cursor *string) (importer.Page[*IssueNode], error) {
	return fetchGroupPage[IssueNode](ctx, c, "fetching group issues", "issues", groupKey, groupIssuesQuery, map[string]any{
		"fullPath":     groupKey,
		"updatedAfter": since.UTC().Format(time.RFC3339),
		"first":        c.pageSize,
		"after":        cursorVar(cursor),
	})
}

// IssueFromNode fails on any unparsable timestamp.
func IssueFromNode(n *IssueNode) (model.Issue, error) {
	if n == nil {
		return model.Issue{}, errors.New("null issue node")
	}
	createdAt, err := parseTime("createdAt", n.CreatedAt)
	if err != nil {
		return model.Issue{}, err
	}
	updatedAt, err := parseTime("updatedAt", n.UpdatedAt)
	if err != nil {
		return model.Issue{}, err
	}
	closedAt, err := parseOptionalTime("closedAt", n.ClosedAt)
	if err != nil {
		return model.Issue{}, err
	}
	if n.Author == nil {
		return model.Issue{}, errors.New("issue node without author")
	}

	issue := model.Issue{
		ID:        n.ID,
		IID:       n.IID,
		Title:     n.Title,
		WebURL:    n.WebURL,
		ProjectID: strconv.FormatInt(n.ProjectID, 10),
		Labels:    n.Labels.titles(),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		ClosedAt:  closedAt,
		CreatedBy: n.Author.Username,
	}
	if n.UpdatedBy != nil {
		issue.UpdatedBy = &n.UpdatedBy.Username
	}
	return issue, nil
}
