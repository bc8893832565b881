package gitlab

import (
	"context"
	"errors"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

const groupProjectsQuery = `query groupProjects($fullPath: ID!, $first: Int!, $after: String) {
  group(fullPath: $fullPath) {
    projects(includeSubgroups: true, first: $first, after: $after) {
      count
      pageInfo { endCursor hasNextPage }
      nodes { id name path fullPath webUrl topics }
    }
  }
}`

// ProjectNode is a project as returned by the GraphQL API.
type ProjectNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	FullPath string   `json:"fullPath"`
	WebURL   string   `json:"webUrl"`
	Topics   []string `json:"topics"`

	groupKey string
}

// FetchProjects pages the projects of a group and its subgroups. GitLab has no
// updatedAfter filter for projects, so since is ignored and every run sees all of them.
func (c *Client) FetchProjects(ctx context.Context, groupKey string, _ time.Time, cursor *string) (importer.Page[*ProjectNode], error) {
	page, err := fetchGroupPage[ProjectNode](ctx, c, "fetching group projects", "projects", groupKey, groupProjectsQuery, map[string]any{
		"fullPath": groupKey,
		"first":    c.pageSize,
		"after":    cursorVar(cursor),
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

func ProjectFromNode(n *ProjectNode) (model.Project, error) {
	if n == nil {
		return model.Project{}, errors.New("null project node")
	}
	if n.ID == "" {
		return model.Project{}, errors.New("project node without id")
	}
	topics := n.Topics
	if topics == nil {
		topics = []string{}
	}
	return model.Project{
		ID:       n.ID,
		Name:     n.Name,
		Path:     n.Path,
		FullPath: n.FullPath,
		WebURL:   n.WebURL,
		Topics:   topics,
		GroupKey: n.groupKey,
	}, nil
}
