package gitlab

import (
	"context"
	"fmt"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
)

type pageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// connection is a GraphQL connection. Nodes may contain nulls; they reach the
// transform as nil and are treated as malformed items.
type connection[N any] struct {
	Count    *int     `json:"count"`
	PageInfo pageInfo `json:"pageInfo"`
	Nodes    []*N     `json:"nodes"`
}

func (c connection[N]) page() importer.Page[*N] {
	return importer.Page[*N]{
		Items:      c.Nodes,
		NextCursor: c.PageInfo.EndCursor,
		HasMore:    c.PageInfo.HasNextPage,
		TotalCount: c.Count,
	}
}

// groupData is the data object of a query selecting a single connection of a group.
// A null group decodes to a nil map.
type groupData[N any] struct {
	Group map[string]connection[N] `json:"group"`
}

func fetchGroupPage[N any](ctx context.Context, c *Client, op, field, groupKey, q string, vars map[string]any) (importer.Page[*N], error) {
	data, err := query[groupData[N]](ctx, c, op, q, vars)
	if err != nil {
		return importer.Page[*N]{}, err
	}
	if data.Group == nil {
		return importer.Page[*N]{}, importer.NotFound(op, fmt.Errorf("group %q not found or not visible", groupKey))
	}
	conn, ok := data.Group[field]
	if !ok {
		return importer.Page[*N]{}, dataShape(op, "response has no "+field)
	}
	return conn.page(), nil
}

type User struct {
	Username string `json:"username"`
}

type titledNodes struct {
	Nodes []*struct {
		Title string `json:"title"`
	} `json:"nodes"`
}

func (t *titledNodes) titles() []string {
	if t == nil {
		return []string{}
	}
	out := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if n != nil {
			out = append(out, n.Title)
		}
	}
	return out
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &fieldError{field: field, err: err}
	}
	return t.UTC(), nil
}

func parseOptionalTime(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseTime(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func cursorVar(cursor *string) any {
	if cursor == nil {
		return nil
	}
	return *cursor
}

// fieldError is a malformed field of a fetched node.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.field, e.err)
}

func (e *fieldError) Unwrap() error {
	return e.err
}
