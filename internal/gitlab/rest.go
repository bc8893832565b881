package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ClosedIssue is an issue a merge request closes when merged. IID is nil for issues
// of an external tracker, whose ID is then the tracker key (e.g. PROJ-12).
type ClosedIssue struct {
	ID  string
	IID *string
}

type closedIssueJSON struct {
	ID  json.RawMessage `json:"id"`
	IID json.RawMessage `json:"iid"`
}

// ClosesIssues lists the issues closed by merging the merge request. GitLab returns
// numeric ids for its own issues and string keys for Jira ones.
func (c *Client) ClosesIssues(ctx context.Context, projectID, mrIID string) ([]ClosedIssue, error) {
	const op = "fetching closed issues"
	path := fmt.Sprintf("projects/%s/merge_requests/%s/closes_issues", url.PathEscape(projectID), url.PathEscape(mrIID))

	var raw []closedIssueJSON
	if err := c.get(ctx, op, path, nil, &raw); err != nil {
		return nil, err
	}

	issues := make([]ClosedIssue, 0, len(raw))
	for i, r := range raw {
		id, ok := scalarString(r.ID)
		if !ok || id == "" {
			return nil, dataShape(op, fmt.Sprintf("issue %d has no usable id", i))
		}
		issue := ClosedIssue{ID: id}
		if iid, ok := scalarString(r.IID); ok && iid != "" {
			issue.IID = &iid
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// FileDiff is one changed file of a merge request.
type FileDiff struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	Diff    string `json:"diff"`
}

type listOptions struct {
	PerPage int `url:"per_page,omitempty"`
}

// Diffs returns the first page of file diffs of a merge request. The prompt is
// truncated long before a second page would matter.
func (c *Client) Diffs(ctx context.Context, projectID, mrIID string) ([]FileDiff, error) {
	path := fmt.Sprintf("projects/%s/merge_requests/%s/diffs", url.PathEscape(projectID), url.PathEscape(mrIID))

	var diffs []FileDiff
	if err := c.get(ctx, "fetching merge request diffs", path, &listOptions{PerPage: 100}, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

// scalarString renders a JSON string or number as a string. null and missing
// values report false.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
