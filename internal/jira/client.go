package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/config"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// Issue is the subset of a Jira issue the collector stores.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
	} `json:"fields"`
}

// Client reads issues from the Jira REST API v3.
type Client struct {
	url            string
	username       string
	apiToken       string
	issueURLPrefix string
	httpClient     *http.Client
}

func NewClient(cfg config.JiraConfig) *Client {
	prefix := cfg.IssueURLPrefix
	if prefix == "" {
		prefix = strings.TrimSuffix(cfg.URL, "/") + "/browse/"
	}
	return &Client{
		url:            strings.TrimSuffix(cfg.URL, "/"),
		username:       cfg.Username,
		apiToken:       cfg.APIToken,
		issueURLPrefix: prefix,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetIssue fetches a single issue by key (e.g. "PROJ-123").
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	op := fmt.Sprintf("get jira issue %s", key)
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=summary", c.url, url.PathEscape(key))

	body, err := c.doRequest(ctx, op, apiURL)
	if err != nil {
		return nil, err
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, importer.DataShape(op, fmt.Errorf("parse issue response: %w", err))
	}
	if issue.ID == "" {
		return nil, importer.DataShape(op, errors.New("issue response has no id"))
	}
	if issue.Key == "" {
		issue.Key = key
	}
	return &issue, nil
}

// ExternalIssue resolves key into the record stored in external_issues.
func (c *Client) ExternalIssue(ctx context.Context, key string) (model.ExternalIssue, error) {
	issue, err := c.GetIssue(ctx, key)
	if err != nil {
		return model.ExternalIssue{}, err
	}
	return model.ExternalIssue{
		IssueTracker: model.IssueTrackerJira,
		ID:           issue.ID,
		DisplayID:    issue.Key,
		Title:        issue.Fields.Summary,
		WebURL:       c.issueURLPrefix + issue.Key,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, op, apiURL string) ([]byte, error) {
	if c.url == "" {
		return nil, importer.Transport(op, errors.New("jira URL not configured"))
	}
	if c.apiToken == "" {
		return nil, importer.Authorization(op, errors.New("jira API token not configured"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, importer.Transport(op, fmt.Errorf("create request: %w", err))
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "engineering-metrics-data-collector")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, importer.Transport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, importer.Transport(op, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, importer.Authorization(op, fmt.Errorf("jira API returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, importer.NotFound(op, fmt.Errorf("jira API returned %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, importer.Transport(op, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, truncate(respBody, 200)))
	}

	return respBody, nil
}

// setAuth uses basic auth when a username is configured and a bearer token otherwise.
func (c *Client) setAuth(req *http.Request) {
	if c.username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.apiToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
