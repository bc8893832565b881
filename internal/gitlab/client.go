package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	glapi "gitlab.com/gitlab-org/api/client-go"

	"github.com/magiccrafter/engineering-metrics-data-collector/core/config"
)

const defaultPageSize = 50

// Client reads group collections through the GitLab GraphQL API and merge request
// details through REST. Retries are disabled: a failed page is resumed by the next run.
type Client struct {
	api      *glapi.Client
	pageSize int
	timeout  time.Duration
}

func New(cfg config.GitLabConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("gitlab token is required")
	}

	opts := []glapi.ClientOptionFunc{glapi.WithoutRetries()}
	if cfg.BaseURL != "" {
		opts = append(opts, glapi.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/api/v4"))
	}

	api, err := glapi.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultPageSize
	}

	return &Client{
		api:      api,
		pageSize: pageSize,
		timeout:  cfg.RequestTimeout,
	}, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse[D any] struct {
	Data   *D             `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// query runs a GraphQL query and returns its data object.
func query[D any](ctx context.Context, c *Client, op, q string, vars map[string]any) (*D, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	var out graphqlResponse[D]
	resp, err := c.api.GraphQL.Do(glapi.GraphQLQuery{Query: q, Variables: vars}, &out, glapi.WithContext(ctx))
	if err != nil {
		return nil, classify(op, resp, err)
	}

	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, graphqlErrors(op, msgs)
	}
	if out.Data == nil {
		return nil, dataShape(op, "response has no data")
	}
	return out.Data, nil
}

// get issues a REST GET relative to /api/v4 and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, op, path string, opt any, v any) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := c.api.NewRequest(http.MethodGet, path, opt, []glapi.RequestOptionFunc{glapi.WithContext(ctx)})
	if err != nil {
		return classify(op, nil, err)
	}

	resp, err := c.api.Do(req, v)
	if err != nil {
		return classify(op, resp, err)
	}
	return nil
}
