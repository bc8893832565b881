package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/llm"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

const (
	defaultMaxContextChars = 10000
	defaultRetryInterval   = 2 * time.Second
	// maxAttempts is the model call budget per merge request, the first call included.
	maxAttempts = 3
)

// DiffSource returns the file diffs of a merge request.
type DiffSource interface {
	Diffs(ctx context.Context, projectID, mrIID string) ([]gitlab.FileDiff, error)
}

type Config struct {
	MaxContextChars int
	// RetryInterval is the first backoff interval; later ones grow exponentially with jitter.
	RetryInterval    time.Duration
	StructuredOutput bool
}

// Derived is the model's answer for one merge request.
type Derived struct {
	Category string `json:"category" jsonschema:"enum=Feature,enum=Bugfix,enum=Refactor,enum=Platform,enum=Chore"`
	Title    string `json:"title" jsonschema:"description=Conventional commit title, at most 100 characters"`
	Summary  string `json:"summary" jsonschema:"description=Two or three sentences on what changed and why"`
}

var errInvalidAnswer = errors.New("invalid model answer")

// Service derives a category, title and summary for merge requests.
type Service struct {
	llm    llm.Client
	diffs  DiffSource
	cfg    Config
	schema any
}

func NewService(client llm.Client, diffs DiffSource, cfg Config) *Service {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = defaultMaxContextChars
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	s := &Service{llm: client, diffs: diffs, cfg: cfg}
	if cfg.StructuredOutput {
		s.schema = llm.GenerateSchema[Derived]()
	}
	return s
}

// Derive calls the model with a fixed attempt budget. Transport failures, server errors
// and unparsable answers are retried; client errors and cancellation are not.
func (s *Service) Derive(ctx context.Context, mr model.MergeRequest) (*model.MergeRequestAI, error) {
	diffs, err := s.diffs.Diffs(ctx, mr.ProjectID, mr.IID)
	if err != nil {
		return nil, fmt.Errorf("fetching diffs: %w", err)
	}

	req := llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(mr, diffs, s.cfg.MaxContextChars),
		SchemaName:   "merge_request_summary",
		Schema:       s.schema,
		MaxTokens:    800,
		Temperature:  llm.Temp(0.2),
	}

	attempt := 0
	var derived *Derived
	op := func() error {
		attempt++
		resp, err := s.llm.Complete(ctx, req)
		if err != nil {
			if !llm.IsRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			slog.WarnContext(ctx, "enrichment attempt failed",
				"mr_id", mr.ID,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err)
			return err
		}

		d, err := parseAnswer(resp.Content)
		if err != nil {
			slog.WarnContext(ctx, "enrichment answer unusable",
				"mr_id", mr.ID,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err,
				"content", truncate(resp.Content, 200))
			return err
		}
		derived = d
		return nil
	}

	if err := backoff.Retry(op, s.newBackOff(ctx)); err != nil {
		return nil, fmt.Errorf("enriching merge request %s after %d attempts: %w", mr.ID, attempt, err)
	}

	return &model.MergeRequestAI{
		Category: derived.Category,
		Title:    derived.Title,
		Summary:  derived.Summary,
		Model:    s.llm.Model(),
	}, nil
}

// newBackOff returns a fresh policy; BackOff implementations are stateful.
func (s *Service) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)
}

// parseAnswer strips markdown fences and validates the JSON answer.
func parseAnswer(content string) (*Derived, error) {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var d Derived
	if err := json.Unmarshal([]byte(clean), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidAnswer, err)
	}

	category, ok := normalizeCategory(d.Category)
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", errInvalidAnswer, d.Category)
	}
	d.Category = category
	d.Title = strings.TrimSpace(d.Title)
	d.Summary = strings.TrimSpace(d.Summary)
	if d.Title == "" || d.Summary == "" {
		return nil, fmt.Errorf("%w: missing title or summary", errInvalidAnswer)
	}
	return &d, nil
}

func normalizeCategory(c string) (string, bool) {
	c = strings.TrimSpace(c)
	for _, known := range model.MergeRequestCategories {
		if strings.EqualFold(c, known) {
			return known, true
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return cut(s, n) + "..."
}
