package enrichment_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/llm"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/enrichment"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type scriptedAnswer struct {
	content string
	err     error
}

// scriptedLLM replays answers in order and repeats the last one.
type scriptedLLM struct {
	mu       sync.Mutex
	answers  []scriptedAnswer
	requests []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	a := s.answers[min(len(s.requests)-1, len(s.answers)-1)]
	if a.err != nil {
		return nil, a.err
	}
	return &llm.Response{Content: a.content}, nil
}

func (s *scriptedLLM) Model() string { return "llama3" }

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type staticDiffs struct {
	diffs []gitlab.FileDiff
	err   error
	asked []string
}

func (d *staticDiffs) Diffs(_ context.Context, projectID, mrIID string) ([]gitlab.FileDiff, error) {
	d.asked = append(d.asked, projectID+"!"+mrIID)
	return d.diffs, d.err
}

const goodAnswer = `{"category": "Bugfix", "title": "fix(ci): stop pipeline check from failing", "summary": "Fixes the pipeline check. It failed on empty branches."}`

var _ = Describe("Service", func() {
	var (
		ctx    context.Context
		client *scriptedLLM
		diffs  *staticDiffs
		mr     model.MergeRequest
		cfg    enrichment.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &scriptedLLM{}
		diffs = &staticDiffs{diffs: []gitlab.FileDiff{
			{NewPath: "ci.yml", Diff: "+check: true\n"},
		}}
		description := "Closes #12"
		mr = model.MergeRequest{
			ID:          "gid://gitlab/MergeRequest/221742778",
			IID:         "777",
			Title:       `Resolve "pipeline check"`,
			Description: &description,
			ProjectID:   "52263413",
		}
		cfg = enrichment.Config{MaxContextChars: 10000, RetryInterval: time.Millisecond}
	})

	It("derives category, title and summary with the model name", func() {
		client.answers = []scriptedAnswer{{content: goodAnswer}}
		svc := enrichment.NewService(client, diffs, cfg)

		derived, err := svc.Derive(ctx, mr)
		Expect(err).NotTo(HaveOccurred())
		Expect(derived).To(Equal(&model.MergeRequestAI{
			Category: model.CategoryBugfix,
			Title:    "fix(ci): stop pipeline check from failing",
			Summary:  "Fixes the pipeline check. It failed on empty branches.",
			Model:    "llama3",
		}))
		Expect(diffs.asked).To(Equal([]string{"52263413!777"}))

		prompt := client.requests[0].UserPrompt
		Expect(prompt).To(ContainSubstring(`PR Title: Resolve "pipeline check"`))
		Expect(prompt).To(ContainSubstring("PR Description: Closes #12"))
		Expect(prompt).To(ContainSubstring("File: ci.yml\nDiff:\n+check: true"))
		Expect(client.requests[0].Schema).To(BeNil())
	})

	It("strips markdown fences and normalizes the category", func() {
		client.answers = []scriptedAnswer{{content: "```json\n" + strings.Replace(goodAnswer, "Bugfix", "bugfix", 1) + "\n```"}}
		svc := enrichment.NewService(client, diffs, cfg)

		derived, err := svc.Derive(ctx, mr)
		Expect(err).NotTo(HaveOccurred())
		Expect(derived.Category).To(Equal(model.CategoryBugfix))
	})

	It("retries unparsable answers", func() {
		client.answers = []scriptedAnswer{{content: "Sure! Here is the JSON"}, {content: goodAnswer}}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.calls()).To(Equal(2))
	})

	It("retries answers with an unknown category", func() {
		client.answers = []scriptedAnswer{
			{content: `{"category": "Docs", "title": "docs: x", "summary": "y"}`},
			{content: goodAnswer},
		}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.calls()).To(Equal(2))
	})

	It("gives up after the attempt budget", func() {
		client.answers = []scriptedAnswer{{err: errors.New("connection reset by peer")}}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(client.calls()).To(Equal(3))
	})

	It("does not retry non-retryable errors", func() {
		client.answers = []scriptedAnswer{{err: context.Canceled}}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).To(MatchError(context.Canceled))
		Expect(client.calls()).To(Equal(1))
	})

	It("fails without calling the model when diffs cannot be fetched", func() {
		diffs.err = errors.New("gitlab down")
		client.answers = []scriptedAnswer{{content: goodAnswer}}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).To(MatchError(ContainSubstring("gitlab down")))
		Expect(client.calls()).To(Equal(0))
	})

	It("truncates the diff context", func() {
		diffs.diffs = []gitlab.FileDiff{
			{NewPath: "a.go", Diff: strings.Repeat("a", 40)},
			{NewPath: "b.go", Diff: strings.Repeat("b", 40)},
			{NewPath: "c.go", Diff: strings.Repeat("c", 40)},
		}
		cfg.MaxContextChars = 80
		client.answers = []scriptedAnswer{{content: goodAnswer}}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).NotTo(HaveOccurred())

		prompt := client.requests[0].UserPrompt
		changes := prompt[strings.Index(prompt, "PR Changes:\n")+len("PR Changes:\n"):]
		Expect(len(changes)).To(Equal(80))
		Expect(changes).To(ContainSubstring("File: b.go"))
		Expect(changes).NotTo(ContainSubstring("c.go"))
	})

	It("asks for a schema constrained answer when structured output is on", func() {
		cfg.StructuredOutput = true
		client.answers = []scriptedAnswer{{content: goodAnswer}}
		svc := enrichment.NewService(client, diffs, cfg)

		_, err := svc.Derive(ctx, mr)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.requests[0].Schema).NotTo(BeNil())
		Expect(client.requests[0].SchemaName).To(Equal("merge_request_summary"))
	})
})

var _ = Describe("Enricher", func() {
	It("sets the derived fields and keeps the record on failure", func() {
		client := &scriptedLLM{answers: []scriptedAnswer{{content: goodAnswer}}}
		diffs := &staticDiffs{}
		enricher := enrichment.NewEnricher(enrichment.NewService(client, diffs, enrichment.Config{RetryInterval: time.Millisecond}))

		mr := model.MergeRequest{ID: "gid://gitlab/MergeRequest/1", IID: "1", ProjectID: "2", Title: "t"}
		enriched, err := enricher.Enrich(context.Background(), mr)
		Expect(err).NotTo(HaveOccurred())
		Expect(enriched.AI).NotTo(BeNil())
		Expect(enriched.AI.Model).To(Equal("llama3"))

		diffs.err = errors.New("boom")
		unchanged, err := enricher.Enrich(context.Background(), mr)
		Expect(err).To(HaveOccurred())
		Expect(unchanged.AI).To(BeNil())
	})
})
