package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/llm"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/collector"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/enrichment"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/jira"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/queue"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		groups []string
		since  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one collection over the configured groups",
		Long: `Walks projects, issues, merge requests and linked Jira issues of every group,
resuming interrupted imports from their last checkpoint. The run watermark only
advances when every walk completed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.ValidateRun(); err != nil {
				return err
			}

			req := importer.RunRequest{Groups: groups}
			if len(req.Groups) == 0 {
				req.Groups = a.cfg.GitLab.Groups
			}
			if len(req.Groups) == 0 {
				return fmt.Errorf("no groups to collect: pass --group or set GITLAB_GROUPS")
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
				req.Since = &t
			}

			coordinator, cleanup, err := a.coordinator(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := coordinator.Run(ctx, req)
			if err != nil {
				return err
			}

			printRunReport(cmd.OutOrStdout(), report)
			if !report.WatermarkAdvanced {
				return errRunFailed
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&groups, "group", nil, "GitLab group full path, repeatable (default GITLAB_GROUPS)")
	cmd.Flags().StringVar(&since, "since", "", "override the computed since (RFC3339)")
	return cmd
}

// coordinator wires the GitLab, Jira, LLM and Redis clients into the import walkers.
// Jira, enrichment and Redis are optional and skipped when not configured.
func (a *app) coordinator(ctx context.Context) (*importer.Coordinator, func(), error) {
	gl, err := gitlab.New(a.cfg.GitLab)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	deps := collector.Deps{
		GitLab:         gl,
		Progress:       a.stores.ImportProgress(),
		Failures:       a.stores.ImportFailures(),
		Projects:       a.stores.Projects(),
		Issues:         a.stores.Issues(),
		ClosedIssues:   a.stores.ClosedIssues(),
		ExternalIssues: a.stores.ExternalIssues(),
		Tx:             store.NewTxRunner(a.db),

		LinkedIssuePageSize: a.cfg.Collector.LinkedIssuePageSize,
		LinkedIssueLookback: a.cfg.Collector.LinkedIssueLookback,
	}

	if a.cfg.Jira.Enabled() {
		deps.Tracker = jira.NewClient(a.cfg.Jira)
	} else {
		slog.InfoContext(ctx, "jira not configured, linked issues are not imported")
	}

	if a.cfg.Enrichment.Enabled() {
		client, err := llm.New(llm.Config{
			APIKey:  a.cfg.Enrichment.APIKey,
			BaseURL: a.cfg.Enrichment.BaseURL,
			Model:   a.cfg.Enrichment.Model,
			Timeout: 2 * time.Minute,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating llm client: %w", err)
		}
		svc := enrichment.NewService(client, gl, enrichment.Config{
			MaxContextChars:  a.cfg.Enrichment.MaxContextChars,
			StructuredOutput: a.cfg.Enrichment.StructuredOutput,
		})
		deps.Summaries = enrichment.NewEnricher(svc)
		slog.InfoContext(ctx, "merge request enrichment enabled", "model", client.Model())
	}

	opts := []importer.CoordinatorOption{importer.WithFailureStore(a.stores.ImportFailures())}
	cleanup := func() {}

	if a.cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		producer := queue.NewRedisProducer(redis.NewClient(redisOpts), a.cfg.Redis.Stream, slog.Default())
		opts = append(opts, importer.WithPublisher(producer))
		cleanup = func() {
			if err := producer.Close(); err != nil {
				slog.WarnContext(ctx, "closing redis producer", "error", err)
			}
		}
	}

	coordinator := importer.NewCoordinator(a.stores.CollectorRuns(), collector.Walkers(deps), importer.CoordinatorConfig{
		InitialIngestionDate: a.cfg.Collector.InitialIngestionDate,
		GroupConcurrency:     a.cfg.Collector.GroupConcurrency,
		FailureRetention:     a.cfg.Collector.FailureRetention,
	}, opts...)
	return coordinator, cleanup, nil
}
