package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/worker"
)

func newScheduleCmd() *cobra.Command {
	var (
		groups      []string
		interval    time.Duration
		cleanupDays int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run collections on an interval until interrupted",
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
			if len(groups) == 0 {
				groups = a.cfg.GitLab.Groups
			}
			if len(groups) == 0 {
				return fmt.Errorf("no groups to collect: pass --group or set GITLAB_GROUPS")
			}

			coordinator, cleanup, err := a.coordinator(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if cleanupDays > 0 {
				janitor := worker.NewJanitor(a.stores.ImportProgress(), a.stores.ImportFailures(), worker.JanitorConfig{
					Retention: time.Duration(cleanupDays) * 24 * time.Hour,
					Interval:  24 * time.Hour,
				})
				go janitor.Run(ctx)
			}

			w := worker.New(coordinator, worker.Config{
				Groups:   groups,
				Interval: interval,
				OnReport: func(r *importer.RunReport) { printRunReport(cmd.OutOrStdout(), r) },
			})
			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				slog.InfoContext(context.WithoutCancel(ctx), "schedule interrupted")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&groups, "group", nil, "GitLab group full path, repeatable (default GITLAB_GROUPS)")
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between run starts")
	cmd.Flags().IntVar(&cleanupDays, "cleanup-days", 0, "also delete finished imports older than this many days once a day, 0 disables")
	return cmd
}
