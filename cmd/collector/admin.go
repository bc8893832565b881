package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/worker"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.db.Migrate(cmd.Context())
		},
	}
}

func newImportsCmd() *cobra.Command {
	var (
		status string
		limit  int32
	)
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List import lineages with their last checkpointed cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter *model.ImportStatus
			switch s := model.ImportStatus(status); s {
			case "":
			case model.ImportStatusInProgress, model.ImportStatusCompleted, model.ImportStatusFailed:
				filter = &s
			default:
				return fmt.Errorf("unknown status %q: want in_progress, completed or failed", status)
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.stores.ImportProgress().List(cmd.Context(), filter, limit)
			if err != nil {
				return fmt.Errorf("listing imports: %w", err)
			}
			printImports(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: in_progress, completed or failed")
	cmd.Flags().Int32Var(&limit, "limit", 50, "maximum number of lineages")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished import lineages and stale record failures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			retention := time.Duration(days) * 24 * time.Hour
			janitor := worker.NewJanitor(a.stores.ImportProgress(), a.stores.ImportFailures(), worker.JanitorConfig{Retention: retention})
			lineages, failures, err := janitor.CleanOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d import lineages and %d record failures older than %d days\n",
				lineages, failures, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "delete entries that finished more than this many days ago")
	return cmd
}
