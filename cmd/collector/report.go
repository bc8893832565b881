package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

func printRunReport(w io.Writer, r *importer.RunReport) {
	fmt.Fprintf(w, "run %s since %s (%s)\n\n", r.RunID, r.Since.Format(time.RFC3339), r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tTYPE\tSTATE\tFETCHED\tFILTERED\tMALFORMED\tPERSISTED\tPERSIST FAILED\tENRICH FAILED")
	for _, wr := range r.Walkers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			wr.GroupKey, wr.ImportType, wr.State,
			wr.Fetched(), wr.Filtered(), wr.Malformed(), wr.Persisted(), wr.PersistFailed(), wr.EnrichFailed())
	}
	tw.Flush()

	if failed := r.Failed(); len(failed) > 0 {
		fmt.Fprintln(w, "\nfailures:")
		for _, f := range failed {
			fmt.Fprintf(w, "  %s %s: %v (last good cursor: %s)\n", f.GroupKey, f.ImportType, f.Err, cursorOrStart(f.LastCursor))
		}
	}

	fmt.Fprintln(w)
	switch {
	case r.WatermarkAdvanced:
		fmt.Fprintf(w, "watermark advanced to %s\n", r.CompletedAt.Format(time.RFC3339))
	case r.WatermarkErr != nil:
		fmt.Fprintf(w, "watermark not advanced: %v\n", r.WatermarkErr)
	default:
		fmt.Fprintln(w, "watermark not advanced")
	}
}

func printImports(w io.Writer, rows []model.ImportProgress) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGROUP\tTYPE\tSTATUS\tSINCE\tPROCESSED\tLAST CURSOR\tLAST ACTIVITY\tERROR")
	for _, p := range rows {
		errMsg := ""
		if p.ErrorMessage != nil {
			errMsg = *p.ErrorMessage
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			p.ID, p.GroupKey, p.ImportType, p.Status,
			p.WatermarkSince.Format(time.RFC3339), p.TotalProcessed, cursorOrStart(p.LastCursor),
			p.LastActivityAt.Format(time.RFC3339), errMsg)
	}
	tw.Flush()
}

func cursorOrStart(c *string) string {
	if c == nil {
		return "(start)"
	}
	return *c
}
