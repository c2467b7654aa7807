package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/fredsync"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fetch history",
	Long:  "Displays recent fetch log entries for all tracked series.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		log := fredsync.NewFetchLog(pool)
		entries, err := log.Recent(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no fetch entries found, run 'loanmarket sync' to start syncing")
			return nil
		}

		formatFetchEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "max entries to show")
	rootCmd.AddCommand(statusCmd)
}

// formatFetchEntries writes a tabular representation of fetch entries to w.
func formatFetchEntries(out io.Writer, entries []fredsync.FetchEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSERIES\tSTATUS\tSTARTED\tDURATION\tFETCHED\tWRITTEN\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------\t-------\t-------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			d := e.CompletedAt.Sub(e.StartedAt).Round(time.Second)
			dur = d.String()
		}

		errMsg := ""
		if e.Error != "" {
			errMsg = truncate(e.Error, 60)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.ID,
			e.SeriesID,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.RowsFetched,
			e.RowsWritten,
			errMsg,
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
