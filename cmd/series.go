package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/creditlens/loanmarket-api/internal/catalog"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "List tracked FRED series",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatCatalog(os.Stdout, catalog.New().All())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seriesCmd)
}

func formatCatalog(out io.Writer, series []catalog.Series) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKEY\tCATEGORY\tUNIT\tCADENCE\tNAME")
	_, _ = fmt.Fprintln(w, "--\t---\t--------\t----\t-------\t----")
	for _, s := range series {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Key, s.Category, s.Unit, s.Cadence, truncate(s.Name, 70))
	}
	_ = w.Flush()
}
