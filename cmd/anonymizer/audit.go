package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-anonymizer/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit RUN_ID",
	Short: "Show the audit entries stored for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		store, err := rt.openStore(cmd.Context())
		if err != nil {
			return err
		}

		entries, err := store.EntriesForRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no audit entries recorded for run %s", args[0])
		}
		return printEntries(cmd.OutOrStdout(), entries)
	},
}

func printEntries(w io.Writer, entries []audit.StoredEntry) error {
	fmt.Fprintf(w, "Run %s at %s over %s\n\n",
		entries[0].RunID, entries[0].RunAt.Format(audit.ReportTimestampLayout), entries[0].SourceFiles)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tREQUESTED\tMETHOD\tPARAMS\tCELLS\tPASS-THROUGH\tFALLBACK")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
			e.ColumnName, e.RequestedMethod, e.Method, e.Params, e.CellsTransformed, e.PassThroughCells, e.Fallback)
	}
	return tw.Flush()
}
