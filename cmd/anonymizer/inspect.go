package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/tabular"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "List sheets and columns and report columns whose values differ across sheets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		collector := tabular.FileCollector{Paths: args, Allowed: rt.cfg.AllowedExtensions}
		datasets, err := collector.Collect(cmd.Context())
		if err != nil {
			return err
		}

		inspection := anonymizer.Inspect(datasets, rt.cfg.ConsistencyMode)
		if inspectJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inspection)
		}
		return printInspection(cmd.OutOrStdout(), inspection)
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the inspection as JSON")
}

func printInspection(w io.Writer, inspection *anonymizer.Inspection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tSHEET\tROWS\tCOLUMNS")
	for _, ds := range inspection.Datasets {
		for _, sheet := range ds.Sheets {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ds.Name, sheet.Name, sheet.Rows, strings.Join(sheet.Columns, ", "))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(inspection.SharedColumns) > 0 {
		fmt.Fprintf(w, "\nShared columns: %s\n", strings.Join(inspection.SharedColumns, ", "))
	}

	if len(inspection.Issues) == 0 {
		fmt.Fprintln(w, "\nNo consistency issues found.")
		return nil
	}
	fmt.Fprintln(w, "\nConsistency issues:")
	for _, issue := range inspection.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
	return nil
}
