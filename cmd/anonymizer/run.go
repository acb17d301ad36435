package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/tabular"
)

var (
	methodsPath     string
	methodOverrides map[string]string
	outDir          string
	showMetrics     bool
)

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Anonymize spreadsheet files and write the output next to an audit log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selection, err := buildSelection(methodsPath, methodOverrides)
		if err != nil {
			return err
		}

		rt, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		anon, err := rt.newAnonymizer()
		if err != nil {
			return err
		}

		dir := outputDir(rt)
		emitter, err := tabular.NewFileEmitter(dir, rt.logger.Named("emitter"))
		if err != nil {
			return err
		}

		result, err := anon.Run(cmd.Context(), anonymizer.Request{
			Collector: tabular.FileCollector{Paths: args, Allowed: rt.cfg.AllowedExtensions},
			Selection: selection,
			Emitter:   emitter,
		})
		if err != nil {
			printRunError(cmd.ErrOrStderr(), err)
			return err
		}

		printResult(cmd.OutOrStdout(), dir, result)
		return nil
	},
}

func init() {
	addMethodFlags(runCmd)
}

func addMethodFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&methodsPath, "methods", "", "YAML file selecting a method per column")
	cmd.Flags().StringToStringVar(&methodOverrides, "method", nil, "Column method override, e.g. --method Name=sha256 (repeatable)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print the run metrics report")
}

func outputDir(rt *app) string {
	if outDir != "" {
		return outDir
	}
	return rt.cfg.OutputDir
}

func printResult(w io.Writer, dir string, result *anonymizer.Result) {
	fmt.Fprintf(w, "Run %s completed\n", result.RunID)
	for _, name := range result.Artifacts {
		fmt.Fprintf(w, "  %s\n", filepath.Join(dir, name))
	}
	if showMetrics {
		fmt.Fprintln(w)
		fmt.Fprint(w, result.Report)
	}
}

// printRunError lists every offending column when validation rejected the run
func printRunError(w io.Writer, err error) {
	var verr *anonymizer.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	fmt.Fprintln(w, "Validation failed; nothing was written:")
	for _, issue := range verr.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}
