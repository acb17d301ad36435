package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/connector"
	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/tabular"
)

var (
	extractSource string
	extractTables []string
	extractName   string
	loadSchema    string
)

var extractCmd = &cobra.Command{
	Use:   "extract --source postgres|snowflake --table SCHEMA.TABLE...",
	Short: "Anonymize database tables as one workbook, one sheet per table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		selection, err := buildSelection(methodsPath, methodOverrides)
		if err != nil {
			return err
		}

		rt, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		factory := connector.NewConnectorFactory(rt.cfg, rt.logger)
		conn, err := factory.CreateConnector(ctx, extractSource)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := conn.Validate(ctx); err != nil {
			return err
		}

		source, err := connector.NewTableSource(conn, 0, rt.logger.Named("table-source"))
		if err != nil {
			return err
		}

		anon, err := rt.newAnonymizer()
		if err != nil {
			return err
		}

		dir := outputDir(rt)
		emitter, err := tabular.NewFileEmitter(dir, rt.logger.Named("emitter"))
		if err != nil {
			return err
		}

		collector := anonymizer.CollectorFunc(func(ctx context.Context) ([]*model.Dataset, error) {
			ds, err := source.ReadDataset(ctx, extractName, extractTables)
			if err != nil {
				return nil, err
			}
			return []*model.Dataset{ds}, nil
		})

		result, err := anon.Run(ctx, anonymizer.Request{
			Collector: collector,
			Selection: selection,
			Emitter:   emitter,
		})
		if err != nil {
			printRunError(cmd.ErrOrStderr(), err)
			return err
		}
		printResult(cmd.OutOrStdout(), dir, result)

		if loadSchema == "" {
			return nil
		}

		pg, err := factory.CreatePostgresConnector(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()

		rows, err := pg.LoadDataset(ctx, loadSchema, result.Datasets[0])
		if err != nil {
			return fmt.Errorf("failed to load anonymized tables: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d row(s) into schema %s\n", rows, loadSchema)
		return nil
	},
}

func init() {
	addMethodFlags(extractCmd)
	extractCmd.Flags().StringVar(&extractSource, "source", connector.KindPostgres, "Database to read from: postgres or snowflake")
	extractCmd.Flags().StringArrayVar(&extractTables, "table", nil, "Table to read, optionally schema-qualified (repeatable)")
	extractCmd.Flags().StringVar(&extractName, "name", "extract.xlsx", "Name of the workbook the tables are written as")
	extractCmd.Flags().StringVar(&loadSchema, "load-schema", "", "Also load the anonymized tables into this PostgreSQL schema")
	_ = extractCmd.MarkFlagRequired("table")
}
