package anonymizer

import (
	"github.com/David-Botos/data-anonymizer/pkg/aggregator"
	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// SheetSummary describes one sheet of an inspected dataset
type SheetSummary struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// DatasetSummary describes one inspected dataset
type DatasetSummary struct {
	Name   string         `json:"name"`
	Format model.Format   `json:"format"`
	Sheets []SheetSummary `json:"sheets"`
}

// Inspection lists the layout of a set of datasets and the consistency problems
// that would abort a run over them
type Inspection struct {
	Datasets      []DatasetSummary `json:"datasets"`
	Columns       []string         `json:"columns"`
	SharedColumns []string         `json:"shared_columns"`
	Issues        []ColumnIssue    `json:"issues"`
}

// Inspect summarizes datasets without transforming anything
func Inspect(datasets []*model.Dataset, mode aggregator.Mode) *Inspection {
	agg := aggregator.New(datasets, mode)

	inspection := &Inspection{
		Columns:       agg.Columns(),
		SharedColumns: agg.SharedColumns(),
		Issues:        issuesFromConsistency(agg.ValidateAll()),
	}

	for _, ds := range datasets {
		summary := DatasetSummary{Name: ds.Name, Format: ds.Format}
		for _, sheet := range ds.Sheets {
			summary.Sheets = append(summary.Sheets, SheetSummary{
				Name:    sheet.Name,
				Columns: sheet.ColumnNames(),
				Rows:    sheet.RowCount(),
			})
		}
		inspection.Datasets = append(inspection.Datasets, summary)
	}

	return inspection
}
