// pkg/tabular/csv.go
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

const utf8BOM = "\ufeff"

// readCSV reads delimited text as a dataset with one synthetic sheet
func readCSV(name string, r io.Reader) (*model.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		rows = append(rows, record)
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}

	return &model.Dataset{
		Name:   name,
		Format: model.FormatCSV,
		Sheets: []*model.Sheet{sheetFromRows(model.DefaultSheetName, rows)},
	}, nil
}

// writeCSV writes the dataset's only sheet as delimited text
func writeCSV(w io.Writer, ds *model.Dataset) error {
	if len(ds.Sheets) != 1 {
		return fmt.Errorf("delimited text holds exactly one sheet, %s has %d", ds.Name, len(ds.Sheets))
	}

	writer := csv.NewWriter(w)
	header, rows := sheetRows(ds.Sheets[0])

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, v := range row {
			record[i] = transform.ToText(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", ds.Name, err)
	}
	return nil
}
