// pkg/tabular/xlsx.go
package tabular

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// readXLSX reads every sheet of a workbook; the first row of each sheet is its header
func readXLSX(name string, r io.Reader) (*model.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer f.Close()

	ds := &model.Dataset{Name: name, Format: model.FormatXLSX}
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheetName, name, err)
		}
		ds.Sheets = append(ds.Sheets, sheetFromRows(sheetName, rows))
	}

	return ds, nil
}

// writeXLSX writes a workbook with one worksheet per sheet, in order
func writeXLSX(w io.Writer, ds *model.Dataset) error {
	if len(ds.Sheets) == 0 {
		return fmt.Errorf("workbook %s has no sheets", ds.Name)
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with a default sheet; reuse it for the first sheet
	defaultSheet := f.GetSheetName(0)
	for i, sheet := range ds.Sheets {
		if i == 0 {
			if sheet.Name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
					return fmt.Errorf("failed to name sheet %s: %w", sheet.Name, err)
				}
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook %s: %w", ds.Name, err)
	}
	return nil
}

// writeSheet streams the header and rows of one sheet
func writeSheet(f *excelize.File, sheet *model.Sheet) error {
	sw, err := f.NewStreamWriter(sheet.Name)
	if err != nil {
		return fmt.Errorf("failed to open stream for sheet %s: %w", sheet.Name, err)
	}

	header, rows := sheetRows(sheet)

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("failed to write header of sheet %s: %w", sheet.Name, err)
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d of sheet %s: %w", r+2, sheet.Name, err)
		}
		for i, v := range row {
			row[i] = cellValue(v)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d of sheet %s: %w", r+2, sheet.Name, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet %s: %w", sheet.Name, err)
	}
	return nil
}

// cellValue stores canonical numeric text as a number so spreadsheet tools
// do not flag it as "number stored as text". Other values are written as-is.
func cellValue(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return f
	}
	return v
}
