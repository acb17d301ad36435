// pkg/model/dataset.go
package model

// Format identifies the on-disk structure a dataset was read from
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DefaultSheetName is the synthetic sheet name given to delimited-text files
const DefaultSheetName = "Sheet1"

// Dataset is a named collection of sheets (one workbook or one delimited file)
type Dataset struct {
	Name   string   // Source file name (no path)
	Format Format   // Format the dataset was read from
	Sheets []*Sheet // Sheets in workbook order
}

// Sheet is an ordered sequence of named columns
type Sheet struct {
	Name    string
	Columns []*Column
}

// Column is an ordered sequence of cell values; nil marks an absent value
type Column struct {
	Name   string
	Values []interface{}
}

// SheetByName returns a sheet by exact name, nil if not found
func (d *Dataset) SheetByName(name string) *Sheet {
	for _, s := range d.Sheets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SheetNames returns sheet names in order
func (d *Dataset) SheetNames() []string {
	names := make([]string, len(d.Sheets))
	for i, s := range d.Sheets {
		names[i] = s.Name
	}
	return names
}

// Clone returns a deep copy of the dataset so a run can write values
// without touching the caller's data
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Name:   d.Name,
		Format: d.Format,
		Sheets: make([]*Sheet, len(d.Sheets)),
	}
	for i, s := range d.Sheets {
		out.Sheets[i] = s.Clone()
	}
	return out
}

// ColumnByName returns a column by exact name
// Returns nil if column not found
func (s *Sheet) ColumnByName(name string) *Column {
	for _, col := range s.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// ColumnNames returns column names in order
func (s *Sheet) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// RowCount returns the number of data rows (the longest column)
func (s *Sheet) RowCount() int {
	rows := 0
	for _, col := range s.Columns {
		if len(col.Values) > rows {
			rows = len(col.Values)
		}
	}
	return rows
}

// Clone returns a deep copy of the sheet
func (s *Sheet) Clone() *Sheet {
	out := &Sheet{
		Name:    s.Name,
		Columns: make([]*Column, len(s.Columns)),
	}
	for i, col := range s.Columns {
		values := make([]interface{}, len(col.Values))
		copy(values, col.Values)
		out.Columns[i] = &Column{Name: col.Name, Values: values}
	}
	return out
}

// IsNull determines if a cell value should be treated as absent
func IsNull(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && s == "" {
		return true
	}
	return false
}
