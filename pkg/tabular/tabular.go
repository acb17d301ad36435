// pkg/tabular/tabular.go
package tabular

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// SupportedFormats lists the formats Read and Write understand
var SupportedFormats = []model.Format{model.FormatXLSX, model.FormatCSV}

// UnsupportedFormatError is returned for files that are neither workbooks nor delimited text
type UnsupportedFormatError struct {
	Filename  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported file format for %q: missing extension", e.Filename)
	}
	return fmt.Sprintf("unsupported file format for %q: .%s", e.Filename, e.Extension)
}

// FormatFromName determines the format from a file name's extension
func FormatFromName(name string) (model.Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	format := model.Format(ext)
	if !lo.Contains(SupportedFormats, format) {
		return "", &UnsupportedFormatError{Filename: name, Extension: ext}
	}
	return format, nil
}

// CheckAllowed returns an UnsupportedFormatError when name's extension is not in allowed.
// An empty allowed list accepts every supported format.
func CheckAllowed(name string, allowed []string) error {
	format, err := FormatFromName(name)
	if err != nil {
		return err
	}
	if len(allowed) == 0 {
		return nil
	}
	if !lo.ContainsBy(allowed, func(ext string) bool {
		return strings.EqualFold(strings.TrimPrefix(ext, "."), string(format))
	}) {
		return &UnsupportedFormatError{Filename: name, Extension: string(format)}
	}
	return nil
}

// Read parses r as the format implied by name
func Read(name string, r io.Reader) (*model.Dataset, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(name)
	switch format {
	case model.FormatCSV:
		return readCSV(base, r)
	default:
		return readXLSX(base, r)
	}
}

// Open reads the dataset stored at path
func Open(path string) (*model.Dataset, error) {
	if _, err := FormatFromName(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(path, f)
}

// Write serializes ds in its own format, keeping sheet and column order
func Write(w io.Writer, ds *model.Dataset) error {
	switch ds.Format {
	case model.FormatCSV:
		return writeCSV(w, ds)
	case model.FormatXLSX:
		return writeXLSX(w, ds)
	default:
		return &UnsupportedFormatError{Filename: ds.Name, Extension: string(ds.Format)}
	}
}

// OutputName returns the artifact name for an anonymized copy of source
func OutputName(source string, ts time.Time) string {
	return fmt.Sprintf("Anonymized_%s_%s", ts.Format(model.ArtifactTimestampLayout), filepath.Base(source))
}

// ArchiveName returns the artifact name of the archive for a multi-file run
func ArchiveName(ts time.Time) string {
	return fmt.Sprintf("Anonymized_%s_batch.zip", ts.Format(model.ArtifactTimestampLayout))
}

// sheetFromRows builds a sheet from a header row followed by data rows.
// Short rows are padded with nulls; cells beyond the header get "Unnamed: <i>" columns.
// A repeated header name gets a ".<n>" suffix so every column in a sheet is distinct.
func sheetFromRows(name string, rows [][]string) *model.Sheet {
	sheet := &model.Sheet{Name: name}
	if len(rows) == 0 {
		return sheet
	}

	header := rows[0]
	width := len(header)
	for _, row := range rows[1:] {
		if len(row) > width {
			width = len(row)
		}
	}

	names := make([]string, width)
	for i := range names {
		if i < len(header) {
			names[i] = strings.TrimSpace(header[i])
		}
		if names[i] == "" {
			names[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}
	names = dedupeHeader(names)

	sheet.Columns = make([]*model.Column, width)
	for i := 0; i < width; i++ {
		sheet.Columns[i] = &model.Column{
			Name:   names[i],
			Values: make([]interface{}, len(rows)-1),
		}
	}

	for r, row := range rows[1:] {
		for i, cell := range row {
			if cell == "" {
				continue
			}
			sheet.Columns[i].Values[r] = cell
		}
	}

	return sheet
}

// dedupeHeader renames repeats of a name to name.1, name.2, ... skipping
// suffixed names that already appear in the header
func dedupeHeader(names []string) []string {
	counts := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		cur := counts[name]
		for cur > 0 {
			counts[name] = cur + 1
			name = fmt.Sprintf("%s.%d", name, cur)
			cur = counts[name]
		}
		out[i] = name
		counts[name] = cur + 1
	}
	return out
}

// sheetRows returns the header followed by each data row, nulls as nil
func sheetRows(sheet *model.Sheet) (header []string, rows [][]interface{}) {
	header = sheet.ColumnNames()
	count := sheet.RowCount()
	rows = make([][]interface{}, count)
	for r := 0; r < count; r++ {
		row := make([]interface{}, len(sheet.Columns))
		for c, col := range sheet.Columns {
			if r < len(col.Values) && !model.IsNull(col.Values[r]) {
				row[c] = col.Values[r]
			}
		}
		rows[r] = row
	}
	return header, rows
}
