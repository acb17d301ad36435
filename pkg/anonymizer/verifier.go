// pkg/anonymizer/verifier.go
package anonymizer

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// StructureDiscrepancy is one structural difference between input and output
type StructureDiscrepancy struct {
	Dataset  string
	Sheet    string
	Column   string
	Kind     string
	Expected string
	Actual   string
}

// String returns a formatted discrepancy line
func (d StructureDiscrepancy) String() string {
	location := d.Dataset
	if d.Sheet != "" {
		location += "/" + d.Sheet
	}
	if d.Column != "" {
		location += "/" + d.Column
	}
	return fmt.Sprintf("%s: %s (expected %s, got %s)", location, d.Kind, d.Expected, d.Actual)
}

// VerificationReport contains the result of a structure verification
type VerificationReport struct {
	VerificationTime time.Time
	StructureMatches bool
	Discrepancies    []StructureDiscrepancy
	Duration         time.Duration
}

// Error returns the discrepancies as an error, nil when the structure matches
func (r *VerificationReport) Error() error {
	if r.StructureMatches {
		return nil
	}
	lines := make([]string, 0, len(r.Discrepancies))
	for _, d := range r.Discrepancies {
		lines = append(lines, d.String())
	}
	return fmt.Errorf("output structure differs from input: %s", strings.Join(lines, "; "))
}

// Verifier checks that outputs keep the sheet, column and row layout of inputs
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// VerifyStructure compares datasets pairwise by position. Methods replace
// values in place on cloned sheets, so a discrepancy here means a method
// changed the layout it was handed; it is an invariant check on APPLY, not
// a check of the serialized artifacts.
func (v *Verifier) VerifyStructure(input, output []*model.Dataset) *VerificationReport {
	start := time.Now()
	report := &VerificationReport{VerificationTime: start}

	add := func(d StructureDiscrepancy) {
		report.Discrepancies = append(report.Discrepancies, d)
	}

	if len(input) != len(output) {
		add(StructureDiscrepancy{
			Kind:     "dataset count",
			Expected: fmt.Sprint(len(input)),
			Actual:   fmt.Sprint(len(output)),
		})
	}

	for i := 0; i < len(input) && i < len(output); i++ {
		in, out := input[i], output[i]

		if in.Name != out.Name {
			add(StructureDiscrepancy{Dataset: in.Name, Kind: "dataset name", Expected: in.Name, Actual: out.Name})
			continue
		}

		inSheets, outSheets := in.SheetNames(), out.SheetNames()
		if strings.Join(inSheets, "\x00") != strings.Join(outSheets, "\x00") {
			add(StructureDiscrepancy{
				Dataset:  in.Name,
				Kind:     "sheet names",
				Expected: strings.Join(inSheets, ","),
				Actual:   strings.Join(outSheets, ","),
			})
			continue
		}

		for j, inSheet := range in.Sheets {
			outSheet := out.Sheets[j]

			inCols, outCols := inSheet.ColumnNames(), outSheet.ColumnNames()
			if strings.Join(inCols, "\x00") != strings.Join(outCols, "\x00") {
				add(StructureDiscrepancy{
					Dataset:  in.Name,
					Sheet:    inSheet.Name,
					Kind:     "column names",
					Expected: strings.Join(inCols, ","),
					Actual:   strings.Join(outCols, ","),
				})
				continue
			}

			if inSheet.RowCount() != outSheet.RowCount() {
				add(StructureDiscrepancy{
					Dataset:  in.Name,
					Sheet:    inSheet.Name,
					Kind:     "row count",
					Expected: fmt.Sprint(inSheet.RowCount()),
					Actual:   fmt.Sprint(outSheet.RowCount()),
				})
			}

			for k, inCol := range inSheet.Columns {
				if len(inCol.Values) != len(outSheet.Columns[k].Values) {
					add(StructureDiscrepancy{
						Dataset:  in.Name,
						Sheet:    inSheet.Name,
						Column:   inCol.Name,
						Kind:     "value count",
						Expected: fmt.Sprint(len(inCol.Values)),
						Actual:   fmt.Sprint(len(outSheet.Columns[k].Values)),
					})
				}
			}
		}
	}

	report.StructureMatches = len(report.Discrepancies) == 0
	report.Duration = time.Since(start)

	if v.logger != nil && !report.StructureMatches {
		v.logger.Error("Output structure verification failed",
			zap.Int("discrepancies", len(report.Discrepancies)))
	}

	return report
}
