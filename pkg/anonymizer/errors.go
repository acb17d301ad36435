// pkg/anonymizer/errors.go
package anonymizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/David-Botos/data-anonymizer/pkg/aggregator"
	"github.com/David-Botos/data-anonymizer/pkg/tabular"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// ErrorCategory defines categories of errors surfaced by a run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryValidation
	ErrorCategoryUnsupportedFormat
	ErrorCategoryProcessing
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryValidation:
		return "Validation"
	case ErrorCategoryUnsupportedFormat:
		return "UnsupportedFormat"
	case ErrorCategoryProcessing:
		return "Processing"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// Issue reasons reported in a ValidationError
const (
	ReasonInconsistentValues = "inconsistent values"
	ReasonUnknownMethod      = "unknown method"
	ReasonNonNumeric         = "non-numeric values"
)

// ColumnIssue is one column-identified validation problem
type ColumnIssue struct {
	Column      string   `json:"column"`
	Reason      string   `json:"reason"`
	Detail      string   `json:"detail,omitempty"`
	Occurrences []string `json:"occurrences,omitempty"` // dataset/sheet locations involved
}

// String returns a formatted issue line
func (i ColumnIssue) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", i.Column, i.Reason))
	if i.Detail != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", i.Detail))
	}
	if len(i.Occurrences) > 0 {
		sb.WriteString(fmt.Sprintf(" in %s", strings.Join(i.Occurrences, ", ")))
	}
	return sb.String()
}

// ValidationError aborts a run before any value is transformed
type ValidationError struct {
	Issues []ColumnIssue
}

func (e *ValidationError) Error() string {
	lines := lo.Map(e.Issues, func(issue ColumnIssue, _ int) string {
		return issue.String()
	})
	return fmt.Sprintf("validation failed for column(s) %s: %s",
		strings.Join(e.Columns(), ", "), strings.Join(lines, "; "))
}

// Columns returns the offending column names in report order
func (e *ValidationError) Columns() []string {
	return lo.Uniq(lo.Map(e.Issues, func(issue ColumnIssue, _ int) string {
		return issue.Column
	}))
}

// ProcessingError is an unexpected failure that aborted a run
type ProcessingError struct {
	Stage   Stage
	Dataset string
	Sheet   string
	Column  string
	Value   interface{}
	Err     error
}

func (e *ProcessingError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", e.Stage))

	if e.Dataset != "" {
		sb.WriteString(fmt.Sprintf("Dataset: %s ", e.Dataset))
	}
	if e.Sheet != "" {
		sb.WriteString(fmt.Sprintf("Sheet: %s ", e.Sheet))
	}
	if e.Column != "" {
		sb.WriteString(fmt.Sprintf("Column: %s ", e.Column))
		if e.Value != nil {
			sb.WriteString(fmt.Sprintf("Value: %q ", transform.ToText(e.Value)))
		}
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", e.Err.Error()))
	}

	return sb.String()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// CategorizeError determines the category of an error returned by Run
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var validationErr *ValidationError
	var consistencyErr *aggregator.ConsistencyError
	var formatErr *tabular.UnsupportedFormatError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &consistencyErr):
		return ErrorCategoryValidation
	case errors.As(err, &formatErr):
		return ErrorCategoryUnsupportedFormat
	default:
		return ErrorCategoryProcessing
	}
}

// issuesFromConsistency folds aggregator errors into column issues
func issuesFromConsistency(errs []*aggregator.ConsistencyError) []ColumnIssue {
	return lo.Map(errs, func(cerr *aggregator.ConsistencyError, _ int) ColumnIssue {
		var details []string
		for _, m := range cerr.Mismatches {
			var parts []string
			if len(m.Missing) > 0 {
				parts = append(parts, fmt.Sprintf("%d value(s) missing", len(m.Missing)))
			}
			if len(m.Extra) > 0 {
				parts = append(parts, fmt.Sprintf("%d unexpected value(s)", len(m.Extra)))
			}
			details = append(details, fmt.Sprintf("%s vs %s: %s", m.Reference, m.Location, strings.Join(parts, ", ")))
		}
		return ColumnIssue{
			Column:      cerr.Column,
			Reason:      ReasonInconsistentValues,
			Detail:      strings.Join(details, "; "),
			Occurrences: cerr.Locations(),
		}
	})
}
