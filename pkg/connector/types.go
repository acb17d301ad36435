// pkg/connector/types.go
package connector

import (
	"strconv"
	"strings"

	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// PostgreSQL column types chosen for loaded sheets
const (
	PostgresBigint = "BIGINT"
	PostgresDouble = "DOUBLE PRECISION"
	PostgresText   = "TEXT"
)

// InferPostgresType picks the narrowest type that holds every non-null value
// of col without changing its text form. "007" stays TEXT so leading zeros
// survive; an all-null column is TEXT.
func InferPostgresType(col *model.Column) string {
	seen := false
	allInt, allFloat := true, true
	for _, v := range col.Values {
		if model.IsNull(v) {
			continue
		}
		seen = true
		text := strings.TrimSpace(transform.ToText(v))

		if allInt {
			n, err := strconv.ParseInt(text, 10, 64)
			allInt = err == nil && strconv.FormatInt(n, 10) == text
		}
		if allFloat {
			f, err := strconv.ParseFloat(text, 64)
			allFloat = err == nil && strconv.FormatFloat(f, 'f', -1, 64) == text
		}
		if !allInt && !allFloat {
			return PostgresText
		}
	}

	switch {
	case !seen:
		return PostgresText
	case allInt:
		return PostgresBigint
	case allFloat:
		return PostgresDouble
	default:
		return PostgresText
	}
}

// ConvertValueForPostgres converts a cell to the Go value inserted into a
// column of targetType. Values that do not parse fall back to their text form.
func ConvertValueForPostgres(value interface{}, targetType string) interface{} {
	if model.IsNull(value) {
		return nil
	}

	text := strings.TrimSpace(transform.ToText(value))
	switch targetType {
	case PostgresBigint:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n
		}
	case PostgresDouble:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	}
	return transform.ToText(value)
}
