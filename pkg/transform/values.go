// pkg/transform/values.go
package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToText returns the text form of a cell value, the form every transform
// operates on. Nil becomes the empty string.
func ToText(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		// Use Sprint as a fallback
		return fmt.Sprintf("%v", val)
	}
}

// ToFloat attempts to convert a value to a finite float64
func ToFloat(v interface{}) (float64, error) {
	if v == nil {
		return 0, errors.New("nil value")
	}

	var f float64
	switch val := v.(type) {
	case int:
		f = float64(val)
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint8:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case float32:
		f = float64(val)
	case float64:
		f = val
	case string, []byte:
		cleaned := strings.TrimSpace(ToText(val))
		if cleaned == "" {
			return 0, errors.New("empty string")
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}
