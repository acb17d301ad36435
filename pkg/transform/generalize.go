// pkg/transform/generalize.go
package transform

import (
	"fmt"
	"math"
	"math/big"
)

// DefaultRangeSize is used when a range size is missing or unusable
const DefaultRangeSize = 10

// RangeGeneralize replaces a numeric value with the label "{lower}-{upper}"
// where lower = floor(value/size)*size and upper = lower+size-1.
// Values that do not parse as a number are returned unchanged with ok=false
// so callers can count or reject them.
func RangeGeneralize(value interface{}, rangeSize int) (result interface{}, ok bool) {
	if rangeSize <= 0 {
		rangeSize = DefaultRangeSize
	}

	numeric, err := ToFloat(value)
	if err != nil {
		return value, false
	}

	size := float64(rangeSize)
	floored := math.Floor(numeric/size) * size
	if math.IsInf(floored, 0) {
		return value, false
	}
	if floored >= math.MinInt64 && floored < math.MaxInt64 {
		lower := int64(floored)
		if lower <= math.MaxInt64-int64(rangeSize) {
			return fmt.Sprintf("%d-%d", lower, lower+int64(rangeSize)-1), true
		}
	}

	// Outside int64: exact integer arithmetic on the floored bound.
	lower, _ := new(big.Float).SetFloat64(floored).Int(nil)
	upper := new(big.Int).Add(lower, big.NewInt(int64(rangeSize)-1))
	return lower.String() + "-" + upper.String(), true
}
