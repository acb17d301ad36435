package aggregator

import (
	"fmt"
	"strings"
)

// Mismatch describes how one occurrence of a column differs from the reference occurrence
type Mismatch struct {
	Reference string
	Location  string
	Missing   []string // in the reference, absent here
	Extra     []string // here, absent from the reference
}

// ConsistencyError is returned when a column's values differ between sheets or datasets
type ConsistencyError struct {
	Column     string
	Mismatches []Mismatch
}

func (e *ConsistencyError) Error() string {
	locations := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		locations = append(locations, fmt.Sprintf("%s vs %s", m.Reference, m.Location))
	}
	return fmt.Sprintf("column %q has inconsistent values (%s)", e.Column, strings.Join(locations, "; "))
}

// Locations returns every location involved in the mismatch, reference first
func (e *ConsistencyError) Locations() []string {
	if len(e.Mismatches) == 0 {
		return nil
	}
	locations := []string{e.Mismatches[0].Reference}
	for _, m := range e.Mismatches {
		locations = append(locations, m.Location)
	}
	return locations
}
