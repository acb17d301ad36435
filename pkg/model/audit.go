// pkg/model/audit.go
package model

import "time"

// ArtifactTimestampLayout formats run timestamps in artifact file names
const ArtifactTimestampLayout = "20060102150405"

// AuditEntry records the method applied to one logical column
type AuditEntry struct {
	ColumnName       string            // Column the method was applied to
	Requested        string            // Method identifier as requested by the user
	Method           MethodID          // Method actually applied
	Params           map[string]string // Effective parameters (e.g. range_size=10)
	Fallback         bool              // Requested method was unknown and identity was applied
	Occurrences      int               // Number of sheets containing the column
	CellsTransformed int               // Non-null cells passed through the transform
	PassThroughCells int               // Range generalization cells left unchanged (non-numeric)
}

// Label returns the human-readable method label
func (e AuditEntry) Label() string {
	return e.Method.Label()
}

// AuditRecord describes one anonymization run
type AuditRecord struct {
	RunID       string       // Unique run identifier
	SourceFiles []string     // Source file names in input order
	Timestamp   time.Time    // When the run completed
	Entries     []AuditEntry // One entry per column, in first-seen order
	Caveats     []string     // Human-readable warnings about the output
}

// EntryFor returns the entry for a column, nil if the column was not seen
func (r *AuditRecord) EntryFor(column string) *AuditEntry {
	for i := range r.Entries {
		if r.Entries[i].ColumnName == column {
			return &r.Entries[i]
		}
	}
	return nil
}
