// pkg/audit/report.go
package audit

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// ReportTimestampLayout is the human-readable timestamp used inside reports
const ReportTimestampLayout = "2006-01-02 15:04:05 MST"

// Report renders the plain-text audit artifact for a run
func Report(record *model.AuditRecord) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Anonymization log for file(s): %s\n", strings.Join(record.SourceFiles, ", ")))
	sb.WriteString(fmt.Sprintf("Run ID: %s\n", record.RunID))
	sb.WriteString(fmt.Sprintf("Timestamp: %s\n", record.Timestamp.Format(ReportTimestampLayout)))
	sb.WriteString("Methods applied:\n")

	for _, entry := range record.Entries {
		sb.WriteString(fmt.Sprintf("%s: %s", entry.ColumnName, entry.Label()))
		if params := FormatParams(entry.Params); params != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", params))
		}
		sb.WriteString("\n")
	}

	if len(record.Caveats) > 0 {
		sb.WriteString("Caveats:\n")
		for _, caveat := range record.Caveats {
			sb.WriteString(fmt.Sprintf("- %s\n", caveat))
		}
	}

	return sb.String()
}

// WriteReport writes the rendered report to w
func WriteReport(w io.Writer, record *model.AuditRecord) error {
	if _, err := io.WriteString(w, Report(record)); err != nil {
		return fmt.Errorf("failed to write audit report: %w", err)
	}
	return nil
}

// FormatParams renders parameters as "k=v, k=v" in key order
func FormatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(parts, ", ")
}

// LogName returns the artifact name of the report for a run
func LogName(sources []string, ts time.Time) string {
	stamp := ts.Format(model.ArtifactTimestampLayout)
	if len(sources) == 1 {
		return fmt.Sprintf("log_%s_%s.txt", stamp, sources[0])
	}
	return fmt.Sprintf("log_%s_batch.txt", stamp)
}
