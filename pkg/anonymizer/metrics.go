// pkg/anonymizer/metrics.go
package anonymizer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// RunMetrics tracks counters and stage timings for one run
type RunMetrics struct {
	mu               sync.Mutex
	logger           *zap.Logger
	RunID            string
	StartTime        time.Time
	EndTime          time.Time
	StageDurations   map[Stage]time.Duration
	Datasets         int
	Sheets           int
	Columns          int
	Rows             int
	CellsTransformed int
	PassThroughCells int
	CellBytes        int64
	Failed           bool
	FailedStage      Stage
	stageStart       time.Time
	currentStage     Stage
}

// NewRunMetrics creates metrics for a run starting now
func NewRunMetrics(runID string, logger *zap.Logger) *RunMetrics {
	now := time.Now()
	return &RunMetrics{
		logger:         logger,
		RunID:          runID,
		StartTime:      now,
		StageDurations: make(map[Stage]time.Duration),
		stageStart:     now,
	}
}

// StartStage closes the running stage and begins timing the next one
func (m *RunMetrics) StartStage(stage Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.closeStage(now)
	m.currentStage = stage
	m.stageStart = now

	if m.logger != nil {
		m.logger.Debug("Stage started",
			zap.String("runID", m.RunID),
			zap.String("stage", string(stage)))
	}
}

func (m *RunMetrics) closeStage(now time.Time) {
	if m.currentStage != "" {
		m.StageDurations[m.currentStage] += now.Sub(m.stageStart)
	}
}

// CurrentStage returns the stage being timed
func (m *RunMetrics) CurrentStage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentStage
}

// SetShape records the number of datasets and distinct column names
func (m *RunMetrics) SetShape(datasets, columns int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Datasets = datasets
	m.Columns = columns
}

// RecordSheet incorporates a sheet result
func (m *RunMetrics) RecordSheet(result SheetResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sheets++
	m.Rows += result.Rows
	m.CellsTransformed += result.TotalTransformed()
	m.CellBytes += result.CellBytes
}

// RecordPassThrough adds cells that range generalization left unchanged
func (m *RunMetrics) RecordPassThrough(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PassThroughCells += n
}

// Complete stops the clock; failed marks the stage that aborted the run
func (m *RunMetrics) Complete(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = time.Now()
	m.closeStage(m.EndTime)
	m.Failed = failed
	if failed {
		m.FailedStage = m.currentStage
	}
	m.currentStage = ""
}

// Duration returns the run duration so far
func (m *RunMetrics) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// Summary returns a copy of the counters, safe to hand to callers
func (m *RunMetrics) Summary() RunSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make(map[Stage]time.Duration, len(m.StageDurations))
	for k, v := range m.StageDurations {
		stages[k] = v
	}

	return RunSummary{
		RunID:            m.RunID,
		Datasets:         m.Datasets,
		Sheets:           m.Sheets,
		Columns:          m.Columns,
		Rows:             m.Rows,
		CellsTransformed: m.CellsTransformed,
		PassThroughCells: m.PassThroughCells,
		CellBytes:        m.CellBytes,
		Duration:         m.Duration(),
		StageDurations:   stages,
	}
}

// RunSummary is a point-in-time copy of RunMetrics
type RunSummary struct {
	RunID            string                  `json:"run_id"`
	Datasets         int                     `json:"datasets"`
	Sheets           int                     `json:"sheets"`
	Columns          int                     `json:"columns"`
	Rows             int                     `json:"rows"`
	CellsTransformed int                     `json:"cells_transformed"`
	PassThroughCells int                     `json:"pass_through_cells"`
	CellBytes        int64                   `json:"cell_bytes"`
	Duration         time.Duration           `json:"duration"`
	StageDurations   map[Stage]time.Duration `json:"stage_durations"`
}

// GenerateMetricsReport creates a human-readable metrics report
func (m *RunMetrics) GenerateMetricsReport() string {
	s := m.Summary()
	m.mu.Lock()
	failed, failedStage := m.Failed, m.FailedStage
	m.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`
Anonymization Metrics Report
============================
Run ID:                  %s
Duration:                %s
Start Time:              %s

Data Summary
------------
Datasets:                %s
Sheets:                  %s
Columns:                 %s
Rows:                    %s
Cells Transformed:       %s
Range Pass-through:      %s
Cell Data Volume:        %s
`,
		s.RunID,
		s.Duration.Round(time.Millisecond),
		m.StartTime.Format(time.RFC3339),
		humanize.Comma(int64(s.Datasets)),
		humanize.Comma(int64(s.Sheets)),
		humanize.Comma(int64(s.Columns)),
		humanize.Comma(int64(s.Rows)),
		humanize.Comma(int64(s.CellsTransformed)),
		humanize.Comma(int64(s.PassThroughCells)),
		humanize.Bytes(uint64(s.CellBytes)),
	))

	sb.WriteString("\nStage Durations\n---------------\n")
	for _, stage := range Stages {
		if d, ok := s.StageDurations[stage]; ok {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", stage, d.Round(time.Microsecond)))
		}
	}

	if failed {
		sb.WriteString(fmt.Sprintf("\nRun failed during %s\n", failedStage))
	}

	return sb.String()
}
