// pkg/anonymizer/job.go
package anonymizer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// SheetJob is the APPLY work for one sheet
type SheetJob struct {
	ID      string       // Unique job identifier
	Index   int          // Position of the sheet across the whole run
	Dataset string       // Dataset the sheet belongs to
	Sheet   *model.Sheet // Working copy, transformed in place
}

// NewSheetJob creates a job for a sheet
func NewSheetJob(index int, dataset string, sheet *model.Sheet) SheetJob {
	return SheetJob{
		ID:      uuid.New().String(),
		Index:   index,
		Dataset: dataset,
		Sheet:   sheet,
	}
}

// FullName returns "dataset/sheet"
func (j SheetJob) FullName() string {
	return fmt.Sprintf("%s/%s", j.Dataset, j.Sheet.Name)
}

// SheetResult is the outcome of a SheetJob
type SheetResult struct {
	JobID            string
	Index            int
	Dataset          string
	Sheet            string
	Rows             int
	CellsTransformed map[string]int // per column name
	CellBytes        int64          // text volume of the sheet's non-null cells
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	WorkerID         int
}

// NewSheetResult initializes a result for a job
func NewSheetResult(job SheetJob, workerID int) *SheetResult {
	return &SheetResult{
		JobID:            job.ID,
		Index:            job.Index,
		Dataset:          job.Dataset,
		Sheet:            job.Sheet.Name,
		Rows:             job.Sheet.RowCount(),
		CellsTransformed: make(map[string]int),
		StartTime:        time.Now(),
		WorkerID:         workerID,
	}
}

// Complete marks the job finished and calculates duration
func (r *SheetResult) Complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// TotalTransformed returns the cells transformed across all columns
func (r *SheetResult) TotalTransformed() int {
	total := 0
	for _, n := range r.CellsTransformed {
		total += n
	}
	return total
}
