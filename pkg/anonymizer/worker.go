// pkg/anonymizer/worker.go
package anonymizer

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/method"
	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// Worker applies resolved methods to the columns of a sheet
type Worker struct {
	ID      int
	methods map[string]method.Method
	logger  *zap.Logger
}

// NewWorker creates a worker over a read-only method table
func NewWorker(id int, methods map[string]method.Method, logger *zap.Logger) *Worker {
	return &Worker{
		ID:      id,
		methods: methods,
		logger:  logger.With(zap.Int("workerID", id)),
	}
}

// ProcessJob transforms every non-null cell of the job's sheet in place
func (w *Worker) ProcessJob(ctx context.Context, job SheetJob) (SheetResult, error) {
	result := NewSheetResult(job, w.ID)
	w.logger.Debug("Processing sheet",
		zap.String("jobID", job.ID),
		zap.String("sheet", job.FullName()))

	for _, col := range job.Sheet.Columns {
		if err := ctx.Err(); err != nil {
			return *result, err
		}

		m, ok := w.methods[col.Name]
		if !ok {
			return *result, &ProcessingError{
				Stage:   StageApply,
				Dataset: job.Dataset,
				Sheet:   job.Sheet.Name,
				Column:  col.Name,
				Err:     fmt.Errorf("no method resolved"),
			}
		}

		_, identity := m.(method.Identity)
		for i, v := range col.Values {
			if model.IsNull(v) {
				continue
			}
			result.CellBytes += int64(len(transform.ToText(v)))
			if identity {
				continue
			}

			out, err := m.Apply(v)
			if err != nil {
				return *result, &ProcessingError{
					Stage:   StageApply,
					Dataset: job.Dataset,
					Sheet:   job.Sheet.Name,
					Column:  col.Name,
					Value:   v,
					Err:     err,
				}
			}
			col.Values[i] = out
			result.CellsTransformed[col.Name]++
		}
	}

	result.Complete()
	w.logger.Debug("Finished sheet",
		zap.String("jobID", job.ID),
		zap.String("sheet", job.FullName()),
		zap.Int("cellsTransformed", result.TotalTransformed()),
		zap.Duration("duration", result.Duration))

	return *result, nil
}

// calculateWorkerCount bounds the pool by the number of jobs
func calculateWorkerCount(requested, jobs int) int {
	count := requested
	if count <= 0 {
		count = runtime.NumCPU()
	}
	if count > jobs {
		count = jobs
	}
	if count < 1 {
		count = 1
	}
	return count
}

// applyAll runs every job on a bounded pool and cancels the rest on the first error.
// Results are returned in job order.
func applyAll(
	ctx context.Context,
	jobs []SheetJob,
	methods map[string]method.Method,
	workers int,
	logger *zap.Logger,
) ([]SheetResult, error) {
	workerCount := calculateWorkerCount(workers, len(jobs))

	p := pool.NewWithResults[SheetResult]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(workerCount)

	for _, job := range jobs {
		job := job
		worker := NewWorker(job.Index%workerCount, methods, logger)
		p.Go(func(ctx context.Context) (SheetResult, error) {
			return worker.ProcessJob(ctx, job)
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
	return results, nil
}
