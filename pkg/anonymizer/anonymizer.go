// pkg/anonymizer/anonymizer.go
package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/aggregator"
	"github.com/David-Botos/data-anonymizer/pkg/audit"
	"github.com/David-Botos/data-anonymizer/pkg/derangement"
	"github.com/David-Botos/data-anonymizer/pkg/method"
	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/tabular"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// Collector loads the input datasets of a run
type Collector interface {
	Collect(ctx context.Context) ([]*model.Dataset, error)
}

// CollectorFunc adapts a function to Collector
type CollectorFunc func(ctx context.Context) ([]*model.Dataset, error)

func (f CollectorFunc) Collect(ctx context.Context) ([]*model.Dataset, error) {
	return f(ctx)
}

// Datasets returns a Collector over datasets already in memory
func Datasets(datasets ...*model.Dataset) Collector {
	return CollectorFunc(func(context.Context) ([]*model.Dataset, error) {
		return datasets, nil
	})
}

// Emitter persists transformed datasets and the audit record, returning artifact names.
// An Emitter must not leave partial artifacts behind when it fails.
type Emitter interface {
	Emit(ctx context.Context, datasets []*model.Dataset, record *model.AuditRecord) ([]string, error)
}

// Options configures an Anonymizer
type Options struct {
	Method          method.Options
	ConsistencyMode aggregator.Mode
	Workers         int     // APPLY pool size; <= 0 uses one per CPU
	Seed            *uint64 // fixed seed for reproducible runs; nil draws from the OS
}

// Request is the input of one run
type Request struct {
	Collector Collector
	Selection model.Selection
	Emitter   Emitter // optional
}

// Result is the output of a successful run
type Result struct {
	RunID     string
	Datasets  []*model.Dataset
	Record    *model.AuditRecord
	Artifacts []string
	Metrics   RunSummary
	Report    string // metrics report
}

// Anonymizer drives runs through COLLECT, VALIDATE, BUILD_MAPPINGS, APPLY and EMIT.
// It holds no per-run state, so concurrent runs are isolated.
type Anonymizer struct {
	opts      Options
	verifier  *Verifier
	observers audit.Observers
	logger    *zap.Logger
}

// NewAnonymizer creates a new anonymizer
func NewAnonymizer(opts Options, logger *zap.Logger, observers ...audit.Observer) (*Anonymizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.ConsistencyMode == "" {
		opts.ConsistencyMode = aggregator.ModeSet
	}

	return &Anonymizer{
		opts:      opts,
		verifier:  NewVerifier(logger),
		observers: audit.Observers(observers),
		logger:    logger,
	}, nil
}

// run holds the state owned by a single Run call
type run struct {
	id        string
	logger    *zap.Logger
	metrics   *RunMetrics
	src       transform.Source
	resolver  *method.Resolver
	agg       *aggregator.Aggregator
	methods   map[string]method.Method
	caveats   []string
	selection model.Selection
}

// Run executes one anonymization run. Inputs returned by the collector are
// never modified; the result carries transformed copies.
func (a *Anonymizer) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Collector == nil {
		return nil, errors.New("collector cannot be nil")
	}

	r := &run{
		id:        uuid.New().String(),
		selection: req.Selection,
		methods:   make(map[string]method.Method),
	}
	r.logger = a.logger.With(zap.String("runID", r.id))
	r.metrics = NewRunMetrics(r.id, r.logger)

	var err error
	r.src, err = a.newSource()
	if err != nil {
		return nil, err
	}
	r.resolver, err = method.NewResolver(a.opts.Method, r.src, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create method resolver: %w", err)
	}

	r.logger.Info("Anonymization run started", zap.Int("selectedColumns", len(req.Selection)))
	a.notify(ctx, r, audit.NewEvent(audit.EventRunStarted, r.id, map[string]interface{}{
		"selected_columns": len(req.Selection),
	}))

	// COLLECT
	r.metrics.StartStage(StageCollect)
	inputs, err := req.Collector.Collect(ctx)
	if err != nil {
		if CategorizeError(err) == ErrorCategoryProcessing {
			err = &ProcessingError{Stage: StageCollect, Err: err}
		}
		return a.fail(ctx, r, err)
	}
	if len(inputs) == 0 {
		return a.fail(ctx, r, &ProcessingError{Stage: StageCollect, Err: errors.New("no datasets to anonymize")})
	}

	// Working copies carry unique names so locations and artifacts stay distinct.
	names := tabular.UniqueNames(lo.Map(inputs, func(ds *model.Dataset, _ int) string { return ds.Name }))
	work := make([]*model.Dataset, len(inputs))
	baseline := make([]*model.Dataset, len(inputs))
	for i, ds := range inputs {
		work[i] = ds.Clone()
		baseline[i] = ds
		if names[i] != ds.Name {
			r.logger.Info("Renamed dataset with duplicate name",
				zap.String("dataset", ds.Name), zap.String("renamed", names[i]))
			work[i].Name = names[i]
			baseline[i] = &model.Dataset{Name: names[i], Format: ds.Format, Sheets: ds.Sheets}
		}
	}

	// VALIDATE
	r.metrics.StartStage(StageValidate)
	r.agg = aggregator.New(work, a.opts.ConsistencyMode)
	r.metrics.SetShape(len(work), len(r.agg.Columns()))
	if err := a.validate(ctx, r); err != nil {
		return a.fail(ctx, r, err)
	}

	// BUILD_MAPPINGS
	r.metrics.StartStage(StageBuildMappings)
	if err := a.buildMappings(ctx, r); err != nil {
		return a.fail(ctx, r, err)
	}

	// APPLY
	r.metrics.StartStage(StageApply)
	var jobs []SheetJob
	for _, ds := range work {
		for _, sheet := range ds.Sheets {
			jobs = append(jobs, NewSheetJob(len(jobs), ds.Name, sheet))
		}
	}
	results, err := applyAll(ctx, jobs, r.methods, a.opts.Workers, r.logger)
	if err != nil {
		var perr *ProcessingError
		if !errors.As(err, &perr) {
			err = &ProcessingError{Stage: StageApply, Err: err}
		}
		return a.fail(ctx, r, err)
	}
	for _, result := range results {
		r.metrics.RecordSheet(result)
	}

	// EMIT
	r.metrics.StartStage(StageEmit)
	if verr := a.verifier.VerifyStructure(baseline, work).Error(); verr != nil {
		return a.fail(ctx, r, &ProcessingError{Stage: StageEmit, Err: verr})
	}

	record := a.buildRecord(r, work, results)

	var artifacts []string
	if req.Emitter != nil {
		artifacts, err = req.Emitter.Emit(ctx, work, record)
		if err != nil {
			return a.fail(ctx, r, &ProcessingError{Stage: StageEmit, Err: err})
		}
	}

	r.metrics.Complete(false)
	summary := r.metrics.Summary()

	completed := audit.NewEvent(audit.EventRunCompleted, r.id, map[string]interface{}{
		"files":             record.SourceFiles,
		"cells_transformed": summary.CellsTransformed,
		"artifacts":         artifacts,
	})
	completed.Record = record
	a.notify(ctx, r, completed)

	r.logger.Info("Anonymization run completed",
		zap.Int("datasets", summary.Datasets),
		zap.Int("sheets", summary.Sheets),
		zap.Int("cellsTransformed", summary.CellsTransformed),
		zap.Int("passThroughCells", summary.PassThroughCells),
		zap.Duration("duration", summary.Duration))

	return &Result{
		RunID:     r.id,
		Datasets:  work,
		Record:    record,
		Artifacts: artifacts,
		Metrics:   summary,
		Report:    r.metrics.GenerateMetricsReport(),
	}, nil
}

func (a *Anonymizer) newSource() (transform.Source, error) {
	if a.opts.Seed != nil {
		return transform.NewLockedSource(transform.NewSeededSource(*a.opts.Seed)), nil
	}
	return transform.NewLockedSource(transform.NewSource()), nil
}

// validate runs every check that must pass before any value is transformed
func (a *Anonymizer) validate(ctx context.Context, r *run) error {
	issues := issuesFromConsistency(r.agg.ValidateAll())
	issues = append(issues, a.checkMethods(r)...)

	for column := range r.selection {
		if len(r.agg.Occurrences(column)) == 0 {
			r.logger.Debug("Selected column not present in any dataset", zap.String("column", column))
		}
	}

	if len(issues) == 0 {
		return nil
	}

	verr := &ValidationError{Issues: issues}
	r.logger.Warn("Validation failed", zap.Strings("columns", verr.Columns()))
	a.notify(ctx, r, audit.NewEvent(audit.EventValidationFailed, r.id, map[string]interface{}{
		"columns": verr.Columns(),
	}))
	return verr
}

// checkMethods applies the reject policies for unknown methods and non-numeric ranges
func (a *Anonymizer) checkMethods(r *run) []ColumnIssue {
	opts := a.opts.Method
	var issues []ColumnIssue

	for _, column := range r.agg.Columns() {
		sel := r.selection.Method(column)
		id, known := model.ParseMethodID(string(sel.Method))

		if !known {
			if opts.UnknownPolicy == method.UnknownReject {
				issues = append(issues, ColumnIssue{
					Column: column,
					Reason: ReasonUnknownMethod,
					Detail: fmt.Sprintf("%q", sel.Method),
				})
			}
			continue
		}

		if id != model.MethodRangeGeneralize || opts.RangePolicy != method.RangeReject {
			continue
		}

		count := 0
		var locations []string
		for _, occ := range r.agg.Occurrences(column) {
			found := false
			for _, v := range occ.Column.Values {
				if model.IsNull(v) {
					continue
				}
				if _, err := transform.ToFloat(v); err != nil {
					count++
					found = true
				}
			}
			if found {
				locations = append(locations, occ.Location())
			}
		}
		if count > 0 {
			issues = append(issues, ColumnIssue{
				Column:      column,
				Reason:      ReasonNonNumeric,
				Detail:      fmt.Sprintf("%d non-numeric value(s)", count),
				Occurrences: locations,
			})
		}
	}

	return issues
}

// buildMappings builds one derangement per swap column, then resolves every
// column so the method table is complete and read-only before APPLY.
func (a *Anonymizer) buildMappings(ctx context.Context, r *run) error {
	for _, column := range r.agg.Columns() {
		id, known := model.ParseMethodID(string(r.selection.Method(column).Method))
		if !known || id != model.MethodSwap {
			continue
		}

		domain := r.agg.Aggregate(column)
		targets := derangement.Build(domain.Keys, r.src)

		mapping := make(map[string]interface{}, len(targets))
		for key, target := range targets {
			mapping[key] = domain.Values[target]
		}
		r.resolver.SetMapping(column, mapping)

		if derangement.IsSingleton(targets) {
			r.caveats = append(r.caveats, fmt.Sprintf("%s: only one distinct value, swap left it unchanged", column))
			r.logger.Warn("Swap column has a single distinct value", zap.String("column", column))
		}

		r.logger.Info("Built swap mapping",
			zap.String("column", column),
			zap.Int("distinctValues", domain.Len()),
			zap.Int("occurrences", len(r.agg.Occurrences(column))))
		a.notify(ctx, r, audit.NewEvent(audit.EventMappingBuilt, r.id, map[string]interface{}{
			"column":          column,
			"distinct_values": domain.Len(),
		}))
	}

	for _, column := range r.agg.Columns() {
		res, err := r.resolver.Resolve(column, r.selection.Method(column))
		if err != nil {
			return &ProcessingError{Stage: StageBuildMappings, Column: column, Err: err}
		}
		r.methods[column] = res.Method

		if res.Fallback {
			a.notify(ctx, r, audit.NewEvent(audit.EventMethodFallback, r.id, map[string]interface{}{
				"column":    column,
				"requested": res.Requested,
			}))
		}
	}

	return nil
}

// buildRecord assembles the audit record in first-seen column order
func (a *Anonymizer) buildRecord(r *run, datasets []*model.Dataset, results []SheetResult) *model.AuditRecord {
	record := &model.AuditRecord{
		RunID:     r.id,
		Timestamp: time.Now(),
	}
	for _, ds := range datasets {
		record.SourceFiles = append(record.SourceFiles, ds.Name)
	}

	resolutions := r.resolver.Resolutions()
	for _, column := range r.agg.Columns() {
		res := resolutions[column]
		entry := model.AuditEntry{
			ColumnName:  column,
			Requested:   res.Requested,
			Method:      res.Method.ID(),
			Params:      res.Method.Params(),
			Fallback:    res.Fallback,
			Occurrences: len(r.agg.Occurrences(column)),
		}
		for _, result := range results {
			entry.CellsTransformed += result.CellsTransformed[column]
		}

		if res.Fallback {
			r.caveats = append(r.caveats, fmt.Sprintf("%s: unknown method %q, column left unchanged", column, res.Requested))
		}

		switch m := res.Method.(type) {
		case *method.RangeGeneralize:
			entry.PassThroughCells = m.PassThrough()
			if entry.PassThroughCells > 0 {
				r.metrics.RecordPassThrough(entry.PassThroughCells)
				r.caveats = append(r.caveats, fmt.Sprintf("%s: %d non-numeric value(s) left unchanged by range generalization",
					column, entry.PassThroughCells))
				r.logger.Warn("Range generalization left values unchanged",
					zap.String("column", column),
					zap.Int("count", entry.PassThroughCells))
			}
		case *method.Swap:
			if misses := m.Misses(); misses > 0 {
				r.caveats = append(r.caveats, fmt.Sprintf("%s: %d value(s) missing from the swap mapping left unchanged", column, misses))
			}
		}

		record.Entries = append(record.Entries, entry)
	}

	record.Caveats = r.caveats
	return record
}

// fail completes the run as failed and notifies observers
func (a *Anonymizer) fail(ctx context.Context, r *run, err error) (*Result, error) {
	stage := r.metrics.CurrentStage()
	r.metrics.Complete(true)
	category := CategorizeError(err)

	r.logger.Error("Anonymization run failed",
		zap.String("stage", string(stage)),
		zap.String("category", category.String()),
		zap.Error(err))
	a.notify(ctx, r, audit.NewEvent(audit.EventRunFailed, r.id, map[string]interface{}{
		"stage":    string(stage),
		"category": category.String(),
		"error":    err.Error(),
	}))

	return nil, err
}

// notify delivers an event; observer failures are logged and never abort a run
func (a *Anonymizer) notify(ctx context.Context, r *run, event audit.Event) {
	for _, err := range a.observers.Notify(ctx, event) {
		r.logger.Warn("Observer failed",
			zap.String("event", string(event.Type)),
			zap.Error(err))
	}
}
