package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

func sampleRecord() *model.AuditRecord {
	return &model.AuditRecord{
		RunID:       "run-1",
		SourceFiles: []string{"people.xlsx", "extra.csv"},
		Timestamp:   time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC),
		Entries: []model.AuditEntry{
			{ColumnName: "Country", Requested: "swap", Method: model.MethodSwap, Params: map[string]string{"domain_size": "2"}, Occurrences: 2, CellsTransformed: 5},
			{ColumnName: "Age", Requested: "generalize", Method: model.MethodRangeGeneralize, Params: map[string]string{"range_size": "10"}, Occurrences: 1, CellsTransformed: 3, PassThroughCells: 1},
			{ColumnName: "Notes", Requested: "", Method: model.MethodNone, Occurrences: 1},
		},
		Caveats: []string{"Age: 1 non-numeric value(s) left unchanged by range generalization"},
	}
}

func TestReport(t *testing.T) {
	report := Report(sampleRecord())

	expected := strings.Join([]string{
		"Anonymization log for file(s): people.xlsx, extra.csv",
		"Run ID: run-1",
		"Timestamp: 2024-03-09 14:05:06 UTC",
		"Methods applied:",
		"Country: Value swap (domain_size=2)",
		"Age: Range generalization (range_size=10)",
		"Notes: No anonymization",
		"Caveats:",
		"- Age: 1 non-numeric value(s) left unchanged by range generalization",
		"",
	}, "\n")
	assert.Equal(t, expected, report)
}

func TestReportWithoutCaveats(t *testing.T) {
	record := sampleRecord()
	record.Caveats = nil

	assert.NotContains(t, Report(record), "Caveats:")
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "", FormatParams(nil))
	assert.Equal(t, "a=1, b=2", FormatParams(map[string]string{"b": "2", "a": "1"}))
}

func TestLogName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	assert.Equal(t, "log_20240309140506_people.xlsx.txt", LogName([]string{"people.xlsx"}, ts))
	assert.Equal(t, "log_20240309140506_batch.txt", LogName([]string{"a.csv", "b.csv"}, ts))
}

func TestFileObserverAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "events.log")
	obs, err := NewFileObserver(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, obs.Notify(ctx, NewEvent(EventRunStarted, "run-1", map[string]interface{}{"files": 2})))
	require.NoError(t, obs.Notify(ctx, NewEvent(EventRunCompleted, "run-1", nil)))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^\d{14} - run_started: \{.*"files":2.*\}$`, lines[0])
	assert.Contains(t, lines[1], `run_completed: {"run_id":"run-1"}`)
}

func TestNewFileObserverRequiresPath(t *testing.T) {
	_, err := NewFileObserver("")
	assert.Error(t, err)
}

func TestLoggingObserverLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs, err := NewLoggingObserver(zap.New(core))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, obs.Notify(ctx, NewEvent(EventRunStarted, "r", nil)))
	require.NoError(t, obs.Notify(ctx, NewEvent(EventValidationFailed, "r", map[string]interface{}{"columns": []string{"Country"}})))
	require.NoError(t, obs.Notify(ctx, NewEvent(EventRunFailed, "r", nil)))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "validation_failed", entries[1].ContextMap()["event"])
}

type failingObserver struct{}

func (failingObserver) Notify(context.Context, Event) error { return errors.New("boom") }

func TestObserversCollectFailures(t *testing.T) {
	logging, err := NewLoggingObserver(zap.NewNop())
	require.NoError(t, err)

	errs := Observers{failingObserver{}, logging, failingObserver{}}.Notify(context.Background(), NewEvent(EventRunStarted, "r", nil))
	assert.Len(t, errs, 2)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS public.anonymization_audit").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewStore(context.Background(), sqlx.NewDb(db, "pgx"), zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func TestNewStoreRejectsNilDependencies(t *testing.T) {
	_, err := NewStore(context.Background(), nil, zap.NewNop())
	assert.Error(t, err)
}

func TestStoreRecord(t *testing.T) {
	store, mock := newMockStore(t)
	record := sampleRecord()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO public.anonymization_audit")
	prep.ExpectExec().
		WithArgs("run-1", "people.xlsx,extra.csv", "Country", "swap", "swap", `{"domain_size":"2"}`,
			false, 2, 5, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("run-1", "people.xlsx,extra.csv", "Age", "generalize", "range-generalize", `{"range_size":"10"}`,
			false, 1, 3, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().
		WithArgs("run-1", "people.xlsx,extra.csv", "Notes", "", "none", `{}`,
			false, 1, 0, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Record(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO public.anonymization_audit")
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Record(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Country")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreNotifyOnlyRecordsCompletedRuns(t *testing.T) {
	store, mock := newMockStore(t)

	require.NoError(t, store.Notify(context.Background(), NewEvent(EventRunStarted, "run-1", nil)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreEntriesForRun(t *testing.T) {
	store, mock := newMockStore(t)
	runAt := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "source_files", "column_name", "requested_method", "method", "params",
		"fallback", "occurrences", "cells_transformed", "pass_through_cells", "run_at",
	}).AddRow(1, "run-1", "people.xlsx", "Country", "swap", "swap", `{}`, false, 2, 5, 0, runAt)

	mock.ExpectQuery("SELECT (.+) FROM public.anonymization_audit").
		WithArgs("run-1").
		WillReturnRows(rows)

	entries, err := store.EntriesForRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Country", entries[0].ColumnName)
	assert.Equal(t, runAt, entries[0].RunAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
