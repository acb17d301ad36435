// pkg/audit/store.go
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// StoredEntry is one persisted audit entry
type StoredEntry struct {
	ID               int64     `db:"id"`
	RunID            string    `db:"run_id"`
	SourceFiles      string    `db:"source_files"`
	ColumnName       string    `db:"column_name"`
	RequestedMethod  string    `db:"requested_method"`
	Method           string    `db:"method"`
	Params           string    `db:"params"`
	Fallback         bool      `db:"fallback"`
	Occurrences      int       `db:"occurrences"`
	CellsTransformed int       `db:"cells_transformed"`
	PassThroughCells int       `db:"pass_through_cells"`
	RunAt            time.Time `db:"run_at"`
}

// Store persists audit records to public.anonymization_audit
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a Store and ensures the audit table exists
func NewStore(ctx context.Context, db *sqlx.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.setupAuditTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup audit table: %w", err)
	}

	return store, nil
}

// setupAuditTable ensures the anonymization_audit table exists
func (s *Store) setupAuditTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS public.anonymization_audit (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			source_files TEXT NOT NULL,
			column_name TEXT NOT NULL,
			requested_method TEXT NOT NULL,
			method TEXT NOT NULL,
			params TEXT NOT NULL,
			fallback BOOLEAN NOT NULL DEFAULT FALSE,
			occurrences INTEGER NOT NULL,
			cells_transformed INTEGER NOT NULL,
			pass_through_cells INTEGER NOT NULL,
			run_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}

	s.logger.Info("Ensured anonymization_audit table exists")
	return nil
}

// Record inserts one row per audit entry in a single transaction
func (s *Store) Record(ctx context.Context, record *model.AuditRecord) (err error) {
	if record == nil || len(record.Entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Begin transaction
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO public.anonymization_audit
		(run_id, source_files, column_name, requested_method, method, params,
		 fallback, occurrences, cells_transformed, pass_through_cells, run_at)
		VALUES (:run_id, :source_files, :column_name, :requested_method, :method, :params,
		 :fallback, :occurrences, :cells_transformed, :pass_through_cells, :run_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range record.Entries {
		row, convErr := toStoredEntry(record, entry)
		if convErr != nil {
			err = convErr
			return err
		}
		if _, err = stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("failed to insert audit entry for column %q: %w", entry.ColumnName, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Recorded audit entries",
		zap.String("runID", record.RunID),
		zap.Int("count", len(record.Entries)))
	return nil
}

// EntriesForRun returns the stored entries of a run in insertion order
func (s *Store) EntriesForRun(ctx context.Context, runID string) ([]StoredEntry, error) {
	var entries []StoredEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, run_id, source_files, column_name, requested_method, method, params,
		       fallback, occurrences, cells_transformed, pass_through_cells, run_at
		FROM public.anonymization_audit
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	return entries, nil
}

// Notify records the audit record carried by EventRunCompleted
func (s *Store) Notify(ctx context.Context, event Event) error {
	if event.Type != EventRunCompleted || event.Record == nil {
		return nil
	}
	return s.Record(ctx, event.Record)
}

func toStoredEntry(record *model.AuditRecord, entry model.AuditEntry) (StoredEntry, error) {
	params := entry.Params
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return StoredEntry{}, fmt.Errorf("failed to encode params for column %q: %w", entry.ColumnName, err)
	}

	return StoredEntry{
		RunID:            record.RunID,
		SourceFiles:      strings.Join(record.SourceFiles, ","),
		ColumnName:       entry.ColumnName,
		RequestedMethod:  entry.Requested,
		Method:           string(entry.Method),
		Params:           string(encoded),
		Fallback:         entry.Fallback,
		Occurrences:      entry.Occurrences,
		CellsTransformed: entry.CellsTransformed,
		PassThroughCells: entry.PassThroughCells,
		RunAt:            record.Timestamp,
	}, nil
}
