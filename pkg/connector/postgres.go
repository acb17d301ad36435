// pkg/connector/postgres.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/config"
	"github.com/David-Botos/data-anonymizer/pkg/model"
)

const defaultInsertBatchSize = 500

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL
type PostgresConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig) (*PostgresConnector, error) {
	if cfg == nil {
		return nil, errors.New("postgreSQL configuration is required")
	}
	logger := zap.L().Named("postgres-connector")

	// Log connection attempt (without credentials)
	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	connector := newPostgresConnector(db, cfg, logger)

	if cfg.StatementTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeout.Milliseconds()),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return connector, nil
}

func newPostgresConnector(db *sqlx.DB, cfg *config.PostgresConfig, logger *zap.Logger) *PostgresConnector {
	return &PostgresConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// Validate verifies the PostgreSQL connection
func (c *PostgresConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}

	c.logger.Info("PostgreSQL connection validated",
		zap.String("version", version),
		zap.String("database", c.cfg.Database),
		zap.String("host", c.cfg.Host))

	return nil
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db.DB)
	return c.db.Close()
}

// QuoteTable quotes every dot-separated part of a table name
func (c *PostgresConnector) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

// QueryWithTimeout executes a query with a timeout
func (c *PostgresConnector) QueryWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*sqlx.Rows, context.CancelFunc, error) {
	return queryWithTimeout(ctx, c.db, query, timeout, args...)
}

// LoadDataset writes every sheet of ds into its own table under schema.
// Missing tables are created with column types inferred from the values;
// nulls stay NULL.
func (c *PostgresConnector) LoadDataset(ctx context.Context, schema string, ds *model.Dataset) (int64, error) {
	if _, err := c.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return 0, fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	var total int64
	for _, sheet := range ds.Sheets {
		columns := sheet.ColumnNames()
		columnTypes := make([]string, len(sheet.Columns))
		columnDefs := make([]string, len(sheet.Columns))
		for i, col := range sheet.Columns {
			columnTypes[i] = InferPostgresType(col)
			columnDefs[i] = pq.QuoteIdentifier(col.Name) + " " + columnTypes[i]
		}
		if err := c.CreateTableIfNotExists(ctx, schema, sheet.Name, columnDefs); err != nil {
			return total, err
		}

		rows := make([][]interface{}, sheet.RowCount())
		for r := range rows {
			row := make([]interface{}, len(sheet.Columns))
			for i, col := range sheet.Columns {
				if r < len(col.Values) {
					row[i] = ConvertValueForPostgres(col.Values[r], columnTypes[i])
				}
			}
			rows[r] = row
		}

		inserted, err := c.BatchInsert(ctx, schema, sheet.Name, columns, rows, defaultInsertBatchSize)
		total += inserted
		if err != nil {
			return total, fmt.Errorf("failed to load sheet %s: %w", sheet.Name, err)
		}

		c.logger.Info("Loaded sheet",
			zap.String("schema", schema),
			zap.String("table", sheet.Name),
			zap.Int64("rows", inserted))
	}

	return total, nil
}

// BatchInsert performs a bulk insert into a table
func (c *PostgresConnector) BatchInsert(
	ctx context.Context,
	schema string,
	table string,
	columns []string,
	valueRows [][]interface{},
	batchSize int,
) (int64, error) {
	if len(valueRows) == 0 || len(columns) == 0 {
		return 0, nil
	}

	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	fullTableName := pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
	}
	columnStr := strings.Join(quoted, ", ")

	var totalRowsInserted int64

	for i := 0; i < len(valueRows); i += batchSize {
		end := i + batchSize
		if end > len(valueRows) {
			end = len(valueRows)
		}

		currentBatch := valueRows[i:end]

		placeholders := make([]string, len(currentBatch))
		args := make([]interface{}, 0, len(currentBatch)*len(columns))

		for j, row := range currentBatch {
			rowPlaceholders := make([]string, len(columns))
			for k := range columns {
				rowPlaceholders[k] = fmt.Sprintf("$%d", j*len(columns)+k+1)
				var val interface{}
				if k < len(row) {
					val = row[k]
				}
				args = append(args, val)
			}
			placeholders[j] = "(" + strings.Join(rowPlaceholders, ", ") + ")"
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			fullTableName, columnStr, strings.Join(placeholders, ", "))

		queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, err := c.db.ExecContext(queryCtx, query, args...)
		cancel()
		if err != nil {
			return totalRowsInserted, fmt.Errorf("batch insert failed: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			c.logger.Warn("Couldn't get rows affected", zap.Error(err))
		} else {
			totalRowsInserted += rowsAffected
		}
	}

	return totalRowsInserted, nil
}

// CreateTableIfNotExists creates a table with the given column definitions if it doesn't exist
func (c *PostgresConnector) CreateTableIfNotExists(
	ctx context.Context,
	schema string,
	table string,
	columnDefs []string,
) error {
	fullTableName := pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)

	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`

	if err := c.db.QueryRowContext(ctx, query, schema, table).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check if table exists: %w", err)
	}

	if exists {
		c.logger.Debug("Table already exists", zap.String("table", fullTableName))
		return nil
	}

	createSQL := fmt.Sprintf(
		"CREATE TABLE %s (\n\t%s\n)",
		fullTableName,
		strings.Join(columnDefs, ",\n\t"),
	)

	if _, err := c.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", fullTableName, err)
	}

	c.logger.Info("Created table", zap.String("table", fullTableName))
	return nil
}
