// pkg/connector/snowflake.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/config"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeConnector, error) {
	if cfg == nil {
		return nil, errors.New("snowflake configuration is required")
	}
	logger := zap.L().Named("snowflake-connector")

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(cfg.DriverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db.DB, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	connector := newSnowflakeConnector(db, cfg, logger)
	LogConnectionStats(logger, cfg.Database, db.DB)
	return connector, nil
}

func newSnowflakeConnector(db *sqlx.DB, cfg *config.SnowflakeConfig, logger *zap.Logger) *SnowflakeConnector {
	return &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sqlx.DB {
	return c.db
}

// Validate verifies the session points at the configured database
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse string
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	if !strings.EqualFold(database, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	return nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db.DB)
	return c.db.Close()
}

// QuoteTable quotes a table name, qualifying it with the configured schema
// when it has none. Unquoted Snowflake identifiers resolve upper-cased, so
// parts are upper-cased before quoting.
func (c *SnowflakeConnector) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) == 1 && c.cfg.Schema != "" {
		parts = []string{c.cfg.Schema, name}
	}
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(strings.ToUpper(part))
	}
	return strings.Join(parts, ".")
}

// QueryWithTimeout executes a query with a timeout
func (c *SnowflakeConnector) QueryWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*sqlx.Rows, context.CancelFunc, error) {
	timeout = c.effectiveTimeout(timeout)
	return queryWithTimeout(ctx, c.db, query, timeout, args...)
}

func (c *SnowflakeConnector) effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return c.cfg.QueryTimeout
	}
	return timeout
}
