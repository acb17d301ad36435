// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DatabaseConnector defines the interface for database connectors
type DatabaseConnector interface {
	// DB returns the underlying database connection
	DB() *sqlx.DB

	// Validate verifies the connection
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error

	// QuoteTable quotes a possibly schema-qualified table name for this dialect
	QuoteTable(name string) string

	// QueryWithTimeout executes a query with a timeout
	QueryWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (*sqlx.Rows, context.CancelFunc, error)
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
	WaitCount       int64
	WaitDuration    time.Duration
}

// GetConnectionStats returns connection pool statistics for logging
func GetConnectionStats(db *sql.DB) ConnStats {
	stats := db.Stats()
	return ConnStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := GetConnectionStats(db)
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConns),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if pingCtx.Err() != nil {
			return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
		}
		return err
	}
	return nil
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sql.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}

// queryWithTimeout runs a query under a derived deadline; a non-positive
// timeout only inherits ctx. The returned cancel must be called after the
// rows are closed.
func queryWithTimeout(
	ctx context.Context,
	db *sqlx.DB,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*sqlx.Rows, context.CancelFunc, error) {
	var (
		queryCtx context.Context
		cancel   context.CancelFunc
	)
	if timeout > 0 {
		queryCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		queryCtx, cancel = context.WithCancel(ctx)
	}
	rows, err := db.QueryxContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return rows, cancel, nil
}
