// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/config"
)

// Source kinds accepted by CreateConnector
const (
	KindPostgres  = "postgres"
	KindSnowflake = "snowflake"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	if f.cfg.Snowflake == nil {
		return nil, fmt.Errorf("snowflake is not configured: set SNOWFLAKE_ACCOUNT and related variables")
	}
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector. PostgreSQL settings
// are loaded on demand when the audit store did not already require them.
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	if f.cfg.Postgres == nil {
		pgConfig, err := config.LoadPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
		}
		f.cfg.Postgres = pgConfig
	}
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateConnector creates a connector by kind name
func (f *ConnectorFactory) CreateConnector(ctx context.Context, kind string) (DatabaseConnector, error) {
	switch strings.ToLower(kind) {
	case KindPostgres:
		return f.CreatePostgresConnector(ctx)
	case KindSnowflake:
		return f.CreateSnowflakeConnector(ctx)
	default:
		return nil, fmt.Errorf("unknown source kind %q (want %s or %s)", kind, KindPostgres, KindSnowflake)
	}
}
