// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// SnowflakeConfig holds Snowflake connection parameters for the table source
type SnowflakeConfig struct {
	User          string
	Password      string
	Account       string
	Warehouse     string
	Database      string
	Schema        string // Default schema for unqualified table names
	Role          string
	Authenticator gosnowflake.AuthType

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Query timeout
	QueryTimeout time.Duration
}

// PostgresConfig holds PostgreSQL connection parameters for the audit store and table source
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

var authenticators = map[string]gosnowflake.AuthType{
	"snowflake":             gosnowflake.AuthTypeSnowflake,
	"oauth":                 gosnowflake.AuthTypeOAuth,
	"externalbrowser":       gosnowflake.AuthTypeExternalBrowser,
	"username_password_mfa": gosnowflake.AuthTypeUsernamePasswordMFA,
	"jwt":                   gosnowflake.AuthTypeJwt,
	"token":                 gosnowflake.AuthTypeTokenAccessor,
	"okta":                  gosnowflake.AuthTypeOkta,
}

// ParseAuthenticator converts an authenticator name; unknown names use the password flow
func ParseAuthenticator(name string) gosnowflake.AuthType {
	if auth, ok := authenticators[strings.ToLower(strings.TrimSpace(name))]; ok {
		return auth
	}
	return gosnowflake.AuthTypeSnowflake
}

// LoadSnowflakeConfig loads Snowflake configuration from environment variables
func LoadSnowflakeConfig() (*SnowflakeConfig, error) {
	required := map[string]string{}
	for _, key := range []string{"SNOWFLAKE_USER", "SNOWFLAKE_ACCOUNT", "SNOWFLAKE_WAREHOUSE", "SNOWFLAKE_DATABASE"} {
		value := os.Getenv(key)
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is required", key)
		}
		required[key] = value
	}

	cfg := &SnowflakeConfig{
		User:          required["SNOWFLAKE_USER"],
		Password:      os.Getenv("SNOWFLAKE_PASSWORD"),
		Account:       required["SNOWFLAKE_ACCOUNT"],
		Warehouse:     required["SNOWFLAKE_WAREHOUSE"],
		Database:      required["SNOWFLAKE_DATABASE"],
		Schema:        getEnv("SNOWFLAKE_SCHEMA", "PUBLIC"),
		Role:          getEnv("SNOWFLAKE_ROLE", ""),
		Authenticator: ParseAuthenticator(getEnv("SNOWFLAKE_AUTHENTICATOR", "snowflake")),

		MaxOpenConns:    getEnvAsInt("SNOWFLAKE_MAX_OPEN_CONNS", 4),
		MaxIdleConns:    getEnvAsInt("SNOWFLAKE_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_LIFETIME_SECONDS", 600)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_IDLE_TIME_SECONDS", 300)) * time.Second,
		QueryTimeout:    time.Duration(getEnvAsInt("SNOWFLAKE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	if cfg.Password == "" && cfg.Authenticator == gosnowflake.AuthTypeSnowflake {
		return nil, errors.New("SNOWFLAKE_PASSWORD environment variable is required for password authentication")
	}

	return cfg, nil
}

// LoadPostgresConfig loads PostgreSQL configuration from environment variables
func LoadPostgresConfig() (*PostgresConfig, error) {
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return nil, errors.New("POSTGRES_USER environment variable is required")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return nil, errors.New("POSTGRES_PASSWORD environment variable is required")
	}

	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		return nil, errors.New("POSTGRES_DB environment variable is required")
	}

	cfg := &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvAsInt("POSTGRES_PORT", 5432),
		User:     user,
		Password: password,
		Database: database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxOpenConns:     getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,
		StatementTimeout: time.Duration(getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	return cfg, nil
}

// DriverConfig returns the gosnowflake configuration used to build the DSN
func (c *SnowflakeConfig) DriverConfig() *gosnowflake.Config {
	return &gosnowflake.Config{
		Account:       c.Account,
		User:          c.User,
		Password:      c.Password,
		Database:      c.Database,
		Schema:        c.Schema,
		Warehouse:     c.Warehouse,
		Role:          c.Role,
		Authenticator: c.Authenticator,
	}
}

// ConnectionString returns a PostgreSQL URL; credentials are escaped
func (c *PostgresConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
