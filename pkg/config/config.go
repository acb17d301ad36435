// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/David-Botos/data-anonymizer/pkg/aggregator"
	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/logging"
	"github.com/David-Botos/data-anonymizer/pkg/method"
)

// Config represents the application configuration
type Config struct {
	// Files
	UploadDir         string
	OutputDir         string
	MaxContentLength  int64
	AllowedExtensions []string

	// Method defaults
	DefaultRangeSize      int
	DefaultTokenLength    int
	RangeNonNumericPolicy method.RangePolicy
	UnknownMethodPolicy   method.UnknownPolicy
	ConsistencyMode       aggregator.Mode

	// Run settings
	ApplyWorkers int     // 0 means use runtime.NumCPU()
	RandomSeed   *uint64 // nil means seed from the OS

	HTTPAddr string

	// Audit store
	AuditStoreEnabled bool

	// Database connections, nil when not configured
	Postgres  *PostgresConfig
	Snowflake *SnowflakeConfig

	Log logging.Config
}

// LoadConfig loads optional .env files and then reads configuration from
// environment variables. Variables already set in the environment win over
// values from the files.
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}

	uploadDir := getEnv("UPLOAD_DIR", "uploads")
	cfg := &Config{
		UploadDir:             uploadDir,
		OutputDir:             getEnv("OUTPUT_DIR", uploadDir),
		MaxContentLength:      getEnvAsInt64("MAX_CONTENT_LENGTH", 16*1024*1024),
		AllowedExtensions:     getEnvAsStringSlice("ALLOWED_EXTENSIONS", []string{"xlsx", "csv"}),
		DefaultRangeSize:      getEnvAsInt("DEFAULT_RANGE_SIZE", 10),
		DefaultTokenLength:    getEnvAsInt("DEFAULT_TOKEN_LENGTH", 8),
		RangeNonNumericPolicy: method.RangePolicy(strings.ToLower(getEnv("RANGE_NON_NUMERIC_POLICY", string(method.RangePassThrough)))),
		UnknownMethodPolicy:   method.UnknownPolicy(strings.ToLower(getEnv("UNKNOWN_METHOD_POLICY", string(method.UnknownIdentity)))),
		ApplyWorkers:          getEnvAsInt("APPLY_WORKERS", 0),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		AuditStoreEnabled:     getEnvAsBool("AUDIT_STORE_ENABLED", false),
		Log: logging.Config{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	mode, err := aggregator.ParseMode(getEnv("CONSISTENCY_MODE", string(aggregator.ModeSet)))
	if err != nil {
		return nil, err
	}
	cfg.ConsistencyMode = mode

	if raw := getEnv("RANDOM_SEED", ""); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("RANDOM_SEED must be an unsigned integer: %w", err)
		}
		cfg.RandomSeed = &seed
	}

	if cfg.AuditStoreEnabled {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	// Snowflake is only needed by the table source, so a partial config is not an error
	if os.Getenv("SNOWFLAKE_ACCOUNT") != "" {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.UploadDir == "" {
		return errors.New("upload directory is required")
	}

	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}

	if c.MaxContentLength <= 0 {
		return errors.New("max content length must be positive")
	}

	if len(c.AllowedExtensions) == 0 {
		return errors.New("at least one allowed extension is required")
	}

	if c.DefaultRangeSize <= 0 {
		return errors.New("default range size must be positive")
	}

	if c.DefaultTokenLength <= 0 {
		return errors.New("default token length must be positive")
	}

	switch c.RangeNonNumericPolicy {
	case method.RangePassThrough, method.RangeReject:
	default:
		return fmt.Errorf("unknown range non-numeric policy %q", c.RangeNonNumericPolicy)
	}

	switch c.UnknownMethodPolicy {
	case method.UnknownIdentity, method.UnknownReject:
	default:
		return fmt.Errorf("unknown method policy %q", c.UnknownMethodPolicy)
	}

	if c.ApplyWorkers < 0 {
		return errors.New("apply workers cannot be negative")
	}

	if c.AuditStoreEnabled && c.Postgres == nil {
		return errors.New("postgreSQL configuration is required when the audit store is enabled")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// AnonymizerOptions returns the orchestrator options described by the configuration
func (c *Config) AnonymizerOptions() anonymizer.Options {
	return anonymizer.Options{
		Method: method.Options{
			DefaultRangeSize:   c.DefaultRangeSize,
			DefaultTokenLength: c.DefaultTokenLength,
			UnknownPolicy:      c.UnknownMethodPolicy,
			RangePolicy:        c.RangeNonNumericPolicy,
		},
		ConsistencyMode: c.ConsistencyMode,
		Workers:         c.ApplyWorkers,
		Seed:            c.RandomSeed,
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice parses a comma-separated list, dropping empty items
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		v = strings.ToLower(strings.Trim(strings.TrimSpace(v), `".`))
		if v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
