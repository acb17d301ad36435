// cmd/anonymizer/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/audit"
	"github.com/David-Botos/data-anonymizer/pkg/config"
	"github.com/David-Botos/data-anonymizer/pkg/connector"
	"github.com/David-Botos/data-anonymizer/pkg/logging"
)

var (
	envFiles   []string
	eventsFile string
)

var rootCmd = &cobra.Command{
	Use:           "anonymizer",
	Short:         "Anonymize spreadsheet and database extracts with consistent per-column methods",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load before reading configuration (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&eventsFile, "events-file", "", "Append run events to this file")
	rootCmd.AddCommand(inspectCmd, runCmd, extractCmd, serveCmd, auditCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes rejected input from failed processing
func exitCode(err error) int {
	switch anonymizer.CategorizeError(err) {
	case anonymizer.ErrorCategoryValidation:
		return 2
	case anonymizer.ErrorCategoryUnsupportedFormat:
		return 3
	default:
		return 1
	}
}

// app carries the configuration, logger and observers shared by commands
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	observers []audit.Observer
	store     *audit.Store
	closers   []func() error
}

func newApp(ctx context.Context) (*app, error) {
	files := envFiles
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}

	cfg, err := config.LoadConfig(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &app{cfg: cfg, logger: logger}

	loggingObserver, err := audit.NewLoggingObserver(logger)
	if err != nil {
		return nil, err
	}
	rt.observers = append(rt.observers, loggingObserver)

	if eventsFile != "" {
		fileObserver, err := audit.NewFileObserver(eventsFile)
		if err != nil {
			return nil, err
		}
		rt.observers = append(rt.observers, fileObserver)
	}

	if cfg.AuditStoreEnabled {
		if _, err := rt.openStore(ctx); err != nil {
			rt.Close()
			return nil, err
		}
		rt.observers = append(rt.observers, rt.store)
	}

	return rt, nil
}

// openStore connects the PostgreSQL audit store once per app
func (rt *app) openStore(ctx context.Context) (*audit.Store, error) {
	if rt.store != nil {
		return rt.store, nil
	}

	pg, err := connector.NewConnectorFactory(rt.cfg, rt.logger).CreatePostgresConnector(ctx)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, pg.Close)

	store, err := audit.NewStore(ctx, pg.DB(), rt.logger.Named("audit-store"))
	if err != nil {
		return nil, err
	}
	rt.store = store
	return store, nil
}

func (rt *app) newAnonymizer() (*anonymizer.Anonymizer, error) {
	return anonymizer.NewAnonymizer(rt.cfg.AnonymizerOptions(), rt.logger.Named("anonymizer"), rt.observers...)
}

// Close releases connections and flushes the logger
func (rt *app) Close() {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		rt.logger.Warn("Failed to close resources", zap.Error(err))
	}
	_ = rt.logger.Sync()
}
