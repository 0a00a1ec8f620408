package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-docquery/pkg/config"
	"github.com/adfharrison1/go-docquery/pkg/logger"
	"github.com/adfharrison1/go-docquery/pkg/metrics"
	"github.com/adfharrison1/go-docquery/pkg/storage"
	"github.com/adfharrison1/go-docquery/pkg/storage/backends"
)

// globalFlags override values loaded from the config file.
type globalFlags struct {
	configPath string
	backend    string
	dataDir    string
	durability string
	logEnv     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "go-docquery",
		Short: "Embedded document store with secondary indexes and aggregation",
		Long: `go-docquery stores schemaless JSON documents in named collections,
answers filtered, sorted and paginated queries using secondary indexes,
and runs aggregation pipelines. Data is kept in memory or persisted to
files, BadgerDB or SQLite.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	pf.StringVar(&flags.backend, "backend", "", "storage backend: memory, file, badger, sqlite")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory for durable backends")
	pf.StringVar(&flags.durability, "durability", "", "write durability: os or full")
	pf.StringVar(&flags.logEnv, "log-env", "", "log format: prod, dev or local")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(flags),
		newImportCmd(flags),
		newFindCmd(flags),
		newAggregateCmd(flags),
		newExplainCmd(flags),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.backend != "" {
		cfg.Storage.Backend = f.backend
	}
	if f.dataDir != "" {
		cfg.Storage.DataDir = f.dataDir
	}
	if f.durability != "" {
		cfg.Storage.Durability = f.durability
	}
	if f.logEnv != "" {
		cfg.Logging.Env = f.logEnv
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app bundles what every command needs to talk to the engine.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	engine   *storage.StorageEngine
	registry *prometheus.Registry
}

// open builds the logger, backend provider and storage engine.
func (f *globalFlags) open() (*app, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	provider, err := backends.New(cfg.Storage.Backend, cfg.Storage.DataDir, backends.Options{
		Durability:         cfg.Storage.Durability,
		CheckpointInterval: cfg.Storage.CheckpointInterval(),
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Storage.Backend, err)
	}

	registry := prometheus.NewRegistry()
	engineMetrics, err := metrics.New(registry)
	if err != nil {
		provider.Close()
		return nil, err
	}

	engine := storage.NewStorageEngine(
		storage.WithBackendProvider(provider),
		storage.WithLogger(log),
		storage.WithMetrics(engineMetrics),
		storage.WithPagination(cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize),
	)
	log.Debug("storage engine ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("data_dir", cfg.Storage.DataDir))

	return &app{cfg: cfg, logger: log, engine: engine, registry: registry}, nil
}

// Close flushes the engine and the logger.
func (a *app) Close() error {
	err := a.engine.Close()
	_ = a.logger.Sync()
	return err
}
