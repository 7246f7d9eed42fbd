package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bookstats/internal/cache"
	"bookstats/internal/config"
	"bookstats/internal/dashboard"
	"bookstats/internal/ingest"
	"bookstats/internal/server"
	"bookstats/internal/storage"
	"bookstats/internal/storage/ch"
	"bookstats/internal/storage/parquet"
	"bookstats/internal/storage/stubs"
)

// App represents the application
type App struct {
	config  *config.Config
	logger  *zap.Logger
	db      storage.Storage
	service *dashboard.Service
	server  *http.Server
	watcher *cache.Watcher
}

// LoadConfig reads .env when present, then the environment
func LoadConfig(logger *zap.Logger) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the production logger at the configured level
func NewLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// New creates and initializes a new application instance
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{config: cfg, logger: logger}

	db, err := OpenStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.service = NewService(cfg, logger, db)
	return a, nil
}

// OpenStorage connects the configured snapshot backend. It returns nil for
// the "none" backend.
func OpenStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	var db storage.Storage
	switch cfg.SnapshotBackend {
	case config.BackendNone:
		logger.Info("Snapshot store disabled")
		return nil, nil
	case config.BackendMock:
		logger.Info("Using in-memory snapshot store")
		db = stubs.NewMockDB()
	case config.BackendParquet:
		logger.Info("Using parquet snapshot store", zap.String("path", cfg.SnapshotPath))
		db = parquet.NewFileStore(cfg.SnapshotPath)
	case config.BackendClickHouse:
		logger.Info("Connecting to ClickHouse",
			zap.String("host", cfg.ClickHouseHost),
			zap.Int("port", cfg.ClickHousePort),
			zap.String("database", cfg.ClickHouseDatabase),
			zap.String("user", cfg.ClickHouseUser),
			zap.Bool("tls", cfg.ClickHouseUseTLS))
		chDB, err := ch.NewClickHouseDB(
			cfg.ClickHouseHost,
			cfg.ClickHousePort,
			cfg.ClickHouseDatabase,
			cfg.ClickHouseUser,
			cfg.ClickHousePassword,
			cfg.ClickHouseUseTLS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = chDB
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}

	if err := db.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	return db, nil
}

// NewService wires the loader and cache for the configured data directory
func NewService(cfg *config.Config, logger *zap.Logger, db storage.Storage) *dashboard.Service {
	return dashboard.NewService(
		dashboard.Options{
			DataDir:        cfg.DataDir,
			FocusPublisher: cfg.FocusPublisher,
			Gap:            cfg.GapPolicy,
		},
		logger,
		ingest.NewLoader(logger, cfg.LoadWorkers, cfg.Sheet),
		cache.NewStore(),
		db,
	)
}

// Service returns the dashboard service
func (a *App) Service() *dashboard.Service {
	return a.service
}

// Run loads the data, serves HTTP and blocks until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	weeks, err := a.service.Weeks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load data directory: %w", err)
	}
	a.logger.Info("Data loaded", zap.String("dir", a.config.DataDir), zap.Int("weeks", len(weeks)))

	if a.config.WatchData {
		w, err := a.service.Watch(ctx, func(dir string) {
			// Reload eagerly so the next request does not pay for it
			if _, err := a.service.Weeks(ctx); err != nil {
				a.logger.Warn("Failed to reload data directory", zap.String("dir", dir), zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		a.watcher = w
	}

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      server.New(a.service, a.logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			_ = a.Shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing snapshot store", zap.Error(err))
			return err
		}
	}

	a.logger.Info("Shutdown complete")
	return nil
}
