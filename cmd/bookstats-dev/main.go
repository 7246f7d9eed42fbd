package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"go.uber.org/zap"

	"bookstats/internal/app"
	"bookstats/internal/config"
	"bookstats/migrations"
)

func main() {
	logger, err := app.NewLogger("debug", true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting ClickHouse testcontainer...")

	// Start ClickHouse container
	clickhouseContainer, err := clickhouse.Run(context.Background(),
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		logger.Fatal("Failed to start ClickHouse container", zap.Error(err))
	}

	// Ensure container cleanup on exit
	defer func() {
		logger.Info("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(context.Background()); err != nil {
			logger.Error("Failed to terminate container", zap.Error(err))
		}
	}()

	// Get connection details
	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		logger.Fatal("Failed to get container host", zap.Error(err))
	}
	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		logger.Fatal("Failed to get container port", zap.Error(err))
	}
	logger.Info("ClickHouse started", zap.String("host", host), zap.Int("port", port.Int()))

	cfg.SnapshotBackend = config.BackendClickHouse
	cfg.ClickHouseHost = host
	cfg.ClickHousePort = port.Int()
	cfg.ClickHouseDatabase = "default"
	cfg.ClickHouseUser = "default"
	cfg.ClickHousePassword = "devpassword"
	cfg.ClickHouseUseTLS = false
	cfg.WatchData = true

	db, err := migrations.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database for migrations", zap.Error(err))
	}
	err = migrations.Up(db)
	db.Close()
	if err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	logger.Info("Starting application with ClickHouse snapshot store...", zap.String("data_dir", cfg.DataDir))

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create application", zap.Error(err))
		return
	}
	if err := application.Run(ctx); err != nil {
		logger.Error("Application error", zap.Error(err))
	}
}
