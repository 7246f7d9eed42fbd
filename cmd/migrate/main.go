package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"bookstats/internal/config"
	"bookstats/migrations"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, using existing environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.ClickHouseHost == "" {
		cfg.ClickHouseHost = "localhost"
	}

	db, err := migrations.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to ClickHouse",
		zap.String("host", cfg.ClickHouseHost),
		zap.Int("port", cfg.ClickHousePort),
		zap.String("database", cfg.ClickHouseDatabase))

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	logger.Info("Running migrations", zap.String("command", command))
	switch command {
	case "up":
		if err := migrations.Up(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations completed successfully")
	case "down":
		if err := goose.Down(db, "."); err != nil {
			logger.Fatal("Failed to rollback migration", zap.Error(err))
		}
		logger.Info("Rollback completed successfully")
	case "status":
		if err := goose.Status(db, "."); err != nil {
			logger.Fatal("Failed to get migration status", zap.Error(err))
		}
	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		logger.Info("Current migration version", zap.Int64("version", version))
	default:
		logger.Fatal("Unknown command, available commands: up, down, status, version", zap.String("command", command))
	}
}
