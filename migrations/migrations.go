// Package migrations holds the goose migrations of the ClickHouse snapshot tables.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pressly/goose/v3"

	"bookstats/internal/config"
)

//go:embed *.sql
var FS embed.FS

// DSN builds the database/sql connection string for cfg
func DSN(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "clickhouse",
		User:     url.UserPassword(cfg.ClickHouseUser, cfg.ClickHousePassword),
		Host:     fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort),
		Path:     "/" + cfg.ClickHouseDatabase,
		RawQuery: "dial_timeout=10s&max_execution_time=60",
	}
	if cfg.ClickHouseUseTLS {
		u.RawQuery += "&secure=true"
	}
	return u.String()
}

// Open connects to ClickHouse through database/sql and sets up goose
func Open(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("clickhouse", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(FS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}
	return db, nil
}

// Up applies every pending migration
func Up(db *sql.DB) error {
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
