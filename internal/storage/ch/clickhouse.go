package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookstats/internal/models"
	"bookstats/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseDB struct {
	conn clickhouse.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionZSTD,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// Tables are managed via migrations (see migrations/ directory)
	return nil
}

// SaveSnapshot replaces the stored snapshot with snap. The metadata row is
// cleared first and written last, so an interrupted save leaves no snapshot
// rather than a fingerprint over missing rows.
func (db *ClickHouseDB) SaveSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	if err := db.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS snapshot_meta`); err != nil {
		return fmt.Errorf("failed to clear snapshot metadata: %w", err)
	}
	if err := db.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS sales_snapshot`); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	batch, err := db.conn.PrepareBatch(ctx, `INSERT INTO sales_snapshot
		(week, week_label, rank, title, author, publisher, collana, units, source_file)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot batch: %w", err)
	}
	for _, r := range snap.Records {
		err := batch.Append(
			uint32(r.Week.Number),
			r.Week.Label,
			uint32(r.Rank),
			r.Title,
			r.Author,
			r.Publisher,
			r.Collana,
			uint32(r.Units),
			r.SourceFile,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append snapshot row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	err = db.conn.Exec(ctx, `INSERT INTO snapshot_meta (fingerprint, created_at, has_collana, record_count) VALUES (?, ?, ?, ?)`,
		snap.Fingerprint, snap.CreatedAt, snap.HasCollana, uint64(len(snap.Records)))
	if err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot
func (db *ClickHouseDB) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	var (
		snap  storage.Snapshot
		count uint64
	)
	row := db.conn.QueryRow(ctx, `SELECT fingerprint, created_at, has_collana, record_count FROM snapshot_meta ORDER BY created_at DESC LIMIT 1`)
	if err := row.Scan(&snap.Fingerprint, &snap.CreatedAt, &snap.HasCollana, &count); err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}

	rows, err := db.conn.Query(ctx, `SELECT week, week_label, rank, title, author, publisher, collana, units, source_file
		FROM sales_snapshot ORDER BY week, rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	defer rows.Close()

	snap.Records = make([]models.SalesRecord, 0, count)
	for rows.Next() {
		var (
			week, rank, units uint32
			label             string
			rec               models.SalesRecord
		)
		if err := rows.Scan(&week, &label, &rank, &rec.Title, &rec.Author, &rec.Publisher, &rec.Collana, &units, &rec.SourceFile); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		rec.Week = models.Week{Number: int(week), Label: label}
		rec.Rank = int(rank)
		rec.Units = int(units)
		snap.Records = append(snap.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if uint64(len(snap.Records)) != count {
		return nil, fmt.Errorf("snapshot has %d rows, metadata records %d: %w",
			len(snap.Records), count, storage.ErrIncompleteSnapshot)
	}
	snap.CreatedAt = snap.CreatedAt.UTC().Truncate(time.Second)
	return &snap, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
