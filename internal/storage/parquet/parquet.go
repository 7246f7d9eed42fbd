// Package parquet stores the consolidated snapshot as a single zstd
// compressed parquet file.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"bookstats/internal/models"
	"bookstats/internal/storage"
)

const (
	metaFingerprint = "bookstats.fingerprint"
	metaCreatedAt   = "bookstats.created_at"
	metaHasCollana  = "bookstats.has_collana"

	parallelism = 4
)

// row is the on-disk layout of one snapshot record
type row struct {
	Week       int32   `parquet:"name=week, type=INT32"`
	WeekLabel  string  `parquet:"name=week_label, type=BYTE_ARRAY, convertedtype=UTF8"`
	Rank       int32   `parquet:"name=rank, type=INT32"`
	Title      string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Author     string  `parquet:"name=author, type=BYTE_ARRAY, convertedtype=UTF8"`
	Publisher  string  `parquet:"name=publisher, type=BYTE_ARRAY, convertedtype=UTF8"`
	Collana    *string `parquet:"name=collana, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Units      int64   `parquet:"name=units, type=INT64"`
	SourceFile string  `parquet:"name=source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// FileStore keeps the snapshot in one parquet file
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a store writing to path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file location
func (s *FileStore) Path() string {
	return s.path
}

// Initialize creates the parent directory
func (s *FileStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return nil
}

// SaveSnapshot writes snap to a temporary file and renames it into place
func (s *FileStore) SaveSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

func writeFile(path string, snap *storage.Snapshot) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(row), parallelism)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, r := range snap.Records {
		if err := pw.Write(toRow(r)); err != nil {
			return fmt.Errorf("failed to write snapshot row: %w", err)
		}
	}

	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata,
		keyValue(metaFingerprint, snap.Fingerprint),
		keyValue(metaCreatedAt, snap.CreatedAt.UTC().Format(time.RFC3339Nano)),
		keyValue(metaHasCollana, strconv.FormatBool(snap.HasCollana)),
	)
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish snapshot file: %w", err)
	}
	return nil
}

// LoadSnapshot reads the snapshot file, or returns ErrNoSnapshot if it does not exist
func (s *FileStore) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to stat snapshot file: %w", err)
	}

	fr, err := local.NewLocalFileReader(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(row), parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]row, int(pr.GetNumRows()))
	if len(rows) > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
		}
	}

	snap := &storage.Snapshot{Records: make([]models.SalesRecord, len(rows))}
	for i, r := range rows {
		snap.Records[i] = fromRow(r)
	}
	for _, kv := range pr.Footer.KeyValueMetadata {
		if kv == nil || kv.Value == nil {
			continue
		}
		switch kv.Key {
		case metaFingerprint:
			snap.Fingerprint = *kv.Value
		case metaCreatedAt:
			if t, err := time.Parse(time.RFC3339Nano, *kv.Value); err == nil {
				snap.CreatedAt = t
			}
		case metaHasCollana:
			snap.HasCollana, _ = strconv.ParseBool(*kv.Value)
		}
	}
	return snap, nil
}

// Close does nothing; files are opened per call
func (s *FileStore) Close() error {
	return nil
}

func keyValue(key, value string) *parquet.KeyValue {
	return &parquet.KeyValue{Key: key, Value: &value}
}

func toRow(r models.SalesRecord) row {
	return row{
		Week:       int32(r.Week.Number),
		WeekLabel:  r.Week.Label,
		Rank:       int32(r.Rank),
		Title:      r.Title,
		Author:     r.Author,
		Publisher:  r.Publisher,
		Collana:    r.Collana,
		Units:      int64(r.Units),
		SourceFile: r.SourceFile,
	}
}

func fromRow(r row) models.SalesRecord {
	return models.SalesRecord{
		Rank:       int(r.Rank),
		Title:      r.Title,
		Author:     r.Author,
		Publisher:  r.Publisher,
		Collana:    r.Collana,
		Units:      int(r.Units),
		Week:       models.Week{Number: int(r.Week), Label: r.WeekLabel},
		SourceFile: r.SourceFile,
	}
}
