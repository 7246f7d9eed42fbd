package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookstats/internal/config"
	"bookstats/internal/state"
	"bookstats/internal/storage/parquet"
	"bookstats/internal/storage/stubs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Classifica week 1.csv"),
		[]byte("Rank,Title,Author,Publisher,Units\n1,A,X,Adelphi,100\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Classifica week 2.csv"),
		[]byte("Rank,Title,Author,Publisher,Units\n1,A,X,Adelphi,150\n"), 0o644))

	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Port = "0"
	cfg.SnapshotBackend = config.BackendMock
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenStorage(t *testing.T) {
	logger := zap.NewNop()
	cfg := config.Default()

	db, err := OpenStorage(cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, db)

	cfg.SnapshotBackend = config.BackendMock
	db, err = OpenStorage(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &stubs.MockDB{}, db)

	cfg.SnapshotBackend = config.BackendParquet
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "snap", "consolidated.parquet")
	db, err = OpenStorage(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &parquet.FileStore{}, db)
	assert.DirExists(t, filepath.Dir(cfg.SnapshotPath))

	cfg.SnapshotBackend = "s3"
	_, err = OpenStorage(cfg, logger)
	assert.Error(t, err)
}

func TestApp_TrendThroughService(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Shutdown()

	rows, err := a.Service().Trend(context.Background(), state.Default())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].PercentChange)
	assert.Equal(t, 50.0, *rows[1].PercentChange)
}

func TestApp_RunUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchData = true
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_RunMissingDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = filepath.Join(t.TempDir(), "missing")
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	err = a.Run(context.Background())
	assert.Error(t, err)
}
