package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"bookstats/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "Classifica week 1.csv", "a")

	fp1, err := Fingerprint(dir)
	require.NoError(t, err)

	write(t, dir, "notes.txt", "ignored")
	fp2, err := Fingerprint(dir)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2, "non-source files do not count")

	write(t, dir, "Classifica week 2.csv", "b")
	fp3, err := Fingerprint(dir)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "Classifica week 1.csv"), later, later))
	fp4, err := Fingerprint(dir)
	require.NoError(t, err)
	assert.NotEqual(t, fp3, fp4, "modification time is part of the key")

	_, err = Fingerprint(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestStore_Get(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "Classifica week 1.csv", "a")

	store := NewStore()
	loads := 0
	var seen []string
	load := func(ctx context.Context, fp string) (*models.Dataset, error) {
		loads++
		seen = append(seen, fp)
		return models.NewDataset(), nil
	}

	ctx := context.Background()
	ds1, fp1, err := store.Get(ctx, dir, load)
	require.NoError(t, err)
	ds2, fp2, err := store.Get(ctx, dir, load)
	require.NoError(t, err)
	assert.Same(t, ds1, ds2)
	assert.Equal(t, fp1, fp2)
	assert.Equal(t, 1, loads)
	assert.Equal(t, []string{fp1}, seen)

	write(t, dir, "Classifica week 2.csv", "b")
	_, fp3, err := store.Get(ctx, dir, load)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)
	assert.Equal(t, 2, loads)

	store.Invalidate(dir)
	_, _, err = store.Get(ctx, dir, load)
	require.NoError(t, err)
	assert.Equal(t, 3, loads)

	hits, misses := store.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 3, misses)
}

func TestStore_LoadError(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	boom := errors.New("boom")

	_, _, err := store.Get(context.Background(), dir, func(context.Context, string) (*models.Dataset, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	calls := 0
	_, _, err = store.Get(context.Background(), dir, func(context.Context, string) (*models.Dataset, error) {
		calls++
		return models.NewDataset(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "failed loads are not cached")
}

func TestWatcher_InvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := store.Get(ctx, dir, func(context.Context, string) (*models.Dataset, error) {
		return models.NewDataset(), nil
	})
	require.NoError(t, err)

	changed := make(chan string, 1)
	w, err := NewWatcher(dir, store, zap.NewNop(), func(d string) {
		select {
		case changed <- d:
		default:
		}
	})
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	write(t, dir, "Classifica week 3.csv", "c")

	select {
	case d := <-changed:
		assert.Equal(t, dir, d)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	store.mu.Lock()
	_, cached := store.entries[dir]
	store.mu.Unlock()
	assert.False(t, cached)
}
