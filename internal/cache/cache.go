// Package cache keeps loaded datasets in memory keyed by the fingerprint of
// their source files.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"

	"bookstats/internal/ingest"
	"bookstats/internal/models"
)

// Fingerprint hashes the name, size and modification time of every source
// file in dir. Any added, removed or rewritten source changes it.
func Fingerprint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var lines []string
	for _, e := range entries {
		if e.IsDir() || !ingest.IsSourceFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%d", e.Name(), info.Size(), info.ModTime().UnixNano()))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LoadFunc produces the dataset for the directory state named by fingerprint
type LoadFunc func(ctx context.Context, fingerprint string) (*models.Dataset, error)

type entry struct {
	fingerprint string
	dataset     *models.Dataset
}

// Store memoises one dataset per directory
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	hits    int
	misses  int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Get returns the cached dataset for dir when its fingerprint still matches,
// otherwise calls load and caches the result. Datasets are shared read-only.
func (s *Store) Get(ctx context.Context, dir string, load LoadFunc) (*models.Dataset, string, error) {
	fp, err := Fingerprint(dir)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[dir]; ok && e.fingerprint == fp {
		s.hits++
		return e.dataset, fp, nil
	}
	s.misses++

	ds, err := load(ctx, fp)
	if err != nil {
		return nil, "", err
	}
	s.entries[dir] = entry{fingerprint: fp, dataset: ds}
	return ds, fp, nil
}

// Invalidate drops the cached dataset for dir
func (s *Store) Invalidate(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, dir)
}

// Stats returns the hit and miss counters
func (s *Store) Stats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}
