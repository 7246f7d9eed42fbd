// Package ingest loads weekly sales sheets from a directory into a Dataset.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookstats/internal/models"
)

// Source is one weekly file found in the data directory
type Source struct {
	Path string
	Week models.Week
}

// LoadResult is the outcome of loading a directory.
// Problems holds one *models.SourceFormatError per skipped file.
type LoadResult struct {
	Dataset  *models.Dataset
	Sources  []Source
	Problems []error
}

// Loader reads weekly sources with a bounded worker pool
type Loader struct {
	logger  *zap.Logger
	workers int
	sheet   string
}

// NewLoader creates a loader. workers <= 0 uses GOMAXPROCS.
func NewLoader(logger *zap.Logger, workers int, sheet string) *Loader {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Loader{logger: logger, workers: workers, sheet: sheet}
}

// Discover lists the usable sources in dir, sorted by week.
// Files without a week number, or repeating an earlier file's week, are returned as problems.
func (l *Loader) Discover(dir string) ([]Source, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var (
		sources  []Source
		problems []error
		seen     = make(map[int]string)
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsSourceFile(name) {
			continue
		}
		week, err := WeekFromFilename(name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if prev, dup := seen[week.Number]; dup {
			problems = append(problems, &models.SourceFormatError{
				File:   name,
				Reason: fmt.Sprintf("%s already provided by %s", week.Label, prev),
			})
			continue
		}
		seen[week.Number] = name
		sources = append(sources, Source{Path: filepath.Join(dir, name), Week: week})
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Week.Before(sources[j].Week)
	})
	return sources, problems, nil
}

// IsSourceFile reports whether name looks like a weekly export.
// Spreadsheet lock files ("~$...") are ignored.
func IsSourceFile(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// LoadDir loads every source in dir. A file that fails is logged and skipped;
// the returned error is non-nil only when dir itself cannot be read.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*LoadResult, error) {
	sources, problems, err := l.Discover(dir)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		l.logger.Warn("Skipping source", zap.Error(p))
	}

	res := l.Load(ctx, sources)
	res.Problems = append(problems, res.Problems...)

	if len(sources) == 0 {
		l.logger.Warn("No weekly sources found", zap.String("dir", dir))
	}
	return res, nil
}

// Load reads the given sources concurrently and merges them once all have finished
func (l *Loader) Load(ctx context.Context, sources []Source) *LoadResult {
	type outcome struct {
		records    []models.SalesRecord
		hasCollana bool
		err        error
	}
	outcomes := make([]outcome, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, src := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i].err = ctx.Err()
				return nil
			}
			recs, hasCollana, err := LoadFile(src.Path, src.Week, l.sheet)
			outcomes[i] = outcome{records: recs, hasCollana: hasCollana, err: err}
			// A broken file never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	res := &LoadResult{Dataset: models.NewDataset()}
	for i, src := range sources {
		o := outcomes[i]
		if o.err != nil {
			l.logger.Warn("Failed to load source", zap.String("file", filepath.Base(src.Path)), zap.Error(o.err))
			res.Problems = append(res.Problems, o.err)
			continue
		}
		l.logger.Debug("Loaded source",
			zap.String("file", filepath.Base(src.Path)),
			zap.String("week", src.Week.Label),
			zap.Int("records", len(o.records)))
		res.Dataset.Add(src.Week, o.records)
		res.Dataset.HasCollana = res.Dataset.HasCollana || o.hasCollana
		res.Sources = append(res.Sources, src)
	}
	return res
}

// LoadFile reads and normalises a single weekly source
func LoadFile(path string, week models.Week, sheet string) ([]models.SalesRecord, bool, error) {
	t, err := readSource(path, sheet)
	if err != nil {
		return nil, false, err
	}
	return t.records(path, week)
}
