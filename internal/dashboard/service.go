// Package dashboard answers the dashboard's questions (filtered tables, top
// charts, weekly series, trend and heatmap) over the dataset of a data
// directory, reloading it only when the directory changes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"bookstats/internal/analysis"
	"bookstats/internal/cache"
	"bookstats/internal/ingest"
	"bookstats/internal/models"
	"bookstats/internal/state"
	"bookstats/internal/storage"
)

// ErrSnapshotDisabled is returned by RebuildSnapshot when no store is configured
var ErrSnapshotDisabled = errors.New("snapshot store not configured")

// Options configures a Service
type Options struct {
	DataDir        string
	FocusPublisher string
	Gap            analysis.GapPolicy
}

// Service serves dashboard views for one data directory
type Service struct {
	opts      Options
	logger    *zap.Logger
	loader    *ingest.Loader
	cache     *cache.Store
	snapshots storage.Storage

	mu       sync.RWMutex
	problems []error
}

// NewService creates a service. snapshots may be nil.
func NewService(opts Options, logger *zap.Logger, loader *ingest.Loader, store *cache.Store, snapshots storage.Storage) *Service {
	if opts.Gap == "" {
		opts.Gap = analysis.GapAnyPrevious
	}
	return &Service{
		opts:      opts,
		logger:    logger,
		loader:    loader,
		cache:     store,
		snapshots: snapshots,
	}
}

// DataDir returns the watched directory
func (s *Service) DataDir() string {
	return s.opts.DataDir
}

// FocusPublisher returns the publisher the trend views follow
func (s *Service) FocusPublisher() string {
	return s.opts.FocusPublisher
}

// Dataset returns the current dataset, loading it when the directory changed
func (s *Service) Dataset(ctx context.Context) (*models.Dataset, error) {
	ds, _, err := s.cache.Get(ctx, s.opts.DataDir, s.load)
	return ds, err
}

// Invalidate forces the next call to reload
func (s *Service) Invalidate() {
	s.cache.Invalidate(s.opts.DataDir)
}

// Watch starts invalidating the cache whenever a source in the data
// directory changes. onChange, when set, runs after each invalidation.
func (s *Service) Watch(ctx context.Context, onChange func(dir string)) (*cache.Watcher, error) {
	w, err := cache.NewWatcher(s.opts.DataDir, s.cache, s.logger, onChange)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, fmt.Errorf("failed to watch data directory: %w", err)
	}
	return w, nil
}

// Problems returns the per-file errors of the last load from source files
func (s *Service) Problems() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]error(nil), s.problems...)
}

func (s *Service) load(ctx context.Context, fingerprint string) (*models.Dataset, error) {
	if s.snapshots != nil {
		snap, err := s.snapshots.LoadSnapshot(ctx)
		switch {
		case err == nil && snap.Fingerprint == fingerprint:
			s.logger.Info("Using stored snapshot",
				zap.String("fingerprint", fingerprint),
				zap.Int("records", len(snap.Records)))
			return snap.Dataset(), nil
		case err != nil && !errors.Is(err, storage.ErrNoSnapshot):
			s.logger.Warn("Failed to read snapshot, loading sources", zap.Error(err))
		}
	}

	ds, err := s.loadSources(ctx)
	if err != nil {
		return nil, err
	}

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, storage.NewSnapshot(ds, fingerprint)); err != nil {
			s.logger.Warn("Failed to save snapshot", zap.Error(err))
		}
	}
	return ds, nil
}

func (s *Service) loadSources(ctx context.Context) (*models.Dataset, error) {
	res, err := s.loader.LoadDir(ctx, s.opts.DataDir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.problems = res.Problems
	s.mu.Unlock()

	s.logger.Info("Loaded weekly sources",
		zap.Int("weeks", len(res.Dataset.Weeks)),
		zap.Int("records", res.Dataset.Len()),
		zap.Int("skipped", len(res.Problems)))
	return res.Dataset, nil
}

// RebuildSnapshot reloads every source and replaces the stored snapshot
// regardless of its fingerprint
func (s *Service) RebuildSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotDisabled
	}
	fp, err := cache.Fingerprint(s.opts.DataDir)
	if err != nil {
		return nil, err
	}
	ds, err := s.loadSources(ctx)
	if err != nil {
		return nil, err
	}
	snap := storage.NewSnapshot(ds, fp)
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.Invalidate()
	return snap, nil
}

// Weeks returns the loaded weeks in chronological order
func (s *Service) Weeks(ctx context.Context) ([]models.Week, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Weeks, nil
}

// View is one week (or all weeks) narrowed by the dashboard filters
type View struct {
	// Dashboard is the request with unknown choices removed
	Dashboard  state.Dashboard
	Options    state.Options
	Rows       []models.SalesRecord
	HasCollana bool
	TotalUnits int
	// Groups summarises each constrained dimension over the filtered rows
	Groups map[models.Dimension]*models.GroupStats
}

// View returns the filtered rows for d. It fails with models.ErrNoData when
// nothing is loaded and with models.ErrWeekNotFound for a week that is not
// loaded. Unknown filter values are dropped.
func (s *Service) View(ctx context.Context, d state.Dashboard) (*View, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	if ds.Empty() {
		return nil, models.ErrNoData
	}

	weekRows, err := analysis.SelectWeek(ds, d.Week)
	if err != nil {
		return nil, err
	}
	week := models.AllWeeks
	if w, ok := ds.Week(d.Week); ok {
		week = w.Label
	}

	opts := state.OptionsFor(ds, weekRows)
	d = d.Sanitize(opts)
	d.Week = week
	rows := analysis.Filter(weekRows, d.Selection)

	v := &View{
		Dashboard:  d,
		Options:    opts,
		Rows:       rows,
		HasCollana: ds.HasCollana,
		TotalUnits: analysis.TotalUnits(rows),
		Groups:     make(map[models.Dimension]*models.GroupStats),
	}
	for _, dim := range d.Dimensions() {
		if g := analysis.AggregateGroupData(rows, dim, d.Selection[dim]); g != nil {
			v.Groups[dim] = g
		}
	}
	return v, nil
}

// Tops holds the three ranking charts of a view
type Tops struct {
	Titles     []models.RankedEntry
	Authors    []models.RankedEntry
	Publishers []models.RankedEntry
}

// Top ranks the rows of the view for d
func (s *Service) Top(ctx context.Context, d state.Dashboard) (*Tops, error) {
	v, err := s.View(ctx, d)
	if err != nil {
		return nil, err
	}
	return &Tops{
		Titles:     analysis.TopTitles(v.Rows),
		Authors:    analysis.TopAuthors(v.Rows),
		Publishers: analysis.TopPublishers(v.Rows),
	}, nil
}

// Series holds the weekly line charts for a selection
type Series struct {
	Weekly *analysis.WeeklyTrend
	// PublisherTop follows the publisher's top titles when exactly one publisher is selected
	PublisherTop []models.SeriesPoint
}

// Series builds the weekly charts for d's selection over every week
func (s *Service) Series(ctx context.Context, d state.Dashboard) (*Series, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	if ds.Empty() {
		return nil, models.ErrNoData
	}

	d = d.Sanitize(state.OptionsFor(ds, ds.All()))
	out := &Series{Weekly: analysis.WeeklySeries(ds, d.Selection)}
	if pubs := d.Selection[models.DimPublisher]; len(pubs) == 1 {
		out.PublisherTop = analysis.PublisherTopTitles(ds, pubs[0])
	}
	if out.Weekly == nil && out.PublisherTop == nil {
		return nil, models.ErrNoData
	}
	return out, nil
}

// Trend computes the week-over-week change of the focus publisher's titles,
// narrowed by d's title, author and series filters
func (s *Service) Trend(ctx context.Context, d state.Dashboard) ([]models.TrendRow, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	rows := analysis.FocusRows(ds, s.opts.FocusPublisher, d.Selection)
	if len(rows) == 0 {
		return nil, models.ErrNoData
	}
	return analysis.ComputeTrend(rows, analysis.TrendOptions{
		Gap:       s.opts.Gap,
		ByCollana: ds.HasCollana,
	})
}

// Heatmap pivots the focus publisher's trend into the title × week matrix
func (s *Service) Heatmap(ctx context.Context, d state.Dashboard) (*models.Heatmap, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	trend, err := s.Trend(ctx, d)
	if err != nil {
		return nil, err
	}
	return analysis.BuildHeatmap(trend, analysis.HeatmapOptions{WithCollana: ds.HasCollana})
}
