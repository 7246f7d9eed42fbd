package analysis

import (
	"fmt"
	"sort"
	"strings"

	"bookstats/internal/models"
)

// GapPolicy decides what a title's "previous week" is when weeks are missing
type GapPolicy string

const (
	// GapAnyPrevious compares against the most recent week the title is present in,
	// however far back.
	GapAnyPrevious GapPolicy = "any-previous"
	// GapAdjacentOnly compares only against the week numbered immediately before;
	// a gap leaves the change undefined.
	GapAdjacentOnly GapPolicy = "adjacent-only"
)

// ParseGapPolicy validates a policy name; empty means GapAnyPrevious
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch GapPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GapAnyPrevious:
		return GapAnyPrevious, nil
	case GapAdjacentOnly:
		return GapAdjacentOnly, nil
	}
	return "", fmt.Errorf("unknown gap policy %q (want %s or %s)", s, GapAnyPrevious, GapAdjacentOnly)
}

// TrendOptions configures ComputeTrend
type TrendOptions struct {
	Gap GapPolicy
	// ByCollana keys titles by (title, collana) instead of title alone
	ByCollana bool
}

// groupKey is the grouping key of step one; author is part of it so that a
// title credited differently within one week is caught as a duplicate.
type groupKey struct {
	title      string
	collana    string
	hasCollana bool
	author     string
	week       int
}

// seriesKey identifies one line of the trend: a title, optionally within a series
type seriesKey struct {
	title      string
	collana    string
	hasCollana bool
}

type grouped struct {
	key     groupKey
	collana *string
	week    models.Week
	units   int
}

// ComputeTrend sums units per title and week and derives the change from each
// title's previous week. Rows are ordered by title, series, then week number.
//
// A title that still has more than one row for a week after grouping yields a
// *models.DataIntegrityError naming every such key; no rows are returned then.
func ComputeTrend(rows []models.SalesRecord, opts TrendOptions) ([]models.TrendRow, error) {
	if opts.Gap == "" {
		opts.Gap = GapAnyPrevious
	}

	// 1. group and sum
	index := make(map[groupKey]int)
	var groups []grouped
	for _, r := range rows {
		k := groupKey{title: r.Title, author: r.Author, week: r.Week.Number}
		var collana *string
		if opts.ByCollana && r.Collana != nil {
			k.collana, k.hasCollana = *r.Collana, true
			collana = r.Collana
		}
		if i, ok := index[k]; ok {
			groups[i].units += r.Units
			continue
		}
		index[k] = len(groups)
		groups = append(groups, grouped{key: k, collana: collana, week: r.Week, units: r.Units})
	}

	if err := checkUnique(groups); err != nil {
		return nil, err
	}

	// 2. order by series then by week rank
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].key, groups[j].key
		if a.title != b.title {
			return a.title < b.title
		}
		if a.hasCollana != b.hasCollana {
			return !a.hasCollana
		}
		if a.collana != b.collana {
			return a.collana < b.collana
		}
		return a.week < b.week
	})

	// 3–4. previous units and percent change within each series
	out := make([]models.TrendRow, len(groups))
	for i, g := range groups {
		out[i] = models.TrendRow{
			Title:   g.key.title,
			Collana: g.collana,
			Week:    g.week,
			Units:   g.units,
		}
		if i == 0 || series(groups[i-1].key) != series(g.key) {
			continue
		}
		prev := groups[i-1]
		if opts.Gap == GapAdjacentOnly && prev.week.Number != g.week.Number-1 {
			continue
		}
		pu := prev.units
		out[i].PreviousUnits = &pu
		out[i].PercentChange = PercentChange(g.units, pu)
	}
	return out, nil
}

func series(k groupKey) seriesKey {
	return seriesKey{title: k.title, collana: k.collana, hasCollana: k.hasCollana}
}

// PercentChange returns (units-previous)/previous*100, or nil when previous is not positive
func PercentChange(units, previous int) *float64 {
	if previous <= 0 {
		return nil
	}
	pct := float64(units-previous) / float64(previous) * 100
	return &pct
}

func checkUnique(groups []grouped) error {
	type weekSeries struct {
		s    seriesKey
		week int
	}
	counts := make(map[weekSeries]int)
	first := make(map[weekSeries]grouped)
	var order []weekSeries
	for _, g := range groups {
		k := weekSeries{s: series(g.key), week: g.key.week}
		if counts[k] == 0 {
			first[k] = g
			order = append(order, k)
		}
		counts[k]++
	}

	var dups []models.DuplicateKey
	for _, k := range order {
		if counts[k] < 2 {
			continue
		}
		g := first[k]
		dups = append(dups, models.DuplicateKey{
			Title:   g.key.title,
			Collana: g.collana,
			Week:    g.week,
			Count:   counts[k],
		})
	}
	if len(dups) == 0 {
		return nil
	}
	sort.SliceStable(dups, func(i, j int) bool {
		if dups[i].Title != dups[j].Title {
			return dups[i].Title < dups[j].Title
		}
		return dups[i].Week.Before(dups[j].Week)
	})
	return &models.DataIntegrityError{Keys: dups}
}

// FocusRows returns every week's rows whose publisher contains focus
// (case-insensitive), narrowed by the title, author and series of sel.
// The publisher dimension of sel is ignored: focus replaces it.
func FocusRows(ds *models.Dataset, focus string, sel models.Selection) []models.SalesRecord {
	if ds.Empty() {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(focus))

	var rows []models.SalesRecord
	for _, r := range ds.All() {
		if r.Title == "" {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Publisher), needle) {
			continue
		}
		rows = append(rows, r)
	}

	narrowed := models.Selection{}
	for _, dim := range []models.Dimension{models.DimTitle, models.DimAuthor, models.DimCollana} {
		if vals := sel[dim]; len(vals) > 0 {
			narrowed[dim] = vals
		}
	}
	return Filter(rows, narrowed)
}
