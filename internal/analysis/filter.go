// Package analysis filters, aggregates and derives trends from weekly sales records.
// Every function is pure: inputs are never modified.
package analysis

import (
	"fmt"
	"sort"

	"bookstats/internal/models"
)

// Filter returns the records matching every constrained dimension.
// Values within one dimension are alternatives. An empty selection returns rows unchanged.
func Filter(rows []models.SalesRecord, sel models.Selection) []models.SalesRecord {
	if sel.IsEmpty() {
		return rows
	}

	accept := make(map[models.Dimension]map[string]bool, len(sel))
	for dim, vals := range sel {
		if len(vals) == 0 {
			continue
		}
		set := make(map[string]bool, len(vals))
		for _, v := range vals {
			set[v] = true
		}
		accept[dim] = set
	}

	out := make([]models.SalesRecord, 0, len(rows))
	for _, r := range rows {
		if matches(r, accept) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r models.SalesRecord, accept map[models.Dimension]map[string]bool) bool {
	for dim, set := range accept {
		v, ok := r.Value(dim)
		if !ok || !set[v] {
			return false
		}
	}
	return true
}

type aggregateKey struct {
	title, author, publisher string
	collana                  string
	hasCollana               bool
}

// AggregateAllWeeks collapses the week dimension, summing units per
// (title, author, publisher, collana). Rank and source are not carried over.
// Rows are returned by units descending, then title.
func AggregateAllWeeks(ds *models.Dataset) []models.SalesRecord {
	if ds.Empty() {
		return nil
	}

	index := make(map[aggregateKey]int)
	var out []models.SalesRecord
	for _, r := range ds.All() {
		k := aggregateKey{title: r.Title, author: r.Author, publisher: r.Publisher}
		if r.Collana != nil {
			k.collana, k.hasCollana = *r.Collana, true
		}
		if i, ok := index[k]; ok {
			out[i].Units += r.Units
			continue
		}
		index[k] = len(out)
		out = append(out, models.SalesRecord{
			Title:     r.Title,
			Author:    r.Author,
			Publisher: r.Publisher,
			Collana:   r.Collana,
			Units:     r.Units,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// SelectWeek returns the rows for a week label, or the all-weeks aggregate for models.AllWeeks
func SelectWeek(ds *models.Dataset, label string) ([]models.SalesRecord, error) {
	if label == "" || label == models.AllWeeks {
		return AggregateAllWeeks(ds), nil
	}
	w, ok := ds.Week(label)
	if !ok {
		return nil, fmt.Errorf("%q: %w", label, models.ErrWeekNotFound)
	}
	return ds.Records[w.Number], nil
}

// AggregateGroupData totals the units of the rows whose dimension value is selected.
// Items counts distinct titles, or the number of selected titles when dimension is title.
// It returns nil when nothing is selected or nothing matches.
func AggregateGroupData(rows []models.SalesRecord, dim models.Dimension, values []string) *models.GroupStats {
	if len(values) == 0 {
		return nil
	}
	sub := Filter(rows, models.Selection{dim: values})
	if len(sub) == 0 {
		return nil
	}

	stats := &models.GroupStats{}
	titles := make(map[string]bool)
	for _, r := range sub {
		stats.TotalUnits += r.Units
		titles[r.Title] = true
	}
	if dim == models.DimTitle {
		stats.Items = len(values)
	} else {
		stats.Items = len(titles)
	}
	return stats
}

// DistinctValues returns the sorted non-empty values of a dimension, for filter option lists
func DistinctValues(rows []models.SalesRecord, dim models.Dimension) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		if v, ok := r.Value(dim); ok && v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// TotalUnits sums units over rows
func TotalUnits(rows []models.SalesRecord) int {
	total := 0
	for _, r := range rows {
		total += r.Units
	}
	return total
}
