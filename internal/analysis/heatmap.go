package analysis

import (
	"fmt"
	"sort"

	"bookstats/internal/models"
)

// UnknownCollana labels titles without a series when rows are keyed by series
const UnknownCollana = "Sconosciuta"

// HeatmapOptions configures BuildHeatmap
type HeatmapOptions struct {
	// WithCollana labels rows "Title (Series)"
	WithCollana bool
	// Placeholder replaces a missing series in labels; defaults to UnknownCollana
	Placeholder string
}

// RowLabel returns the heatmap row label of a trend row
func RowLabel(r models.TrendRow, opts HeatmapOptions) string {
	if !opts.WithCollana {
		return r.Title
	}
	placeholder := opts.Placeholder
	if placeholder == "" {
		placeholder = UnknownCollana
	}
	c := placeholder
	if r.Collana != nil {
		c = *r.Collana
	}
	return fmt.Sprintf("%s (%s)", r.Title, c)
}

// BuildHeatmap pivots trend rows into a label × week matrix of percent changes
// with the matching units matrix. Rows are ordered by total units descending.
//
// It returns models.ErrNoData when no cell has a computed change, and a
// *models.DataIntegrityError when two trend rows land on the same cell.
func BuildHeatmap(trend []models.TrendRow, opts HeatmapOptions) (*models.Heatmap, error) {
	weekSet := make(map[int]models.Week)
	rowIndex := make(map[string]int)
	var labels []string
	for _, r := range trend {
		weekSet[r.Week.Number] = r.Week
		label := RowLabel(r, opts)
		if _, ok := rowIndex[label]; !ok {
			rowIndex[label] = len(labels)
			labels = append(labels, label)
		}
	}

	weeks := make([]models.Week, 0, len(weekSet))
	for _, w := range weekSet {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	colIndex := make(map[int]int, len(weeks))
	for i, w := range weeks {
		colIndex[w.Number] = i
	}

	percent := make([][]*float64, len(labels))
	units := make([][]int, len(labels))
	filled := make([][]bool, len(labels))
	totals := make([]int, len(labels))
	for i := range labels {
		percent[i] = make([]*float64, len(weeks))
		units[i] = make([]int, len(weeks))
		filled[i] = make([]bool, len(weeks))
	}

	var dups []models.DuplicateKey
	nonEmpty := false
	for _, r := range trend {
		ri, ci := rowIndex[RowLabel(r, opts)], colIndex[r.Week.Number]
		if filled[ri][ci] {
			dups = append(dups, models.DuplicateKey{Title: r.Title, Collana: r.Collana, Week: r.Week, Count: 2})
			continue
		}
		filled[ri][ci] = true
		percent[ri][ci] = r.PercentChange
		units[ri][ci] = r.Units
		totals[ri] += r.Units
		if r.PercentChange != nil {
			nonEmpty = true
		}
	}
	if len(dups) > 0 {
		return nil, &models.DataIntegrityError{Keys: dups}
	}
	if !nonEmpty {
		return nil, models.ErrNoData
	}

	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if totals[i] != totals[j] {
			return totals[i] > totals[j]
		}
		return labels[i] < labels[j]
	})

	hm := &models.Heatmap{
		Rows:    make([]string, len(order)),
		Columns: weeks,
		Percent: make([][]*float64, len(order)),
		Units:   make([][]int, len(order)),
		Totals:  make([]int, len(order)),
	}
	for pos, i := range order {
		hm.Rows[pos] = labels[i]
		hm.Percent[pos] = percent[i]
		hm.Units[pos] = units[i]
		hm.Totals[pos] = totals[i]
	}
	return hm, nil
}
