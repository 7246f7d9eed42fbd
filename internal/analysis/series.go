package analysis

import (
	"bookstats/internal/models"
)

// WeeklyTrend holds the line-chart data for a selection across weeks
type WeeklyTrend struct {
	// By is the dimension the totals are grouped on
	By models.Dimension
	// Totals has one point per selected item and week it appears in
	Totals []models.SeriesPoint
	// Books has one point per title and week, only when grouping by author
	Books []models.SeriesPoint
}

// WeeklySeries builds week-by-week unit totals for the selected titles, or
// failing that publishers, or failing that authors (plus each of their books).
// It returns nil when none of those dimensions is selected.
func WeeklySeries(ds *models.Dataset, sel models.Selection) *WeeklyTrend {
	if ds.Empty() {
		return nil
	}

	var by models.Dimension
	switch {
	case len(sel[models.DimTitle]) > 0:
		by = models.DimTitle
	case len(sel[models.DimPublisher]) > 0:
		by = models.DimPublisher
	case len(sel[models.DimAuthor]) > 0:
		by = models.DimAuthor
	default:
		return nil
	}
	items := sel[by]

	trend := &WeeklyTrend{By: by}
	for _, w := range ds.Weeks {
		rows := Filter(ds.Records[w.Number], models.Selection{by: items})
		if len(rows) == 0 {
			continue
		}
		trend.Totals = append(trend.Totals, pointsFor(w, rows, by, items)...)
		if by == models.DimAuthor {
			trend.Books = append(trend.Books, pointsFor(w, rows, models.DimTitle, DistinctInOrder(rows, models.DimTitle))...)
		}
	}
	return trend
}

// PublisherTopTitles follows the 20 best-selling titles of one publisher
// (over all weeks) week by week.
func PublisherTopTitles(ds *models.Dataset, publisher string) []models.SeriesPoint {
	if ds.Empty() {
		return nil
	}
	all := Filter(AggregateAllWeeks(ds), models.Selection{models.DimPublisher: {publisher}})
	if len(all) > TopTitlesLimit {
		all = all[:TopTitlesLimit]
	}
	titles := DistinctInOrder(all, models.DimTitle)

	var points []models.SeriesPoint
	for _, w := range ds.Weeks {
		rows := Filter(ds.Records[w.Number], models.Selection{models.DimPublisher: {publisher}})
		points = append(points, pointsFor(w, rows, models.DimTitle, titles)...)
	}
	return points
}

func pointsFor(w models.Week, rows []models.SalesRecord, dim models.Dimension, items []string) []models.SeriesPoint {
	sums := make(map[string]int)
	present := make(map[string]bool)
	for _, r := range rows {
		if v, ok := r.Value(dim); ok {
			sums[v] += r.Units
			present[v] = true
		}
	}

	var points []models.SeriesPoint
	for _, it := range items {
		if present[it] {
			points = append(points, models.SeriesPoint{Week: w, Item: it, Units: sums[it]})
		}
	}
	return points
}

// DistinctInOrder returns the distinct values of a dimension in order of first appearance
func DistinctInOrder(rows []models.SalesRecord, dim models.Dimension) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if v, ok := r.Value(dim); ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
