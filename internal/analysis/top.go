package analysis

import (
	"sort"

	"bookstats/internal/models"
)

const (
	TopTitlesLimit     = 20
	TopAuthorsLimit    = 10
	TopPublishersLimit = 10

	// VariousAuthors is the label used for anthologies; it is left out of author rankings
	VariousAuthors = "AA.VV."
)

// minChartEntries is the smallest ranking worth plotting
const minChartEntries = 2

// TopTitles returns the 20 rows with most units. Rows are not grouped, so a
// title listed under two series appears twice, as it does in the table.
// It returns nil when fewer than two rows exist.
func TopTitles(rows []models.SalesRecord) []models.RankedEntry {
	entries := make([]models.RankedEntry, len(rows))
	for i, r := range rows {
		entries[i] = models.RankedEntry{Name: r.Title, Units: r.Units}
	}
	return rank(entries, TopTitlesLimit)
}

// TopAuthors returns the 10 authors with most summed units, excluding VariousAuthors.
// It returns nil when fewer than two authors exist.
func TopAuthors(rows []models.SalesRecord) []models.RankedEntry {
	return rank(sumBy(rows, models.DimAuthor, VariousAuthors), TopAuthorsLimit)
}

// TopPublishers returns the 10 publishers with most summed units.
// It returns nil when fewer than two publishers exist.
func TopPublishers(rows []models.SalesRecord) []models.RankedEntry {
	return rank(sumBy(rows, models.DimPublisher, ""), TopPublishersLimit)
}

func sumBy(rows []models.SalesRecord, dim models.Dimension, exclude string) []models.RankedEntry {
	counts := make(map[string]int)
	for _, r := range rows {
		v, ok := r.Value(dim)
		if !ok || (exclude != "" && v == exclude) {
			continue
		}
		counts[v] += r.Units
	}

	entries := make([]models.RankedEntry, 0, len(counts))
	for name, units := range counts {
		entries = append(entries, models.RankedEntry{Name: name, Units: units})
	}
	return entries
}

// rank sorts by units descending then by name, and limits the result
func rank(entries []models.RankedEntry, limit int) []models.RankedEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Units != entries[j].Units {
			return entries[i].Units > entries[j].Units
		}
		return entries[i].Name < entries[j].Name
	})

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	if len(entries) < minChartEntries {
		return nil
	}
	return entries
}
