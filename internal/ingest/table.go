package ingest

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"bookstats/internal/models"
	"bookstats/internal/normalize"
)

// table is the raw grid read from one source before typing
type table struct {
	headers []string
	rows    [][]string
}

// columns holds the resolved index of every known column, -1 when absent
type columns struct {
	rank, title, author, publisher, units, collana int
}

func resolveColumns(file string, headers []string) (columns, error) {
	canon := make([]string, len(headers))
	for i, h := range headers {
		canon[i] = normalize.Header(h)
	}

	cols := columns{
		rank:      normalize.FindColumn(canon, normalize.RankAliases...),
		title:     normalize.FindColumn(canon, "title", "titolo"),
		author:    normalize.FindColumn(canon, "author", "autore"),
		publisher: normalize.FindColumn(canon, "publisher", "editore"),
		units:     normalize.FindColumn(canon, "units", "unità", "copie"),
		collana:   normalize.FindColumn(canon, normalize.CollanaAliases...),
	}

	switch {
	case cols.rank < 0:
		return cols, &models.SourceFormatError{File: file, Reason: "missing rank column"}
	case cols.title < 0:
		return cols, &models.SourceFormatError{File: file, Reason: "missing title column"}
	case cols.units < 0:
		return cols, &models.SourceFormatError{File: file, Reason: "missing units column"}
	}
	return cols, nil
}

// records types the grid into sales records for week.
// Rows whose rank is not a number (totals, notes, blank lines) are dropped.
func (t table) records(path string, week models.Week) ([]models.SalesRecord, bool, error) {
	file := filepath.Base(path)
	cols, err := resolveColumns(file, t.headers)
	if err != nil {
		return nil, false, err
	}

	records := make([]models.SalesRecord, 0, len(t.rows))
	for _, row := range t.rows {
		rank, ok := parseNumber(cell(row, cols.rank))
		if !ok {
			continue
		}
		title := normalize.Title(cell(row, cols.title))
		if title == "" {
			continue
		}

		rec := models.SalesRecord{
			Rank:       int(rank),
			Title:      title,
			Author:     normalize.Text(cell(row, cols.author)),
			Publisher:  normalize.Publisher(cell(row, cols.publisher)),
			Units:      CoerceUnits(cell(row, cols.units)),
			Week:       week,
			SourceFile: file,
		}
		if cols.collana >= 0 {
			if c := normalize.Text(cell(row, cols.collana)); c != "" {
				rec.Collana = models.StringPtr(c)
			}
		}
		records = append(records, rec)
	}
	return records, cols.collana >= 0, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// groupedDigits matches integers written with thousands separators: "1.234", "12,345,678"
var groupedDigits = regexp.MustCompile(`^\d{1,3}([.,]\d{3})+$`)

// CoerceUnits turns a units cell into a non-negative integer.
// Unparseable, missing and negative values become 0; fractions are truncated
// and values beyond math.MaxInt32 are clamped. A dot or comma followed by
// exactly three digits groups thousands, any other comma is a decimal mark.
func CoerceUnits(s string) int {
	s = strings.NewReplacer(" ", "", "'", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	switch {
	case groupedDigits.MatchString(s):
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
	case !strings.Contains(s, "."):
		s = strings.Replace(s, ",", ".", 1)
	}
	f, ok := parseNumber(s)
	if !ok || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
