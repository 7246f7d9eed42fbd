// Package report renders records, rankings, trends and heatmaps as CSV and as
// terminal tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"bookstats/internal/models"
)

// ExportFileName is the download name of a filtered view
const ExportFileName = "dati_filtrati.csv"

var recordHeader = []string{"title", "author", "publisher", "collana", "units", "week", "source_file"}

// WriteRecordsCSV writes rows without their rank. The collana column is
// only present when withCollana is set; week and source are empty for
// all-weeks aggregates.
func WriteRecordsCSV(w io.Writer, rows []models.SalesRecord, withCollana bool) error {
	cw := csv.NewWriter(w)

	header := recordHeader
	if !withCollana {
		header = []string{"title", "author", "publisher", "units", "week", "source_file"}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		line := []string{r.Title, r.Author, r.Publisher}
		if withCollana {
			line = append(line, r.CollanaOr(""))
		}
		line = append(line, strconv.Itoa(r.Units), r.Week.Label, r.SourceFile)
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTrendCSV writes trend rows; an undefined change is an empty cell
func WriteTrendCSV(w io.Writer, rows []models.TrendRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"title", "collana", "week", "units", "previous_units", "percent_change"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		var prev, pct string
		if r.PreviousUnits != nil {
			prev = strconv.Itoa(*r.PreviousUnits)
		}
		if r.PercentChange != nil {
			pct = strconv.FormatFloat(*r.PercentChange, 'f', 2, 64)
		}
		collana := ""
		if r.Collana != nil {
			collana = *r.Collana
		}
		if err := cw.Write([]string{r.Title, collana, r.Week.Label, strconv.Itoa(r.Units), prev, pct}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
