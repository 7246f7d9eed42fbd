package ingest

import (
	"path/filepath"
	"regexp"
	"strconv"

	"bookstats/internal/models"
)

var weekInName = regexp.MustCompile(`(?i)(?:week|settimana)\s*(\d+)`)

// WeekFromFilename extracts the week number embedded in a source file name,
// e.g. "Classifica week 12.xlsx" or "Settimana 3.csv". The number must follow
// the keyword directly or after whitespace, so "settimana_3.csv" is rejected.
func WeekFromFilename(path string) (models.Week, error) {
	name := filepath.Base(path)
	m := weekInName.FindStringSubmatch(name)
	if m == nil {
		return models.Week{}, &models.SourceFormatError{File: name, Reason: "no week number in file name"}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return models.Week{}, &models.SourceFormatError{File: name, Reason: "invalid week number", Err: err}
	}
	return models.NewWeek(n), nil
}
