package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// WeekLabelPrefix is the display prefix of every week label
const WeekLabelPrefix = "Settimana"

// AllWeeks is the week selector value meaning "sum over every loaded week"
const AllWeeks = "Tutti"

var weekLabelPattern = regexp.MustCompile(`(?i)(?:settimana|week)\s*(\d+)`)

// Week identifies one weekly source. Weeks are ordered by Number.
type Week struct {
	Number int
	Label  string
}

// NewWeek returns the week with the canonical display label
func NewWeek(number int) Week {
	return Week{Number: number, Label: fmt.Sprintf("%s %d", WeekLabelPrefix, number)}
}

// ParseWeek extracts a week from a label such as "Settimana 12" or "week 12"
func ParseWeek(s string) (Week, bool) {
	m := weekLabelPattern.FindStringSubmatch(s)
	if m == nil {
		return Week{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Week{}, false
	}
	return NewWeek(n), true
}

// Before reports whether w sorts before other
func (w Week) Before(other Week) bool {
	return w.Number < other.Number
}

func (w Week) String() string {
	return w.Label
}

// SalesRecord is one book's sales in one week
type SalesRecord struct {
	Rank       int
	Title      string
	Author     string
	Publisher  string
	Collana    *string
	Units      int
	Week       Week
	SourceFile string
}

// CollanaOr returns the series label or fallback when it is absent
func (r SalesRecord) CollanaOr(fallback string) string {
	if r.Collana == nil {
		return fallback
	}
	return *r.Collana
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// Dataset holds every loaded week's records
type Dataset struct {
	Weeks   []Week
	Records map[int][]SalesRecord // keyed by Week.Number
	// HasCollana is true when at least one source carried a series column
	HasCollana bool
}

// NewDataset creates an empty dataset
func NewDataset() *Dataset {
	return &Dataset{Records: make(map[int][]SalesRecord)}
}

// Add appends records for week, keeping Weeks sorted
func (d *Dataset) Add(week Week, records []SalesRecord) {
	if _, ok := d.Records[week.Number]; !ok {
		d.Weeks = append(d.Weeks, week)
		sort.Slice(d.Weeks, func(i, j int) bool {
			return d.Weeks[i].Before(d.Weeks[j])
		})
	}
	d.Records[week.Number] = append(d.Records[week.Number], records...)
}

// Week looks up a loaded week by its label
func (d *Dataset) Week(label string) (Week, bool) {
	for _, w := range d.Weeks {
		if w.Label == label {
			return w, true
		}
	}
	return Week{}, false
}

// All returns every record across weeks in chronological order
func (d *Dataset) All() []SalesRecord {
	var all []SalesRecord
	for _, w := range d.Weeks {
		all = append(all, d.Records[w.Number]...)
	}
	return all
}

// Len returns the total number of records
func (d *Dataset) Len() int {
	n := 0
	for _, recs := range d.Records {
		n += len(recs)
	}
	return n
}

// Empty reports whether no week was loaded
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Weeks) == 0
}

// Dimension names a filterable column
type Dimension string

const (
	DimPublisher Dimension = "publisher"
	DimAuthor    Dimension = "author"
	DimTitle     Dimension = "title"
	DimCollana   Dimension = "collana"
)

// Dimensions lists filterable columns in display order
var Dimensions = []Dimension{DimPublisher, DimAuthor, DimTitle, DimCollana}

// Value returns the record's value for the dimension. ok is false for a null collana.
func (r SalesRecord) Value(d Dimension) (string, bool) {
	switch d {
	case DimPublisher:
		return r.Publisher, true
	case DimAuthor:
		return r.Author, true
	case DimTitle:
		return r.Title, true
	case DimCollana:
		if r.Collana == nil {
			return "", false
		}
		return *r.Collana, true
	}
	return "", false
}

// Selection maps a dimension to its accepted values; an empty set is no constraint
type Selection map[Dimension][]string

// IsEmpty reports whether no dimension is constrained
func (s Selection) IsEmpty() bool {
	for _, vals := range s {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// TrendRow is one title's units in one week with the change from its previous week
type TrendRow struct {
	Title         string
	Collana       *string
	Week          Week
	Units         int
	PreviousUnits *int
	PercentChange *float64
}

// GroupStats summarises a dimension selection
type GroupStats struct {
	TotalUnits int
	Items      int
}

// RankedEntry is one bar of a top-N chart
type RankedEntry struct {
	Name  string
	Units int
}

// SeriesPoint is one point of a weekly line chart
type SeriesPoint struct {
	Week  Week
	Item  string
	Units int
}

// Heatmap is the title × week matrix of percent changes
type Heatmap struct {
	Rows    []string
	Columns []Week
	// Percent holds the change per cell; nil where no change was computed
	Percent [][]*float64
	Units   [][]int
	Totals  []int
}

// Cell returns the display value of a cell, 0 where no change was computed
func (h *Heatmap) Cell(row, col int) float64 {
	if p := h.Percent[row][col]; p != nil {
		return *p
	}
	return 0
}
