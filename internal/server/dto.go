package server

import (
	"bookstats/internal/dashboard"
	"bookstats/internal/models"
)

// WeekDTO is a loaded week
type WeekDTO struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
}

// RecordDTO is one sales row
type RecordDTO struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Publisher  string  `json:"publisher"`
	Collana    *string `json:"collana"`
	Units      int     `json:"units"`
	Week       string  `json:"week,omitempty"`
	SourceFile string  `json:"source_file,omitempty"`
}

// GroupDTO summarises one constrained dimension
type GroupDTO struct {
	TotalUnits int `json:"total_units"`
	Items      int `json:"items"`
}

// ViewDTO is the filtered table with its options
type ViewDTO struct {
	Week       string                        `json:"selected_week"`
	Selection  map[models.Dimension][]string `json:"selection"`
	Weeks      []string                      `json:"weeks"`
	Options    map[models.Dimension][]string `json:"options"`
	HasCollana bool                          `json:"has_collana"`
	TotalUnits int                           `json:"total_units"`
	Groups     map[models.Dimension]GroupDTO `json:"groups,omitempty"`
	Records    []RecordDTO                   `json:"records,omitempty"`
}

// RankedDTO is one bar of a chart
type RankedDTO struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

// TopDTO holds the three ranking charts
type TopDTO struct {
	Titles     []RankedDTO `json:"titles"`
	Authors    []RankedDTO `json:"authors"`
	Publishers []RankedDTO `json:"publishers"`
}

// PointDTO is one point of a weekly line
type PointDTO struct {
	Week  string `json:"week"`
	Item  string `json:"item"`
	Units int    `json:"units"`
}

// SeriesDTO holds the weekly line charts
type SeriesDTO struct {
	By           models.Dimension `json:"by,omitempty"`
	Totals       []PointDTO       `json:"totals,omitempty"`
	Books        []PointDTO       `json:"books,omitempty"`
	PublisherTop []PointDTO       `json:"publisher_top,omitempty"`
}

// TrendDTO is one title's change for one week
type TrendDTO struct {
	Title         string   `json:"title"`
	Collana       *string  `json:"collana"`
	Week          string   `json:"week"`
	Units         int      `json:"units"`
	PreviousUnits *int     `json:"previous_units"`
	PercentChange *float64 `json:"percent_change"`
}

// HeatmapDTO is the label × week matrix. Cells hold nil where no change was computed.
type HeatmapDTO struct {
	Rows    []string     `json:"rows"`
	Columns []string     `json:"columns"`
	Percent [][]*float64 `json:"percent"`
	Units   [][]int      `json:"units"`
	Totals  []int        `json:"totals"`
}

// DuplicateDTO is one offending key of a data integrity error
type DuplicateDTO struct {
	Title   string  `json:"title"`
	Collana *string `json:"collana"`
	Week    string  `json:"week"`
	Count   int     `json:"count"`
}

func weekDTOs(weeks []models.Week) []WeekDTO {
	out := make([]WeekDTO, len(weeks))
	for i, w := range weeks {
		out[i] = WeekDTO{Number: w.Number, Label: w.Label}
	}
	return out
}

func recordDTOs(rows []models.SalesRecord) []RecordDTO {
	out := make([]RecordDTO, len(rows))
	for i, r := range rows {
		out[i] = RecordDTO{
			Title:      r.Title,
			Author:     r.Author,
			Publisher:  r.Publisher,
			Collana:    r.Collana,
			Units:      r.Units,
			Week:       r.Week.Label,
			SourceFile: r.SourceFile,
		}
	}
	return out
}

func viewDTO(v *dashboard.View, withRecords bool) ViewDTO {
	dto := ViewDTO{
		Week:       v.Dashboard.Week,
		Selection:  v.Dashboard.Selection,
		Weeks:      v.Options.Weeks,
		Options:    v.Options.Values,
		HasCollana: v.HasCollana,
		TotalUnits: v.TotalUnits,
		Groups:     make(map[models.Dimension]GroupDTO, len(v.Groups)),
	}
	for dim, g := range v.Groups {
		dto.Groups[dim] = GroupDTO{TotalUnits: g.TotalUnits, Items: g.Items}
	}
	if withRecords {
		dto.Records = recordDTOs(v.Rows)
	}
	return dto
}

func rankedDTOs(entries []models.RankedEntry) []RankedDTO {
	out := make([]RankedDTO, len(entries))
	for i, e := range entries {
		out[i] = RankedDTO{Name: e.Name, Units: e.Units}
	}
	return out
}

func pointDTOs(points []models.SeriesPoint) []PointDTO {
	if len(points) == 0 {
		return nil
	}
	out := make([]PointDTO, len(points))
	for i, p := range points {
		out[i] = PointDTO{Week: p.Week.Label, Item: p.Item, Units: p.Units}
	}
	return out
}

func seriesDTO(s *dashboard.Series) SeriesDTO {
	dto := SeriesDTO{PublisherTop: pointDTOs(s.PublisherTop)}
	if w := s.Weekly; w != nil {
		dto.By = w.By
		dto.Totals = pointDTOs(w.Totals)
		dto.Books = pointDTOs(w.Books)
	}
	return dto
}

func trendDTOs(rows []models.TrendRow) []TrendDTO {
	out := make([]TrendDTO, len(rows))
	for i, r := range rows {
		out[i] = TrendDTO{
			Title:         r.Title,
			Collana:       r.Collana,
			Week:          r.Week.Label,
			Units:         r.Units,
			PreviousUnits: r.PreviousUnits,
			PercentChange: r.PercentChange,
		}
	}
	return out
}

func heatmapDTO(h *models.Heatmap) HeatmapDTO {
	cols := make([]string, len(h.Columns))
	for i, w := range h.Columns {
		cols[i] = w.Label
	}
	return HeatmapDTO{Rows: h.Rows, Columns: cols, Percent: h.Percent, Units: h.Units, Totals: h.Totals}
}

func duplicateDTOs(keys []models.DuplicateKey) []DuplicateDTO {
	out := make([]DuplicateDTO, len(keys))
	for i, k := range keys {
		out[i] = DuplicateDTO{Title: k.Title, Collana: k.Collana, Week: k.Week.Label, Count: k.Count}
	}
	return out
}
