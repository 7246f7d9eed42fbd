package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bookstats/internal/analysis"
	"bookstats/internal/models"
)

// Styles used by the terminal renderers
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Rise    lipgloss.Style
	Fall    lipgloss.Style
	Flat    lipgloss.Style
	Missing lipgloss.Style
}

// DefaultStyles returns the palette used by the CLI
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")),
		Rise:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#8BC34A")),
		Fall:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#e53935")),
		Flat:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#FFC107")),
		Missing: lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#6b7280")),
	}
}

// Table is a static table rendered with lipgloss
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// cellStyle optionally overrides the style of one body cell
	cellStyle func(row, col int) *lipgloss.Style
}

// NewTable creates an empty table
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render draws the table; an empty table renders as an empty string
func (t *Table) Render(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}
	// padding
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	sep := styles.Muted.Render("|")
	for i, h := range t.Headers {
		sb.WriteString(styles.Header.Width(widths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	total := len(widths) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for r, row := range t.Rows {
		for i, c := range row {
			if i >= len(widths) {
				break
			}
			style := styles.Cell
			if t.cellStyle != nil {
				if s := t.cellStyle(r, i); s != nil {
					style = *s
				}
			}
			sb.WriteString(style.Width(widths[i]).Render(c))
			if i < len(widths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Ranking renders a top-N chart as a table with a proportional bar
func Ranking(title string, entries []models.RankedEntry, styles Styles) string {
	if len(entries) == 0 {
		return styles.Muted.Render(title+": not enough data") + "\n"
	}
	maxUnits := entries[0].Units
	t := NewTable(title, "#", "name", "units", "")
	for i, e := range entries {
		bar := ""
		if maxUnits > 0 {
			bar = strings.Repeat("■", e.Units*20/maxUnits)
		}
		t.AddRow(strconv.Itoa(i+1), e.Name, strconv.Itoa(e.Units), bar)
	}
	return t.Render(styles)
}

// Records renders sales rows
func Records(rows []models.SalesRecord, withCollana bool, styles Styles) string {
	headers := []string{"title", "author", "publisher"}
	if withCollana {
		headers = append(headers, "collana")
	}
	headers = append(headers, "units")

	t := NewTable(fmt.Sprintf("%d titles, %d units", len(rows), analysis.TotalUnits(rows)), headers...)
	for _, r := range rows {
		cells := []string{r.Title, r.Author, r.Publisher}
		if withCollana {
			cells = append(cells, r.CollanaOr(""))
		}
		cells = append(cells, strconv.Itoa(r.Units))
		t.AddRow(cells...)
	}
	return t.Render(styles)
}

// Groups renders the totals of each filtered dimension
func Groups(groups map[models.Dimension]*models.GroupStats, sel models.Selection, styles Styles) string {
	t := NewTable("Selection totals", "filter", "values", "units", "titles")
	for _, dim := range models.Dimensions {
		g := groups[dim]
		if g == nil {
			continue
		}
		t.AddRow(string(dim), strings.Join(sel[dim], ", "), strconv.Itoa(g.TotalUnits), strconv.Itoa(g.Items))
	}
	return t.Render(styles)
}

// Trend renders trend rows with coloured changes
func Trend(rows []models.TrendRow, styles Styles) string {
	t := NewTable("Week-over-week change", "title", "collana", "week", "units", "previous", "change")
	for _, r := range rows {
		prev := "-"
		if r.PreviousUnits != nil {
			prev = strconv.Itoa(*r.PreviousUnits)
		}
		collana := ""
		if r.Collana != nil {
			collana = *r.Collana
		}
		t.AddRow(r.Title, collana, r.Week.Label, strconv.Itoa(r.Units), prev, FormatPercent(r.PercentChange))
	}
	t.cellStyle = func(row, col int) *lipgloss.Style {
		if col != 5 {
			return nil
		}
		return changeStyle(rows[row].PercentChange, styles)
	}
	return t.Render(styles)
}

// Heatmap renders the percent-change matrix, one row per label
func Heatmap(h *models.Heatmap, styles Styles) string {
	headers := []string{"title"}
	for _, w := range h.Columns {
		headers = append(headers, w.Label)
	}
	headers = append(headers, "total")

	t := NewTable("Percent change by week", headers...)
	for i, label := range h.Rows {
		cells := []string{label}
		for j := range h.Columns {
			cells = append(cells, FormatPercent(h.Percent[i][j]))
		}
		cells = append(cells, strconv.Itoa(h.Totals[i]))
		t.AddRow(cells...)
	}
	t.cellStyle = func(row, col int) *lipgloss.Style {
		if col == 0 || col > len(h.Columns) {
			return nil
		}
		return changeStyle(h.Percent[row][col-1], styles)
	}
	return t.Render(styles)
}

// FormatPercent formats a change as "+12.5%", or "-" when undefined
func FormatPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *p)
}

func changeStyle(p *float64, styles Styles) *lipgloss.Style {
	switch {
	case p == nil:
		return &styles.Missing
	case *p > 0:
		return &styles.Rise
	case *p < 0:
		return &styles.Fall
	}
	return &styles.Flat
}
