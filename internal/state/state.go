// Package state carries the dashboard's week and filter choices between
// requests as plain values, and converts them to and from URL query strings.
package state

import (
	"net/url"
	"sort"

	"bookstats/internal/analysis"
	"bookstats/internal/models"
)

// WeekKey is the query parameter holding the selected week label
const WeekKey = "selected_week"

// Dashboard is the user's current view: one week (or all) and the filters
type Dashboard struct {
	Week      string
	Selection models.Selection
}

// Options lists what the user may pick from
type Options struct {
	Weeks  []string
	Values map[models.Dimension][]string
}

// Default is the all-weeks view with no filters
func Default() Dashboard {
	return Dashboard{Week: models.AllWeeks, Selection: models.Selection{}}
}

// FromQuery reads a dashboard from query parameters. Dimensions may repeat
// (publisher=A&publisher=B). Values are not validated here; see Sanitize.
func FromQuery(q url.Values) Dashboard {
	d := Default()
	if w := q.Get(WeekKey); w != "" {
		d.Week = w
	}
	for _, dim := range models.Dimensions {
		vals := nonEmpty(q[string(dim)])
		if len(vals) > 0 {
			d.Selection[dim] = vals
		}
	}
	return d
}

// Query encodes the dashboard; the default week and empty dimensions are omitted
func (d Dashboard) Query() url.Values {
	q := url.Values{}
	if d.Week != "" && d.Week != models.AllWeeks {
		q.Set(WeekKey, d.Week)
	}
	for _, dim := range models.Dimensions {
		for _, v := range d.Selection[dim] {
			q.Add(string(dim), v)
		}
	}
	return q
}

// OptionsFor collects the selectable weeks and the distinct dimension values
// of rows
func OptionsFor(ds *models.Dataset, rows []models.SalesRecord) Options {
	opts := Options{
		Weeks:  []string{models.AllWeeks},
		Values: make(map[models.Dimension][]string, len(models.Dimensions)),
	}
	if ds != nil {
		for _, w := range ds.Weeks {
			opts.Weeks = append(opts.Weeks, w.Label)
		}
	}
	for _, dim := range models.Dimensions {
		opts.Values[dim] = analysis.DistinctValues(rows, dim)
	}
	return opts
}

// Sanitize drops every choice that is not among opts. An unknown week falls
// back to all weeks.
func (d Dashboard) Sanitize(opts Options) Dashboard {
	out := Dashboard{Week: models.AllWeeks, Selection: models.Selection{}}
	for _, w := range opts.Weeks {
		if w == d.Week {
			out.Week = w
			break
		}
	}
	for dim, vals := range d.Selection {
		allowed := opts.Values[dim]
		var kept []string
		for _, v := range vals {
			if contains(allowed, v) && !contains(kept, v) {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			out.Selection[dim] = kept
		}
	}
	return out
}

// Dimensions returns the constrained dimensions in display order
func (d Dashboard) Dimensions() []models.Dimension {
	var dims []models.Dimension
	for _, dim := range models.Dimensions {
		if len(d.Selection[dim]) > 0 {
			dims = append(dims, dim)
		}
	}
	return dims
}

func nonEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// contains reports membership in a sorted or unsorted slice
func contains(vals []string, v string) bool {
	if sort.StringsAreSorted(vals) {
		i := sort.SearchStrings(vals, v)
		return i < len(vals) && vals[i] == v
	}
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
