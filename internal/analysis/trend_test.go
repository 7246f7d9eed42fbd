package analysis

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstats/internal/models"
)

func rec(title string, week, units int) models.SalesRecord {
	return models.SalesRecord{
		Title:     title,
		Author:    "Author of " + title,
		Publisher: "Adelphi",
		Units:     units,
		Week:      models.NewWeek(week),
	}
}

func withCollana(r models.SalesRecord, c string) models.SalesRecord {
	r.Collana = models.StringPtr(c)
	return r
}

func intPtr(i int) *int { return &i }
func floatPtr(f float64) *float64 { return &f }
func pctOf(r models.TrendRow) any {
	if r.PercentChange == nil {
		return nil
	}
	return *r.PercentChange
}

func TestComputeTrend_PercentChange(t *testing.T) {
	rows := []models.SalesRecord{
		rec("A", 3, 12),
		rec("A", 1, 10),
		rec("A", 2, 15),
	}

	trend, err := ComputeTrend(rows, TrendOptions{})
	require.NoError(t, err)
	require.Len(t, trend, 3)

	assert.Equal(t, 1, trend[0].Week.Number)
	assert.Nil(t, trend[0].PreviousUnits)
	assert.Nil(t, trend[0].PercentChange)

	assert.Equal(t, 10, *trend[1].PreviousUnits)
	assert.InDelta(t, 50.0, *trend[1].PercentChange, 1e-9)

	assert.Equal(t, 15, *trend[2].PreviousUnits)
	assert.InDelta(t, -20.0, *trend[2].PercentChange, 1e-9)
}

func TestComputeTrend_ZeroPrevious(t *testing.T) {
	rows := []models.SalesRecord{rec("A", 1, 0), rec("A", 2, 7)}

	trend, err := ComputeTrend(rows, TrendOptions{})
	require.NoError(t, err)
	require.Len(t, trend, 2)
	require.NotNil(t, trend[1].PreviousUnits)
	assert.Equal(t, 0, *trend[1].PreviousUnits)
	assert.Nil(t, trend[1].PercentChange, "previous of zero must not divide")
}

func TestComputeTrend_SumsRowsWithinWeek(t *testing.T) {
	rows := []models.SalesRecord{rec("A", 1, 4), rec("A", 1, 6), rec("A", 2, 20)}

	trend, err := ComputeTrend(rows, TrendOptions{})
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, 10, trend[0].Units)
	assert.InDelta(t, 100.0, *trend[1].PercentChange, 1e-9)
}

func TestComputeTrend_WeekOrderIsNumeric(t *testing.T) {
	rows := []models.SalesRecord{rec("A", 10, 30), rec("A", 9, 20)}

	trend, err := ComputeTrend(rows, TrendOptions{})
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "Settimana 9", trend[0].Week.Label)
	assert.Equal(t, "Settimana 10", trend[1].Week.Label)
	assert.InDelta(t, 50.0, *trend[1].PercentChange, 1e-9)
}

func TestComputeTrend_GapPolicy(t *testing.T) {
	rows := []models.SalesRecord{rec("A", 1, 10), rec("A", 4, 20), rec("A", 5, 10)}

	anyPrev, err := ComputeTrend(rows, TrendOptions{Gap: GapAnyPrevious})
	require.NoError(t, err)
	adjacent, err := ComputeTrend(rows, TrendOptions{Gap: GapAdjacentOnly})
	require.NoError(t, err)

	want := []any{nil, 100.0, -50.0}
	got := []any{pctOf(anyPrev[0]), pctOf(anyPrev[1]), pctOf(anyPrev[2])}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("any-previous mismatch (-want +got):\n%s", diff)
	}

	want = []any{nil, nil, -50.0}
	got = []any{pctOf(adjacent[0]), pctOf(adjacent[1]), pctOf(adjacent[2])}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("adjacent-only mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, adjacent[1].PreviousUnits)
}

func TestComputeTrend_SingleWeekTitle(t *testing.T) {
	rows := []models.SalesRecord{rec("A", 1, 10), rec("B", 2, 5), rec("A", 2, 11)}

	trend, err := ComputeTrend(rows, TrendOptions{})
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Equal(t, "B", trend[2].Title)
	assert.Nil(t, trend[2].PercentChange)
}

func TestComputeTrend_ByCollana(t *testing.T) {
	rows := []models.SalesRecord{
		withCollana(rec("A", 1, 10), "Fabula"),
		withCollana(rec("A", 2, 20), "Fabula"),
		withCollana(rec("A", 1, 5), "Gli Adelphi"),
		withCollana(rec("A", 2, 4), "Gli Adelphi"),
		rec("A", 2, 3),
	}

	trend, err := ComputeTrend(rows, TrendOptions{ByCollana: true})
	require.NoError(t, err)
	require.Len(t, trend, 5)

	// Series without a label sort first
	assert.Nil(t, trend[0].Collana)
	assert.Nil(t, trend[0].PercentChange)
	assert.Equal(t, "Fabula", *trend[1].Collana)
	assert.InDelta(t, 100.0, *trend[2].PercentChange, 1e-9)
	assert.Equal(t, "Gli Adelphi", *trend[3].Collana)
	assert.InDelta(t, -20.0, *trend[4].PercentChange, 1e-9)
}

func TestComputeTrend_DuplicateKeys(t *testing.T) {
	a := rec("A", 1, 10)
	b := rec("A", 1, 12)
	b.Author = "Someone Else"
	rows := []models.SalesRecord{a, b, rec("A", 2, 5), rec("B", 1, 1)}

	trend, err := ComputeTrend(rows, TrendOptions{})
	assert.Nil(t, trend)

	var integrity *models.DataIntegrityError
	require.True(t, errors.As(err, &integrity), "expected DataIntegrityError, got %v", err)
	require.Len(t, integrity.Keys, 1)
	assert.Equal(t, "A", integrity.Keys[0].Title)
	assert.Equal(t, 1, integrity.Keys[0].Week.Number)
	assert.Equal(t, 2, integrity.Keys[0].Count)
	assert.Equal(t, []string{"A"}, integrity.Titles())
}

func TestPercentChange(t *testing.T) {
	assert.Nil(t, PercentChange(5, 0))
	assert.Nil(t, PercentChange(5, -1))
	assert.Equal(t, floatPtr(-100), PercentChange(0, 8))
}

func TestParseGapPolicy(t *testing.T) {
	p, err := ParseGapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, GapAnyPrevious, p)

	p, err = ParseGapPolicy(" Adjacent-Only ")
	require.NoError(t, err)
	assert.Equal(t, GapAdjacentOnly, p)

	_, err = ParseGapPolicy("weekly")
	assert.Error(t, err)
}

func TestBuildHeatmap(t *testing.T) {
	rows := []models.SalesRecord{
		rec("Small", 1, 2), rec("Small", 2, 4),
		rec("Big", 1, 100), rec("Big", 2, 50), rec("Big", 3, 75),
	}
	trend, err := ComputeTrend(rows, TrendOptions{})
	require.NoError(t, err)

	hm, err := BuildHeatmap(trend, HeatmapOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Big", "Small"}, hm.Rows, "best sellers first")
	require.Len(t, hm.Columns, 3)
	assert.Equal(t, []int{225, 6}, hm.Totals)

	assert.Nil(t, hm.Percent[0][0])
	assert.Equal(t, 0.0, hm.Cell(0, 0))
	assert.InDelta(t, -50.0, hm.Cell(0, 1), 1e-9)
	assert.InDelta(t, 50.0, hm.Cell(0, 2), 1e-9)
	assert.InDelta(t, 100.0, hm.Cell(1, 1), 1e-9)
	assert.Equal(t, []int{2, 4, 0}, hm.Units[1], "missing week has no units")
}

func TestBuildHeatmap_CollanaLabels(t *testing.T) {
	rows := []models.SalesRecord{
		withCollana(rec("A", 1, 10), "Fabula"), withCollana(rec("A", 2, 20), "Fabula"),
		rec("B", 1, 1), rec("B", 2, 2),
	}
	trend, err := ComputeTrend(rows, TrendOptions{ByCollana: true})
	require.NoError(t, err)

	hm, err := BuildHeatmap(trend, HeatmapOptions{WithCollana: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A (Fabula)", "B (Sconosciuta)"}, hm.Rows)

	hm, err = BuildHeatmap(trend, HeatmapOptions{WithCollana: true, Placeholder: "Unknown"})
	require.NoError(t, err)
	assert.Equal(t, "B (Unknown)", hm.Rows[1])
}

func TestBuildHeatmap_NoData(t *testing.T) {
	trend, err := ComputeTrend([]models.SalesRecord{rec("A", 1, 10), rec("B", 2, 3)}, TrendOptions{})
	require.NoError(t, err)

	_, err = BuildHeatmap(trend, HeatmapOptions{})
	assert.ErrorIs(t, err, models.ErrNoData)

	_, err = BuildHeatmap(nil, HeatmapOptions{})
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestBuildHeatmap_LabelCollision(t *testing.T) {
	trend := []models.TrendRow{
		{Title: "A", Collana: models.StringPtr("Sconosciuta"), Week: models.NewWeek(1), Units: 1},
		{Title: "A", Week: models.NewWeek(1), Units: 2, PercentChange: floatPtr(5)},
	}
	_, err := BuildHeatmap(trend, HeatmapOptions{WithCollana: true})
	var integrity *models.DataIntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestFocusRows(t *testing.T) {
	ds := models.NewDataset()
	other := rec("C", 1, 99)
	other.Publisher = "Einaudi"
	ds.Add(models.NewWeek(1), []models.SalesRecord{rec("A", 1, 10), other})
	ds.Add(models.NewWeek(2), []models.SalesRecord{rec("A", 2, 15), rec("B", 2, 3)})

	rows := FocusRows(ds, "adelphi", models.Selection{})
	assert.Len(t, rows, 3)

	rows = FocusRows(ds, "ADELPHI", models.Selection{
		models.DimTitle:     {"A"},
		models.DimPublisher: {"Einaudi"},
	})
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "A", r.Title)
	}
}

func TestTrendPreviousUnitsPointers(t *testing.T) {
	trend, err := ComputeTrend([]models.SalesRecord{rec("A", 1, 100), rec("A", 2, 150)}, TrendOptions{})
	require.NoError(t, err)

	want := []models.TrendRow{
		{Title: "A", Week: models.NewWeek(1), Units: 100},
		{Title: "A", Week: models.NewWeek(2), Units: 150, PreviousUnits: intPtr(100), PercentChange: floatPtr(50)},
	}
	if diff := cmp.Diff(want, trend); diff != "" {
		t.Errorf("trend mismatch (-want +got):\n%s", diff)
	}
}
