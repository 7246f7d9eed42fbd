package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstats/internal/models"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestWriteRecordsCSV(t *testing.T) {
	rows := []models.SalesRecord{
		{Rank: 1, Title: "L'avversario", Author: "Emmanuel Carrère", Publisher: "Adelphi", Collana: models.StringPtr("Fabula"), Units: 150, Week: models.NewWeek(2), SourceFile: "week 2.csv"},
		{Rank: 7, Title: "Siddharta", Author: "Hermann Hesse", Publisher: "Adelphi", Units: 40, Week: models.NewWeek(2), SourceFile: "week 2.csv"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, rows, true))

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"title", "author", "publisher", "collana", "units", "week", "source_file"},
		{"L'avversario", "Emmanuel Carrère", "Adelphi", "Fabula", "150", "Settimana 2", "week 2.csv"},
		{"Siddharta", "Hermann Hesse", "Adelphi", "", "40", "Settimana 2", "week 2.csv"},
	}, lines)
}

func TestWriteRecordsCSV_WithoutCollana(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, []models.SalesRecord{{Title: "A", Units: 3}}, false))
	assert.Equal(t, "title,author,publisher,units,week,source_file\nA,,,3,,\n", buf.String())
}

func TestWriteTrendCSV(t *testing.T) {
	rows := []models.TrendRow{
		{Title: "A", Week: models.NewWeek(1), Units: 100},
		{Title: "A", Week: models.NewWeek(2), Units: 150, PreviousUnits: intPtr(100), PercentChange: floatPtr(50)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrendCSV(&buf, rows))
	assert.Equal(t,
		"title,collana,week,units,previous_units,percent_change\n"+
			"A,,Settimana 1,100,,\n"+
			"A,,Settimana 2,150,100,50.00\n",
		buf.String())
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "-", FormatPercent(nil))
	assert.Equal(t, "+50.0%", FormatPercent(floatPtr(50)))
	assert.Equal(t, "-20.0%", FormatPercent(floatPtr(-20)))
	assert.Equal(t, "+0.0%", FormatPercent(floatPtr(0)))
}

func TestTableRender(t *testing.T) {
	tbl := NewTable("", "name", "units")
	assert.Empty(t, tbl.Render(DefaultStyles()))

	tbl.AddRow("Adelphi", "190")
	out := tbl.Render(DefaultStyles())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "name")
	assert.Contains(t, lines[2], "Adelphi")
	assert.Contains(t, lines[2], "190")
}

func TestHeatmapRender(t *testing.T) {
	h := &models.Heatmap{
		Rows:    []string{"A"},
		Columns: []models.Week{models.NewWeek(1), models.NewWeek(2)},
		Percent: [][]*float64{{nil, floatPtr(50)}},
		Units:   [][]int{{100, 150}},
		Totals:  []int{250},
	}
	out := Heatmap(h, DefaultStyles())
	assert.Contains(t, out, "Settimana 2")
	assert.Contains(t, out, "+50.0%")
	assert.Contains(t, out, "250")
}

func TestRanking(t *testing.T) {
	out := Ranking("Top publishers", []models.RankedEntry{{Name: "Adelphi", Units: 190}, {Name: "Einaudi", Units: 95}}, DefaultStyles())
	assert.Contains(t, out, "Top publishers")
	assert.Contains(t, out, "Einaudi")

	assert.Contains(t, Ranking("Top authors", nil, DefaultStyles()), "not enough data")
}

func TestRecordsAndGroupsRender(t *testing.T) {
	rows := []models.SalesRecord{
		{Title: "Siddharta", Author: "Hermann Hesse", Publisher: "Adelphi", Collana: models.StringPtr("Gli Adelphi"), Units: 120},
		{Title: "Demian", Author: "Hermann Hesse", Publisher: "Adelphi", Units: 30},
	}
	out := Records(rows, true, DefaultStyles())
	assert.Contains(t, out, "2 titles, 150 units")
	assert.Contains(t, out, "Gli Adelphi")

	groups := map[models.Dimension]*models.GroupStats{
		models.DimAuthor: {TotalUnits: 150, Items: 2},
	}
	sel := models.Selection{models.DimAuthor: {"Hermann Hesse"}}
	out = Groups(groups, sel, DefaultStyles())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Contains(t, lines[len(lines)-1], "Hermann Hesse")
	assert.Contains(t, lines[len(lines)-1], "150")
}
