package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookstats/internal/analysis"
	"bookstats/internal/cache"
	"bookstats/internal/dashboard"
	"bookstats/internal/ingest"
)

type testServer struct {
	dir    string
	server *Server
}

func setupTestServer(t *testing.T, files map[string]string) *testServer {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	logger := zap.NewNop()
	svc := dashboard.NewService(
		dashboard.Options{DataDir: dir, FocusPublisher: "Adelphi", Gap: analysis.GapAnyPrevious},
		logger,
		ingest.NewLoader(logger, 2, ""),
		cache.NewStore(),
		nil,
	)
	return &testServer{dir: dir, server: New(svc, logger)}
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) Envelope {
	t.Helper()
	env := Envelope{Data: data}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

var twoWeeks = map[string]string{
	"Classifica week 1.csv": "Rank,Title,Author,Publisher,Units\n1,A,Autore Uno,Adelphi,100\n2,B,Autore Due,Einaudi,30\n",
	"Classifica week 2.csv": "Rank,Title,Author,Publisher,Units\n1,A,Autore Uno,Adelphi,150\n2,B,Autore Due,Einaudi,40\n",
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, nil)
	rec := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestWeeks(t *testing.T) {
	files := map[string]string{"Classifica week 3.csv": "Title,Units\nA,1\n"}
	for k, v := range twoWeeks {
		files[k] = v
	}
	ts := setupTestServer(t, files)

	var data struct {
		Weeks    []WeekDTO `json:"weeks"`
		Problems []string  `json:"problems"`
	}
	rec := ts.get(t, "/api/weeks")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec, &data)
	assert.True(t, env.Success)
	assert.Equal(t, []WeekDTO{{1, "Settimana 1"}, {2, "Settimana 2"}}, data.Weeks)
	require.Len(t, data.Problems, 1)
	assert.Contains(t, data.Problems[0], "Classifica week 3.csv")
}

func TestRecords_Filtered(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	var data ViewDTO
	rec := ts.get(t, "/api/records?selected_week=Settimana+2&publisher=Einaudi&publisher=Unknown")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &data)

	assert.Equal(t, "Settimana 2", data.Week)
	assert.Equal(t, []string{"Einaudi"}, data.Selection["publisher"])
	assert.Equal(t, 40, data.TotalUnits)
	require.Len(t, data.Records, 1)
	assert.Equal(t, "B", data.Records[0].Title)
	assert.Equal(t, GroupDTO{TotalUnits: 40, Items: 1}, data.Groups["publisher"])
}

func TestRecordsCSV(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	rec := ts.get(t, "/api/records.csv?selected_week=Settimana+1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="dati_filtrati.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t,
		"title,author,publisher,units,week,source_file\n"+
			"A,Autore Uno,Adelphi,100,Settimana 1,Classifica week 1.csv\n"+
			"B,Autore Due,Einaudi,30,Settimana 1,Classifica week 1.csv\n",
		rec.Body.String())
}

func TestTop(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	var data TopDTO
	rec := ts.get(t, "/api/charts/top")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &data)
	assert.Equal(t, []RankedDTO{{"A", 250}, {"B", 70}}, data.Titles)
	assert.Equal(t, []RankedDTO{{"Adelphi", 250}, {"Einaudi", 70}}, data.Publishers)
}

func TestSeries(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	var data SeriesDTO
	rec := ts.get(t, "/api/series?author=Autore+Uno")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &data)
	assert.EqualValues(t, "author", data.By)
	assert.Equal(t, []PointDTO{{"Settimana 1", "Autore Uno", 100}, {"Settimana 2", "Autore Uno", 150}}, data.Totals)
	assert.Equal(t, []PointDTO{{"Settimana 1", "A", 100}, {"Settimana 2", "A", 150}}, data.Books)
}

func TestTrendAndHeatmap(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	var trend struct {
		Focus string     `json:"focus_publisher"`
		Rows  []TrendDTO `json:"rows"`
	}
	rec := ts.get(t, "/api/trend")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &trend)
	assert.Equal(t, "Adelphi", trend.Focus)
	require.Len(t, trend.Rows, 2)
	assert.Nil(t, trend.Rows[0].PercentChange)
	require.NotNil(t, trend.Rows[1].PercentChange)
	assert.Equal(t, 50.0, *trend.Rows[1].PercentChange)

	var hm HeatmapDTO
	rec = ts.get(t, "/api/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &hm)
	assert.Equal(t, []string{"A"}, hm.Rows)
	assert.Equal(t, []string{"Settimana 1", "Settimana 2"}, hm.Columns)
	assert.Nil(t, hm.Percent[0][0])
	assert.Equal(t, []int{250}, hm.Totals)

	rec = ts.get(t, "/api/trend.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A,,Settimana 2,150,100,50.00\n")
}

func TestHeatmap_NoData(t *testing.T) {
	ts := setupTestServer(t, map[string]string{
		"Classifica week 1.csv": "Rank,Title,Publisher,Units\n1,A,Adelphi,10\n",
	})

	rec := ts.get(t, "/api/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec, nil)
	assert.True(t, env.Success)
	assert.Equal(t, MessageNoData, env.Message)
}

func TestHeatmap_Conflict(t *testing.T) {
	ts := setupTestServer(t, map[string]string{
		"Classifica week 1.csv": "Rank,Title,Author,Publisher,Units\n1,A,X,Adelphi,10\n2,A,Y,Adelphi,5\n",
		"Classifica week 2.csv": "Rank,Title,Author,Publisher,Units\n1,A,X,Adelphi,20\n",
	})

	var data struct {
		Duplicates []DuplicateDTO `json:"duplicates"`
	}
	rec := ts.get(t, "/api/heatmap")
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec, &data)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "duplicate keys")
	require.Len(t, data.Duplicates, 1)
	assert.Equal(t, DuplicateDTO{Title: "A", Week: "Settimana 1", Count: 2}, data.Duplicates[0])
}

func TestRecords_UnknownWeek(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	for _, target := range []string{
		"/api/records?selected_week=Settimana+99",
		"/api/records.csv?selected_week=Settimana+99",
		"/api/charts/top?selected_week=Settimana+99",
	} {
		rec := ts.get(t, target)
		require.Equal(t, http.StatusNotFound, rec.Code, target)
		env := decode(t, rec, nil)
		assert.False(t, env.Success)
		assert.Contains(t, env.Error, "week not found")
	}
}

func TestReload(t *testing.T) {
	ts := setupTestServer(t, twoWeeks)

	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.get(t, "/api/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
