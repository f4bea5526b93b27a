package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockanalyzer/pkg/analysis"
	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/storage"
	"stockanalyzer/pkg/updater"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage(storage.MemoryStorageConfig{})
	t.Cleanup(func() { store.Close() })
	return NewServer(Config{Mode: "test"}, store, nil), store
}

func seedResults(t *testing.T, store *storage.MemoryStorage) {
	t.Helper()
	ctx := context.Background()
	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for day, code := range []string{"sh.600000", "sh.600000", "sz.000001"} {
		require.NoError(t, store.SaveResult(ctx, core.AnalysisResult{
			Code:         code,
			AnalysisDate: date.AddDate(0, 0, day),
			Strategy:     "traditional_technical_analysis",
			Signals:      map[string]core.Signal{core.FamilyMACD: core.SignalBuy},
			Score:        70,
			Rating:       core.RatingBuy,
			RiskLevel:    core.RiskMedium,
		}))
	}
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.routes().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetResults(t *testing.T) {
	s, store := newTestServer(t)
	seedResults(t, store)

	w := doRequest(s, http.MethodGet, "/api/v1/results/sh.600000")
	require.Equal(t, http.StatusOK, w.Code)

	var results []core.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "sh.600000", results[0].Code)
	assert.Equal(t, core.RatingBuy, results[0].Rating)
}

func TestGetResultsNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/results/sh.999999")
	require.Equal(t, http.StatusNotFound, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error)
}

func TestListResultsWithFilters(t *testing.T) {
	s, store := newTestServer(t)
	seedResults(t, store)

	w := doRequest(s, http.MethodGet, "/api/v1/results?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count   int                   `json:"count"`
		Results []core.AnalysisResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	w = doRequest(s, http.MethodGet, "/api/v1/results?start=2024-06-12&end=2024-06-12")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "sz.000001", body.Results[0].Code)
}

func TestListResultsBadQuery(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{
		"/api/v1/results?start=20240612",
		"/api/v1/results?end=not-a-date",
		"/api/v1/results?limit=-1",
		"/api/v1/results?limit=abc",
	} {
		w := doRequest(s, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, "非法参数 %s 应该返回400", path)
	}
}

func TestListPerformance(t *testing.T) {
	s, store := newTestServer(t)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SavePerformance(context.Background(), core.PerformanceRecord{
		Strategy:     "traditional_technical_analysis",
		StartDate:    start,
		EndDate:      start.AddDate(0, 3, 0),
		TotalReturn:  0.08,
		AnnualReturn: 0.35,
	}))

	w := doRequest(s, http.MethodGet, "/api/v1/performance?strategy=traditional_technical_analysis")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count   int                      `json:"count"`
		Records []core.PerformanceRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.InDelta(t, 0.35, body.Records[0].AnnualReturn, 1e-9)
}

func TestUpdateEndpointsWithoutUpdater(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/update")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "未配置更新器时返回503")

	w = doRequest(s, http.MethodGet, "/api/v1/update/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTriggerUpdateFailsFast(t *testing.T) {
	store := storage.NewMemoryStorage(storage.MemoryStorageConfig{})
	defer store.Close()

	// 股票池为空，更新同步快速失败
	u := updater.New(updater.Config{}, nil, nil, analysis.NewEngine(analysis.DefaultConfig()), store)
	s := NewServer(Config{Mode: "test"}, store, u)

	w := doRequest(s, http.MethodPost, "/api/v1/update")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/update/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Current *updater.Task   `json:"current"`
		Recent  []*updater.Task `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body.Current)
	require.Len(t, body.Recent, 1)
	assert.Equal(t, updater.TaskStatusFailed, body.Recent[0].Status)
}

func TestCORSPreflightRequest(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodOptions, "/api/v1/results")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
