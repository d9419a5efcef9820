package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/store"
	"github.com/nodescope/area-compare/pkg/analysis"
	"github.com/nodescope/area-compare/pkg/analysis/mocks"
)

var testProfile = model.Profile{Minutes: 15, Velocity: 5}

func ptr(v float64) *float64 { return &v }

func neighbourhood(id string, lat float64) analysis.Neighbourhood {
	return analysis.Neighbourhood{
		ID:           analysis.ID(id),
		Coordinates:  [][]model.LatLon{{{lat, 7}, {lat, 7.01}, {lat + 0.01, 7.01}, {lat + 0.01, 7}}},
		SamplePoints: []model.LatLon{{lat + 0.005, 7.005}},
	}
}

type testServer struct {
	handler http.Handler
	client  *mocks.MockClient
	ctrl    *compare.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	client := mocks.NewMockClient(t)
	layer := mapview.NewRecorder()
	ctrl, err := compare.New(client, compare.Options{Layer: layer, Store: st, Profile: testProfile})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	return &testServer{
		handler: NewRouter(ctrl, Options{Layer: layer, Store: st}),
		client:  client,
		ctrl:    ctrl,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) loadCity(t *testing.T) {
	t.Helper()
	ts.client.On("ListNeighbourhoods", mock.Anything, "Torino").
		Return([]analysis.Neighbourhood{neighbourhood("a", 45.0), neighbourhood("b", 45.1), neighbourhood("c", 45.2)}, nil).Once()
	rr := ts.do(t, http.MethodPost, "/api/city", map[string]string{"city": "torino"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestLoadCity(t *testing.T) {
	ts := newTestServer(t)
	ts.loadCity(t)

	rr := ts.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap struct {
		City  string `json:"city"`
		Areas []struct {
			ID string `json:"id"`
		} `json:"areas"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "Torino", snap.City)
	assert.Len(t, snap.Areas, 3)

	rr = ts.do(t, http.MethodGet, "/api/map", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"FeatureCollection"`)
}

func TestLoadCity_MissingCity(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPost, "/api/city", map[string]string{"city": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "city is required", errorBody(t, rr))
}

func TestCompare_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.loadCity(t)

	rr := ts.do(t, http.MethodPost, "/api/compare", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, compare.ErrSelectionSize.Error(), errorBody(t, rr))

	rr = ts.do(t, http.MethodPost, "/api/areas/zzz/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	for _, id := range []string{"a", "b"} {
		rr = ts.do(t, http.MethodPost, "/api/areas/"+id+"/toggle", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr = ts.do(t, http.MethodPost, "/api/areas/c/toggle", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, errorBody(t, rr), "at most 2")
	assert.Contains(t, rr.Body.String(), `"selection":["a","b"]`)

	ts.client.AssertNotCalled(t, "ComputePointMetrics", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompare_FullFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.loadCity(t)
	for _, id := range []string{"a", "b"} {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/areas/"+id+"/toggle", nil).Code)
	}
	ts.client.On("ComputePointMetrics", mock.Anything, mock.Anything, testProfile).
		Return(&model.PointMetrics{ProximityScore: ptr(0.4), DensityScore: ptr(0.6)}, nil).Twice()

	rr := ts.do(t, http.MethodPost, "/api/compare", map[string]any{"profile": testProfile})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	require.Eventually(t, func() bool { return ts.ctrl.Last() != nil }, 5*time.Second, 10*time.Millisecond)

	rr = ts.do(t, http.MethodGet, "/api/chart/svg", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "radar-chart")

	rr = ts.do(t, http.MethodGet, "/api/comparison", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"label":"area 1"`)

	rr = ts.do(t, http.MethodGet, "/api/comparison/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "dimension: Proximity")

	rr = ts.do(t, http.MethodGet, "/api/comparison/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")), "xlsx is a zip")

	rr = ts.do(t, http.MethodGet, "/api/comparison/export?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// The run status lands just after the charts update.
	var runs []model.Run
	require.Eventually(t, func() bool {
		rr := ts.do(t, http.MethodGet, "/api/runs?status=complete", nil)
		return rr.Code == http.StatusOK && json.Unmarshal(rr.Body.Bytes(), &runs) == nil && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	rr = ts.do(t, http.MethodGet, "/api/runs/"+runs[0].ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"complete"`)
}

func TestComparison_NoneYet(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/comparison", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/comparison/export", nil).Code)
}

func TestChart_KindAndToggle(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/chart/svg?kind=parallel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "parallel-coordinates")

	rr = ts.do(t, http.MethodGet, "/api/chart/svg?kind=pie", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/chart/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"active_chart":"parallel"`)

	rr = ts.do(t, http.MethodGet, "/api/chart/png", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
}

func TestChart_Hover(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/chart/hover", map[string]any{"series": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/chart/hover", map[string]any{"series": 1, "x": 40, "y": 60})
	require.Equal(t, http.StatusNoContent, rr.Code)
	svg := ts.do(t, http.MethodGet, "/api/chart/svg", nil).Body.String()
	assert.Contains(t, svg, `class="tooltip"`)
	assert.Contains(t, svg, "dimmed")

	rr = ts.do(t, http.MethodDelete, "/api/chart/hover", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	svg = ts.do(t, http.MethodGet, "/api/chart/svg", nil).Body.String()
	assert.NotContains(t, svg, "tooltip")
	assert.NotContains(t, svg, "dimmed")
}

func TestEvents(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/events", map[string]string{"type": "toggle_chart"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"active_chart":"parallel"`)

	rr = ts.do(t, http.MethodPost, "/api/events", map[string]string{"type": "launch"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/events", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "invalid request body")
}

func TestRuns(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/runs/missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/runs?limit=-1", nil).Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
