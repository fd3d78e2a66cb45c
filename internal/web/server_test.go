package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripfi/ysm/internal/adapter"
	"github.com/stripfi/ysm/internal/engine"
	"github.com/stripfi/ysm/internal/fixedmath"
	"github.com/stripfi/ysm/internal/tranche"
	"github.com/stripfi/ysm/internal/types"
)

func newTestServer(t *testing.T) (*WebServer, types.SeriesID) {
	t.Helper()

	eng := engine.New(types.EngineParameters{
		MaxIssuanceFeeBps:   500,
		SolverMaxIterations: 256,
		SolverEpsWad:        100_000_000,
		DriftToleranceWei:   1_000,
		SnapshotInterval:    time.Minute,
	})

	mock, err := adapter.NewMock(fixedmath.Wad)
	require.NoError(t, err)
	tr, err := eng.CreateSeries(tranche.Config{
		Underlying:         "WETH",
		Target:             "stETH",
		UnderlyingDecimals: 18,
		Maturity:           time.Now().Add(30 * 24 * time.Hour),
		Adapter:            mock,
	})
	require.NoError(t, err)

	_, err = tr.Issue("alice", sdkmath.NewInt(100).Mul(fixedmath.Wad))
	require.NoError(t, err)

	return NewWebServer("0", eng), tr.Series().ID
}

func get(t *testing.T, ws *WebServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)
	return rec
}

func TestListSeries(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := get(t, ws, "/api/series")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestGetSeriesByID(t *testing.T) {
	ws, id := newTestServer(t)

	rec := get(t, ws, "/api/series/"+string(id))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Snapshot types.SeriesSnapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id, body.Snapshot.SeriesID)
	assert.Equal(t, "active", body.Snapshot.Phase)

	rec = get(t, ws, "/api/series/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPoolNotAttached(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := get(t, ws, "/api/pool")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthReportsDegradedWithoutDatabase(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := get(t, ws, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DEGRADED", body.Status)
}

func TestCORSPreflight(t *testing.T) {
	ws, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/series", nil)
	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
