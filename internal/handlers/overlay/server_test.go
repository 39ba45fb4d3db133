package overlay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/footprint"
	"satfusion-desktop/internal/observability"
)

func TestFootprintsEndpoint(t *testing.T) {
	store := footprint.NewStore()
	s := NewServer(store, nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, FootprintsPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, rec.Body.String())

	store.Publish(footprint.ToOverlayGeometry([]backend.SearchResult{{ID: "a", BBox: []float64{10, 20, 12, 22}}}))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, FootprintsPath, nil))
	assert.Contains(t, rec.Body.String(), `"Polygon"`)
}

func TestPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(footprint.NewStore(), nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, FootprintsPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestStartServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewCollector(reg)
	require.NoError(t, err)
	m.SetFootprints(3)

	s := NewServer(footprint.NewStore(), m, nil)
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop(context.Background())) }()
	require.NotEmpty(t, s.URL())
	assert.Equal(t, s.URL()+FootprintsPath, s.FootprintsURL())

	resp, err := http.Get(s.URL() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "satfusion_footprints_rendered 3")
}
