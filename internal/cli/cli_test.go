package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satfusion-desktop/internal/compositor"
	"satfusion-desktop/internal/spectral"
	"satfusion-desktop/internal/viewer"
)

func fakeBackend(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","service":"fusion-agent"}`))
	})
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":"S2B_7","bbox":[73.8,18.5,73.9,18.6],"date":"2024-03-02","sensor":"Sentinel-2B","cloud_cover":1}]}`))
	})
	mux.HandleFunc("POST /spectral/analyze", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"bands":[{"name":"Green","value":0.3},{"name":"Red","value":0.1},{"name":"NIR","value":0.1}],"classification":"Water Body"}`))
	})
	mux.HandleFunc("GET /reverse", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lat":"` + r.URL.Query().Get("lat") + `","lon":"` + r.URL.Query().Get("lon") + `","display_name":"Pune, Maharashtra, India"}`))
	})
	mux.HandleFunc("POST /agent/reason", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad query", http.StatusUnprocessableEntity)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, backendURL string, args ...string) (string, error) {
	t.Helper()
	settings := filepath.Join(t.TempDir(), "settings.json")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--settings", settings, "--backend", backendURL, "--geocoder", backendURL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPaintCommand(t *testing.T) {
	srv := fakeBackend(t)
	out, err := run(t, srv.URL, "paint", "--source", "landsat-8", "--composite", "agriculture", "--fusion", "pan-sharpening")
	require.NoError(t, err)

	var st compositor.PaintState
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "landsat-8", st.ActiveSourceID)
	assert.Equal(t, "agriculture", st.CompositeID)
	assert.InDelta(t, 1.3, st.Saturation, 1e-9)
	assert.InDelta(t, 1.35, st.Contrast, 1e-9)
	assert.InDelta(t, 10, st.HueRotateDegrees, 1e-9)
}

func TestPaintCommandRejectsUnknownComposite(t *testing.T) {
	srv := fakeBackend(t)
	_, err := run(t, srv.URL, "paint", "--composite", "infrared-dreams")
	assert.Error(t, err)
}

func TestNavigateStreamsFlightEvents(t *testing.T) {
	srv := fakeBackend(t)
	out, err := run(t, srv.URL, "navigate", "--flight", "20ms", "18.52, 73.85")
	require.NoError(t, err)

	var names []string
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	for sc.Scan() {
		var ev struct {
			Event string `json:"event"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		names = append(names, ev.Event)
	}
	assert.Equal(t, []string{
		viewer.EventFlightStarted,
		viewer.EventFlightLanded,
		viewer.EventFootprintsUpdated,
	}, names)
}

func TestInspectCommand(t *testing.T) {
	srv := fakeBackend(t)

	_, err := run(t, srv.URL, "inspect", "north", "73.85")
	assert.ErrorContains(t, err, "invalid latitude")

	out, err := run(t, srv.URL, "inspect", "18.52", "73.85")
	require.NoError(t, err)
	var s spectral.SpectralSample
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.InDelta(t, 0.5, s.NDWI, 1e-9)
	assert.Equal(t, spectral.WaterBody, s.MoistureClass)
}

func TestHealthCommand(t *testing.T) {
	srv := fakeBackend(t)
	out, err := run(t, srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"connected": true`)

	srv.Close()
	_, err = run(t, srv.URL, "health")
	assert.ErrorContains(t, err, "disconnected")
}

func TestAskFallsBackOffline(t *testing.T) {
	srv := fakeBackend(t)
	out, err := run(t, srv.URL, "ask", "clouds", "over", "Kerala")
	require.NoError(t, err)

	var res askResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Response.Offline)
	assert.Contains(t, res.Response.Answer, "All-Weather")
	assert.Empty(t, res.Response.Actions)
	assert.Equal(t, "esri-world-imagery", res.Paint.ActiveSourceID, "offline answers leave the view alone")
	assert.InDelta(t, 1.0, res.Paint.Saturation, 1e-9)
	assert.InDelta(t, 0, res.Paint.HueRotateDegrees, 1e-9)
}

func TestWhereCommand(t *testing.T) {
	srv := fakeBackend(t)
	out, err := run(t, srv.URL, "where", "18.52", "73.85")
	require.NoError(t, err)
	assert.Contains(t, out, "Pune, Maharashtra, India")

	_, err = run(t, srv.URL, "where", "95", "73.85")
	assert.Error(t, err)
}
