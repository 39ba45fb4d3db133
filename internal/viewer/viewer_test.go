package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satfusion-desktop/internal/apperr"
	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/fusion"
	"satfusion-desktop/internal/geocode"
	"satfusion-desktop/internal/navigation"
)

type event struct {
	name    string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, payload})
}

func (r *recorder) all(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

func (r *recorder) has(name string) bool { return len(r.all(name)) > 0 }

type noPlaces struct{}

func (noPlaces) Search(context.Context, string) ([]geocode.Result, error) { return nil, nil }

type fakeBackend struct {
	failSearch atomic.Bool
	failAgent  atomic.Bool
	searches   atomic.Int32
	sourceIDs sync.Map
	fusions   atomic.Int32
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","service":"fusion-agent"}`))
	})
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		var req backend.SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.sourceIDs.Store(req.SourceID, true)
		b.searches.Add(1)
		if b.failSearch.Load() {
			http.Error(w, "catalog down", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":"S2A_1","bbox":[73.8,18.5,73.9,18.6],"date":"2024-03-01","sensor":"Sentinel-2A","cloud_cover":4}]}`))
	})
	mux.HandleFunc("POST /spectral/analyze", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"bands":[{"name":"Green","value":0.1},{"name":"Red","value":0.1},{"name":"NIR","value":0.5}],"classification":"Vegetation"}`))
	})
	mux.HandleFunc("POST /fusion/process", func(w http.ResponseWriter, _ *http.Request) {
		b.fusions.Add(1)
		_, _ = w.Write([]byte(`{"status":"success","message":"done"}`))
	})
	mux.HandleFunc("POST /agent/reason", func(w http.ResponseWriter, _ *http.Request) {
		if b.failAgent.Load() {
			http.Error(w, "bad query", http.StatusUnprocessableEntity)
			return
		}
		_, _ = w.Write([]byte(`{"query":"q","answer":"Switching to agriculture.","thoughts":[],"actions":[` +
			`{"type":"select_composite","params":{"id":"agriculture"}},` +
			`{"type":"toggle_fusion","params":{"id":"cloud-filling","enabled":true}},` +
			`{"type":"launch_rocket"}]}`))
	})
	return mux
}

type harness struct {
	v       *Viewer
	events  *recorder
	backend *fakeBackend
	tracked *recorder
}

func newHarness(t *testing.T, mutate func(*config.UserSettings)) *harness {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler(t))
	t.Cleanup(srv.Close)

	s := config.DefaultSettings()
	s.BackendURL = srv.URL
	if mutate != nil {
		mutate(s)
	}

	events := &recorder{}
	tracked := &recorder{}
	v, err := New(Config{
		Settings: s,
		Emitter:  events,
		Animator: navigation.NewCallbackAnimator(nil, time.Hour),
		Geocoder: noPlaces{},
		Track:    func(name string, props map[string]interface{}) { tracked.Emit(name, props) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Stop(context.Background()) })
	return &harness{v: v, events: events, backend: fb, tracked: tracked}
}

func (h *harness) flyAndLand(t *testing.T, lat, lon float64) navigation.Target {
	t.Helper()
	require.NoError(t, h.v.NavigateTo(context.Background(), navigation.Direct(lat, lon)))
	st := h.v.FlightState()
	require.Equal(t, navigation.Animating, st.Phase)
	require.NotNil(t, st.Target)
	target := *st.Target

	require.Eventually(t, func() bool { return h.backend.searches.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.True(t, h.v.CompleteFlight(target.ID))
	require.Eventually(t, func() bool { return h.events.has(EventFootprintsUpdated) }, time.Second, 5*time.Millisecond)
	return target
}

func TestNavigationPublishesFootprintsAfterLanding(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.v.NavigateTo(context.Background(), navigation.Direct(18.52, 73.85)))
	started := h.events.all(EventFlightStarted)
	require.Len(t, started, 1)
	ev := started[0].(FlightStartedEvent)
	assert.Equal(t, int64(3000), ev.DurationMs)
	assert.Equal(t, "18.5200°N, 73.8500°E", ev.Target.DisplayName)

	require.Eventually(t, func() bool { return h.backend.searches.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, h.events.has(EventFootprintsUpdated), "results stay hidden while the flight animates")

	require.True(t, h.v.CompleteFlight(ev.Target.ID))
	assert.False(t, h.v.CompleteFlight(ev.Target.ID))
	require.Eventually(t, func() bool { return h.events.has(EventFootprintsUpdated) }, time.Second, 5*time.Millisecond)

	fp := h.events.all(EventFootprintsUpdated)[0].(FootprintsEvent)
	assert.Equal(t, ev.Target.ID, fp.TargetID)
	require.Len(t, fp.Results, 1)
	assert.Len(t, fp.Collection.Features, 1)
	assert.InDeltaSlice(t, []float64{73.8, 18.5, 73.9, 18.6}, fp.Bounds, 1e-9)
	assert.Equal(t, "ESA", fp.Results[0].Source)
	assert.Len(t, h.v.LastResults(), 1)
	assert.Len(t, h.v.Footprints().Features, 1)
	assert.True(t, h.events.has(EventFlightLanded))
	assert.True(t, h.tracked.has("navigation_completed"))
	assert.Equal(t, navigation.Idle, h.v.FlightState().Phase)

	_, searchedS2 := h.backend.sourceIDs.Load("sentinel-2")
	assert.True(t, searchedS2, "a non-catalog base layer searches Sentinel-2")
}

func TestNavigationDroppedWhileAnimating(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.v.NavigateTo(context.Background(), navigation.Direct(10, 10)))
	err := h.v.NavigateTo(context.Background(), navigation.Direct(20, 20))
	assert.True(t, apperr.IsKind(err, apperr.KindConflictingRequest))
	assert.Len(t, h.events.all(EventFlightStarted), 1)
	assert.False(t, h.events.has(EventNavigationError), "dropped requests are silent")
}

func TestUnknownPlaceEmitsNavigationError(t *testing.T) {
	h := newHarness(t, nil)

	err := h.v.NavigateTo(context.Background(), navigation.Place("Nowhereistan"))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	errs := h.events.all(EventNavigationError)
	require.Len(t, errs, 1)
	ev := errs[0].(NavigationErrorEvent)
	assert.Equal(t, "not_found", ev.Kind)
	assert.Equal(t, "Nowhereistan", ev.Request.PlaceName)
	assert.Equal(t, navigation.Idle, h.v.FlightState().Phase)
}

func TestSearchFollowsCatalogBackedSource(t *testing.T) {
	h := newHarness(t, nil)

	st, err := h.v.SelectSource("landsat-8")
	require.NoError(t, err)
	assert.Equal(t, "landsat-8", st.ActiveSourceID)
	assert.Equal(t, 1.0, st.LayerOpacities["landsat-8"])
	assert.Equal(t, 0.0, st.LayerOpacities["esri-world-imagery"])

	h.flyAndLand(t, 18.52, 73.85)
	_, searched := h.backend.sourceIDs.Load("landsat-8")
	assert.True(t, searched)
}

func TestToggleUnknownSource(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.v.ToggleSource("nope", true)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	before := h.v.SelectedComposite().ID
	_, err = h.v.SelectComposite("nope")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, before, h.v.SelectedComposite().ID)
}

func TestToggleFusionRepaintsAndRunsAction(t *testing.T) {
	h := newHarness(t, nil)

	st, err := h.v.ToggleFusion("pan-sharpening", true)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, st.Saturation, 1e-9)
	assert.InDelta(t, 1.2, st.Contrast, 1e-9)

	require.Eventually(t, func() bool {
		for _, p := range h.events.all(EventFusionStatus) {
			if p.(fusion.Status).State == fusion.StateSuccess {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), h.backend.fusions.Load())
	assert.True(t, h.tracked.has("fusion_toggled"))

	st, err = h.v.ToggleFusion("pan-sharpening", false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, st.Saturation, 1e-9)
	assert.Equal(t, int32(1), h.backend.fusions.Load(), "disabling issues no action")
	assert.Len(t, h.events.all(EventPaintState), 2)
}

func TestAskAppliesAgentActions(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.v.Ask(context.Background(), "show me crop health")
	assert.Equal(t, "Switching to agriculture.", resp.Answer)
	assert.False(t, resp.Offline)

	assert.Equal(t, "agriculture", h.v.PaintState().CompositeID)
	var cloudFilling bool
	for _, f := range h.v.FusionOptions() {
		if f.ID == "cloud-filling" {
			cloudFilling = f.Enabled
		}
	}
	assert.True(t, cloudFilling)
}

func TestInspectReportsLoading(t *testing.T) {
	h := newHarness(t, nil)

	s := h.v.Inspect(context.Background(), 18.52, 73.85)
	assert.False(t, s.NoData)
	assert.InDelta(t, 0.667, s.NDVI, 0.001)
	assert.Equal(t, []any{true, false}, h.events.all(EventSpectralLoading))
}

func TestExportFootprints(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()

	_, err := h.v.ExportFootprints(dir)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	h.flyAndLand(t, 18.52, 73.85)
	path, err := h.v.ExportFootprints(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "sentinel-2_"))
	assert.True(t, strings.HasSuffix(path, "_footprints.geojson"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
	assert.Contains(t, string(data), "S2A_1")
}

func TestCustomSources(t *testing.T) {
	h := newHarness(t, func(s *config.UserSettings) {
		s.CustomSources = []config.CustomSource{{Name: "Local", Type: "xyz", URL: "http://tiles.local/{z}/{x}/{y}.png"}}
	})
	_, ok := lookupSource(h.v, "custom:Local")
	assert.True(t, ok, "settings sources are loaded")

	err := h.v.AddSource(config.CustomSource{Name: "Broken", Type: "ftp", URL: "ftp://x"})
	assert.True(t, apperr.IsKind(err, apperr.KindMalformedInput))

	require.NoError(t, h.v.AddSource(config.CustomSource{Name: "Drone", Type: "xyz", URL: "http://drone/{z}/{x}/{y}.png", Enabled: true}))
	assert.Equal(t, "custom:Drone", h.v.PaintState().ActiveSourceID, "a later enabled source wins its group")
	err = h.v.AddSource(config.CustomSource{Name: "Drone", Type: "xyz", URL: "http://drone/{z}/{x}/{y}.png"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflictingRequest))

	require.NoError(t, h.v.RemoveSource("Drone"))
	assert.Equal(t, "esri-world-imagery", h.v.PaintState().ActiveSourceID)
	assert.True(t, h.events.has(EventSourcesChanged))
}

func lookupSource(v *Viewer, id string) (string, bool) {
	for _, s := range v.Sources() {
		if s.ID == id {
			return s.ID, true
		}
	}
	return "", false
}

func TestStartServesOverlayAndHealth(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.v.Start(context.Background()))

	require.Eventually(t, func() bool { return h.v.ConnectionStatus().Connected }, time.Second, 5*time.Millisecond)
	assert.True(t, h.events.has(EventConnectionStatus))

	url := h.v.OverlayURL()
	require.NotEmpty(t, url)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	require.NoError(t, h.v.Stop(context.Background()))
	assert.Empty(t, h.v.OverlayURL())
}

func TestCacheStats(t *testing.T) {
	h := newHarness(t, nil)
	h.v.Ask(context.Background(), "show me crop health")
	h.v.Ask(context.Background(), "Show me crop health ")

	stats := h.v.CacheStats()
	assert.Equal(t, int64(1), stats["agent"].Hits)
	h.v.ClearCaches()
	assert.Equal(t, 0, h.v.CacheStats()["agent"].Entries)
}

type namedPlaces struct{ noPlaces }

func (namedPlaces) Reverse(_ context.Context, lat, lon float64) (geocode.Result, error) {
	return geocode.Result{Lat: lat, Lon: lon, DisplayName: "Pune, Maharashtra, India"}, nil
}

func TestDescribePoint(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.v.DescribePoint(context.Background(), 18.52, 73.85)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "search-only geocoder has no reverse lookup")

	v, err := New(Config{Settings: config.DefaultSettings(), Geocoder: namedPlaces{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Stop(context.Background()) })

	r, err := v.DescribePoint(context.Background(), 18.52, 73.85)
	require.NoError(t, err)
	assert.Equal(t, "Pune, Maharashtra, India", r.DisplayName)

	_, err = v.DescribePoint(context.Background(), 91, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindMalformedInput))
}

func TestFailedSearchClearsPreviousFootprints(t *testing.T) {
	h := newHarness(t, nil)
	h.flyAndLand(t, 18.52, 73.85)
	require.Len(t, h.v.Footprints().Features, 1)

	h.backend.failSearch.Store(true)
	require.NoError(t, h.v.NavigateTo(context.Background(), navigation.Direct(-33.86, 151.21)))
	target := *h.v.FlightState().Target
	require.Eventually(t, func() bool { return h.backend.searches.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.True(t, h.v.CompleteFlight(target.ID))

	require.Eventually(t, func() bool { return len(h.events.all(EventFootprintsUpdated)) == 2 }, time.Second, 5*time.Millisecond)
	fp := h.events.all(EventFootprintsUpdated)[1].(FootprintsEvent)
	assert.Equal(t, target.ID, fp.TargetID)
	assert.Empty(t, fp.Collection.Features)
	assert.Nil(t, fp.Bounds)
	assert.Empty(t, h.v.Footprints().Features)
	assert.Empty(t, h.v.LastResults())
}

func TestOfflineAnswerLeavesViewUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.failAgent.Store(true)
	before := h.v.PaintState()

	resp := h.v.Ask(context.Background(), "heavy cloud over Kerala")
	assert.True(t, resp.Offline)
	assert.Empty(t, resp.Actions)
	assert.Equal(t, before, h.v.PaintState())
	assert.False(t, h.events.has(EventPaintState))
}

func TestPaintOnlyFusionIssuesNoAction(t *testing.T) {
	h := newHarness(t, nil)

	st, err := h.v.ToggleFusion("sar-optical", true)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, st.Saturation, 1e-9)
	assert.InDelta(t, -10, st.HueRotateDegrees, 1e-9)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), h.backend.fusions.Load())
	assert.False(t, h.events.has(EventFusionStatus))
}
