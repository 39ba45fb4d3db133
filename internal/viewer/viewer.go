// Package viewer assembles the imagery viewer core: layer compositing,
// navigation, pixel inspection, footprint publishing and the background
// workers around them. The desktop shell and the CLI are thin layers over a
// Viewer.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"

	"satfusion-desktop/internal/apperr"
	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/cache"
	"satfusion-desktop/internal/common"
	"satfusion-desktop/internal/composite"
	"satfusion-desktop/internal/compositor"
	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/footprint"
	"satfusion-desktop/internal/fusion"
	"satfusion-desktop/internal/geocode"
	"satfusion-desktop/internal/handlers/overlay"
	"satfusion-desktop/internal/health"
	"satfusion-desktop/internal/livepass"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/navigation"
	"satfusion-desktop/internal/observability"
	"satfusion-desktop/internal/ratelimit"
	"satfusion-desktop/internal/sources"
	"satfusion-desktop/internal/spectral"
	"satfusion-desktop/internal/utils/naming"
	"satfusion-desktop/internal/wmts"
)

// Config wires a Viewer. Only Settings is required.
type Config struct {
	Settings *config.UserSettings
	Emitter  Emitter
	// Animator drives flights; nil lands each flight after the configured
	// duration.
	Animator   navigation.Animator
	Logger     logging.Logger
	Registerer prometheus.Registerer
	HTTPClient *http.Client
	// Track receives analytics events.
	Track func(event string, props map[string]interface{})
	// Geocoder replaces the Nominatim client.
	Geocoder navigation.Geocoder
}

// Viewer is one viewing session.
type Viewer struct {
	settings  *config.UserSettings
	emitter   Emitter
	log       logging.Logger
	track     func(string, map[string]interface{})
	metrics   *observability.Collector
	limiter   *ratelimit.Handler
	client    *backend.Client
	geocoder  navigation.Geocoder
	geoCache  *cache.Cache[string, []geocode.Result]
	agentMemo *cache.Cache[string, backend.AgentResponse]
	http      *http.Client

	catalog   *composite.Catalog
	session   *compositor.Session
	nav       *navigation.Orchestrator
	completer interface{ Complete(string) bool }
	inspector *spectral.Inspector
	fusion    *fusion.Runner
	monitor   *health.Monitor
	tracker   *livepass.Tracker
	store     *footprint.Store
	overlay   *overlay.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	lastTarget  *navigation.Target
	lastResults []backend.SearchResult
}

// New builds a Viewer from settings. Background workers do not run until
// Start.
func New(cfg Config) (*Viewer, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	s := cfg.Settings
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = discard{}
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	metrics, err := observability.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	catalog, err := composite.Default()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		settings: s,
		emitter:  emitter,
		log:      log,
		track:    cfg.Track,
		metrics:  metrics,
		http:     httpClient,
		store:    footprint.NewStore(),
		ctx:      ctx,
		cancel:   cancel,
	}

	v.limiter = ratelimit.NewHandler(nil, log)
	v.limiter.SetCallbacks(
		func(ev ratelimit.RateLimitEvent) { v.emit(EventRateLimit, ev) },
		func(provider string) { v.emit(EventRateLimitRecovered, provider) },
	)

	v.agentMemo = cache.New[string, backend.AgentResponse](cache.DefaultConfig())
	v.client = backend.NewClient(s.BackendURL,
		backend.WithHTTPClient(httpClient),
		backend.WithLogger(log),
		backend.WithMetrics(metrics),
		backend.WithRateLimiter(v.limiter),
		backend.WithAgentCache(v.agentMemo),
	)

	v.geoCache = cache.New[string, []geocode.Result](cache.Config{
		MaxEntries: s.GeocodeCacheEntries,
		TTL:        time.Duration(s.GeocodeCacheTTLMin) * time.Minute,
	})
	v.geocoder = cfg.Geocoder
	if v.geocoder == nil {
		v.geocoder = geocode.NewClient(s.GeocoderURL,
			geocode.WithHTTPClient(httpClient),
			geocode.WithLogger(log),
			geocode.WithRateLimiter(v.limiter),
			geocode.WithCache(v.geoCache),
		)
	}

	v.catalog = catalog
	v.session = compositor.NewSession(catalog, sources.NewRegistry(v.initialSources()), s.DefaultComposite)

	animator := cfg.Animator
	if animator == nil {
		animator = navigation.TimerAnimator{}
	}
	if c, ok := animator.(interface{ Complete(string) bool }); ok {
		v.completer = c
	}
	v.nav = navigation.New(v.geocoder, v.client, v, navigation.Config{
		FlightDuration:   s.FlightDuration(),
		SearchWindowDays: s.SearchWindowDays,
		SourceID:         v.searchSource,
	},
		navigation.WithLogger(log),
		navigation.WithMetrics(metrics),
		navigation.WithAnimator(animator),
	)

	v.inspector = spectral.NewInspector(v.client, log, func(loading bool) {
		v.emit(EventSpectralLoading, loading)
	})
	v.fusion = fusion.NewRunner(v.client, 2, func(st fusion.Status) {
		v.emit(EventFusionStatus, st)
	}, log)
	v.monitor = health.NewMonitor(v.client, s.HealthInterval(), func(st backend.HealthStatus) {
		v.emit(EventConnectionStatus, st)
	}, metrics, log)

	v.tracker, err = livepass.NewTracker(s.TrackedSatellites, s.LivePassInterval(), log)
	if err != nil {
		log.Warn(ctx, "viewer.tle_skipped", logging.Err(err))
	}
	v.overlay = overlay.NewServer(v.store, metrics, log)
	return v, nil
}

// initialSources is the built-in list followed by the user's custom
// sources, with the configured default selected in its group.
func (v *Viewer) initialSources() []sources.DataSource {
	list := sources.Defaults()
	for _, c := range v.settings.CustomSources {
		list = append(list, sources.FromCustom(c))
	}
	def := v.settings.DefaultSource
	if def == "" {
		return list
	}
	reg := sources.NewRegistry(list)
	if err := reg.Select(def); err != nil {
		v.log.Warn(context.Background(), "viewer.default_source_missing", logging.String("source", def))
		return list
	}
	return reg.List()
}

// Start launches the overlay server and the polling workers.
func (v *Viewer) Start(ctx context.Context) error {
	if err := v.overlay.Start(); err != nil {
		return err
	}
	v.monitor.Start(ctx)
	v.tracker.Start(ctx, func(ps []livepass.Position) { v.emit(EventLivePass, ps) })
	v.emit(EventPaintState, v.PaintState())
	return nil
}

// Stop halts the workers and waits for in-flight fusion jobs.
func (v *Viewer) Stop(ctx context.Context) error {
	v.cancel()
	v.monitor.Stop()
	v.tracker.Stop()
	v.fusion.Wait()
	v.limiter.Close()
	return v.overlay.Stop(ctx)
}

func (v *Viewer) emit(event string, payload any) { v.emitter.Emit(event, payload) }

func (v *Viewer) trackEvent(event string, props map[string]interface{}) {
	if v.track != nil {
		v.track(event, props)
	}
}

// searchSource is the active source when it is catalog-backed, otherwise
// Sentinel-2.
func (v *Viewer) searchSource() string {
	active := v.session.Paint().ActiveSourceID
	if src, ok := v.session.Sources().Get(active); ok && src.Searchable {
		return src.ID
	}
	return common.SourceSentinel2
}

// --- layers ---

// PaintState returns the current paint parameters.
func (v *Viewer) PaintState() compositor.PaintState { return v.session.Paint() }

// Sources lists the raster sources.
func (v *Viewer) Sources() []sources.DataSource { return v.session.Sources().List() }

// Composites lists the band composites.
func (v *Viewer) Composites() []composite.BandComposite { return v.catalog.Composites() }

// FusionOptions lists the fusion toggles with their current state.
func (v *Viewer) FusionOptions() []composite.FusionOption { return v.session.FusionOptions() }

// SelectedComposite returns the active band composite.
func (v *Viewer) SelectedComposite() composite.BandComposite { return v.session.Composite() }

// ToggleSource sets one source's enabled flag.
func (v *Viewer) ToggleSource(id string, enabled bool) (compositor.PaintState, error) {
	if err := v.session.Sources().SetEnabled(id, enabled); err != nil {
		return compositor.PaintState{}, apperr.New("viewer.toggle_source", apperr.KindNotFound, err)
	}
	return v.repaint(), nil
}

// SelectSource enables id and disables the rest of its group.
func (v *Viewer) SelectSource(id string) (compositor.PaintState, error) {
	if err := v.session.Sources().Select(id); err != nil {
		return compositor.PaintState{}, apperr.New("viewer.select_source", apperr.KindNotFound, err)
	}
	return v.repaint(), nil
}

// SelectComposite switches the band composite.
func (v *Viewer) SelectComposite(id string) (compositor.PaintState, error) {
	if err := v.session.SelectComposite(id); err != nil {
		return compositor.PaintState{}, apperr.New("viewer.select_composite", apperr.KindNotFound, err)
	}
	v.trackEvent("composite_selected", map[string]interface{}{"composite": id})
	return v.repaint(), nil
}

// ToggleFusion flips a fusion option. Enabling one with a backend action
// also starts that action in the background; its outcome is reported
// through fusion-status events and never changes the paint state.
func (v *Viewer) ToggleFusion(id string, enabled bool) (compositor.PaintState, error) {
	opt, err := v.session.SetFusion(id, enabled)
	if err != nil {
		return compositor.PaintState{}, apperr.New("viewer.toggle_fusion", apperr.KindNotFound, err)
	}
	v.fusion.Submit(v.ctx, opt)
	v.trackEvent("fusion_toggled", map[string]interface{}{"fusion": id, "enabled": enabled})
	return v.repaint(), nil
}

// SetFusion flips a fusion option without running its backend action.
func (v *Viewer) SetFusion(id string, enabled bool) (compositor.PaintState, error) {
	if _, err := v.session.SetFusion(id, enabled); err != nil {
		return compositor.PaintState{}, apperr.New("viewer.set_fusion", apperr.KindNotFound, err)
	}
	return v.repaint(), nil
}

func (v *Viewer) repaint() compositor.PaintState {
	st := v.session.Paint()
	v.emit(EventPaintState, st)
	return st
}

// AddSource registers a custom source as the top-priority base layer.
func (v *Viewer) AddSource(c config.CustomSource) error {
	if err := config.ValidateCustomSource(&c); err != nil {
		return apperr.New("viewer.add_source", apperr.KindMalformedInput, err)
	}
	if err := v.session.Sources().Add(sources.FromCustom(c)); err != nil {
		return apperr.New("viewer.add_source", apperr.KindConflictingRequest, err)
	}
	v.emit(EventSourcesChanged, v.Sources())
	v.repaint()
	return nil
}

// RemoveSource drops a custom source by name.
func (v *Viewer) RemoveSource(name string) error {
	if err := v.session.Sources().Remove("custom:" + name); err != nil {
		return apperr.New("viewer.remove_source", apperr.KindNotFound, err)
	}
	v.emit(EventSourcesChanged, v.Sources())
	v.repaint()
	return nil
}

// ListWMTSLayers fetches a capabilities document and returns its layers.
func (v *Viewer) ListWMTSLayers(ctx context.Context, capabilitiesURL string) ([]wmts.LayerInfo, error) {
	caps, err := wmts.FetchCapabilities(ctx, v.http, capabilitiesURL)
	if err != nil {
		return nil, apperr.New("viewer.wmts", apperr.KindBackendUnavailable, err)
	}
	return wmts.GetLayers(caps), nil
}

// --- navigation ---

// NavigateTo starts a navigation; see navigation.Orchestrator.NavigateTo.
func (v *Viewer) NavigateTo(ctx context.Context, req navigation.Request) error {
	return v.nav.NavigateTo(ctx, req)
}

// FlightState returns the current flight snapshot.
func (v *Viewer) FlightState() navigation.FlightState { return v.nav.State() }

// CompleteFlight reports that the frontend finished animating targetID.
// It returns false when the animator is not frontend-driven or the flight
// already landed.
func (v *Viewer) CompleteFlight(targetID string) bool {
	if v.completer == nil {
		return false
	}
	return v.completer.Complete(targetID)
}

// LastResults returns the most recently published search results.
func (v *Viewer) LastResults() []backend.SearchResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]backend.SearchResult, len(v.lastResults))
	copy(out, v.lastResults)
	return out
}

// Footprints returns the published overlay collection.
func (v *Viewer) Footprints() *geojson.FeatureCollection { return v.store.Latest() }

// OverlayURL is the footprint overlay endpoint, empty before Start.
func (v *Viewer) OverlayURL() string { return v.overlay.FootprintsURL() }

// ExportFootprints writes the published overlay to dir and returns the
// file path.
func (v *Viewer) ExportFootprints(dir string) (string, error) {
	v.mu.Lock()
	target := v.lastTarget
	v.mu.Unlock()
	if target == nil {
		return "", apperr.New("viewer.export_footprints", apperr.KindNotFound, errors.New("no footprints published yet"))
	}

	data, err := v.store.MarshalLatest()
	if err != nil {
		return "", fmt.Errorf("failed to encode footprints: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	name := naming.FootprintsFilename(v.searchSource(), common.FormatISO8601(time.Now()), target.Lat, target.Lon)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write footprints: %w", err)
	}
	v.log.Info(v.ctx, "viewer.footprints_exported", logging.String("path", path))
	return path, nil
}

// FlightStarted implements navigation.Sink.
func (v *Viewer) FlightStarted(target navigation.Target, d time.Duration) {
	v.emit(EventFlightStarted, newFlightStarted(target, d))
}

// Landed implements navigation.Sink.
func (v *Viewer) Landed(target navigation.Target) {
	v.emit(EventFlightLanded, target)
	v.trackEvent("navigation_completed", map[string]interface{}{
		"generated_bbox": target.BBoxGenerated,
	})
}

// FootprintsPublished implements navigation.Sink.
func (v *Viewer) FootprintsPublished(target navigation.Target, fc *geojson.FeatureCollection, results []backend.SearchResult) {
	v.store.Publish(fc)
	v.mu.Lock()
	t := target
	v.lastTarget = &t
	v.lastResults = results
	v.mu.Unlock()
	ev := FootprintsEvent{
		TargetID:   target.ID,
		OverlayURL: v.OverlayURL(),
		Results:    results,
		Collection: fc,
	}
	if b, ok := footprint.Bounds(fc); ok {
		ev.Bounds = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	}
	v.emit(EventFootprintsUpdated, ev)
}

// NavigationFailed implements navigation.Sink.
func (v *Viewer) NavigationFailed(req navigation.Request, err error) {
	ev := NavigationErrorEvent{Request: req, Message: err.Error()}
	var oe *apperr.OpError
	if errors.As(err, &oe) {
		ev.Kind = string(oe.Kind)
	}
	v.emit(EventNavigationError, ev)
}

// --- inspection, health, agent ---

// Inspect samples the pixel at lat/lon.
func (v *Viewer) Inspect(ctx context.Context, lat, lon float64) spectral.SpectralSample {
	return v.inspector.Inspect(ctx, lat, lon)
}

type reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Result, error)
}

// DescribePoint names the place nearest to lat/lon. Geocoders without
// reverse lookup report NotFound.
func (v *Viewer) DescribePoint(ctx context.Context, lat, lon float64) (geocode.Result, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geocode.Result{}, apperr.New("viewer.describe_point", apperr.KindMalformedInput,
			fmt.Errorf("coordinate %.4f, %.4f out of range", lat, lon))
	}
	r, ok := v.geocoder.(reverser)
	if !ok {
		return geocode.Result{}, apperr.New("viewer.describe_point", apperr.KindNotFound, nil)
	}
	return r.Reverse(ctx, lat, lon)
}

// ConnectionStatus returns the last known backend health.
func (v *Viewer) ConnectionStatus() backend.HealthStatus { return v.monitor.Status() }

// CheckConnection probes the backend immediately.
func (v *Viewer) CheckConnection(ctx context.Context) backend.HealthStatus {
	return v.monitor.CheckNow(ctx)
}

// LivePasses propagates the tracked satellites to now.
func (v *Viewer) LivePasses() []livepass.Position { return v.tracker.PositionsAt(time.Now()) }

// Ask sends a question to the backend agent with the session as context
// and applies any actions in the answer.
func (v *Viewer) Ask(ctx context.Context, query string) backend.AgentResponse {
	paint := v.session.Paint()
	st := v.nav.State()
	hints := map[string]any{
		"active_source": paint.ActiveSourceID,
		"composite":     paint.CompositeID,
		"flight_phase":  st.Phase.String(),
	}
	if st.Target != nil {
		hints["lat"] = st.Target.Lat
		hints["lon"] = st.Target.Lon
		hints["place"] = st.Target.DisplayName
	}

	resp := v.client.Reason(ctx, query, hints)
	for _, a := range resp.Actions {
		if err := v.apply(ctx, a); err != nil {
			v.log.Info(ctx, "viewer.agent_action_failed",
				logging.String("type", a.Type),
				logging.Err(err))
		}
	}
	return resp
}

func (v *Viewer) apply(ctx context.Context, a backend.Action) error {
	id, _ := a.Params["id"].(string)
	switch a.Type {
	case "navigate":
		if place, ok := a.Params["place"].(string); ok && place != "" {
			return v.NavigateTo(ctx, navigation.Place(place))
		}
		lat, latOK := a.Params["lat"].(float64)
		lon, lonOK := a.Params["lon"].(float64)
		if !latOK || !lonOK {
			return apperr.New("viewer.agent_navigate", apperr.KindMalformedInput, errors.New("navigate needs place or lat/lon"))
		}
		return v.NavigateTo(ctx, navigation.Direct(lat, lon))
	case "toggle_fusion":
		enabled, ok := a.Params["enabled"].(bool)
		if !ok {
			enabled = true
		}
		_, err := v.ToggleFusion(id, enabled)
		return err
	case "select_composite":
		_, err := v.SelectComposite(id)
		return err
	case "select_source":
		_, err := v.SelectSource(id)
		return err
	default:
		v.log.Debug(ctx, "viewer.agent_action_ignored", logging.String("type", a.Type))
		return nil
	}
}

// --- rate limits and caches ---

// RateLimiter exposes the shared per-provider rate limit tracker.
func (v *Viewer) RateLimiter() *ratelimit.Handler { return v.limiter }

// Metrics exposes the Prometheus collectors.
func (v *Viewer) Metrics() *observability.Collector { return v.metrics }

// CacheStats reports the geocode and agent answer caches.
func (v *Viewer) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"geocode": v.geoCache.Stats(),
		"agent":   v.agentMemo.Stats(),
	}
}

// ClearCaches empties the geocode and agent answer caches.
func (v *Viewer) ClearCaches() {
	v.geoCache.Clear()
	v.agentMemo.Clear()
}
