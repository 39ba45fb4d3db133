package main

import (
	"context"
	"fmt"
	"log"
	"os"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"satfusion-desktop/internal/analytics"
	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/composite"
	"satfusion-desktop/internal/compositor"
	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/geocode"
	"satfusion-desktop/internal/livepass"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/navigation"
	"satfusion-desktop/internal/observability"
	"satfusion-desktop/internal/sources"
	"satfusion-desktop/internal/spectral"
	"satfusion-desktop/internal/viewer"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// flightGrace is how long past its duration a flight may run before it is
// landed without the frontend's confirmation.
const flightGrace = 2 * time.Second

// MapView is the initial camera position.
type MapView struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom float64 `json:"zoom"`
}

// App struct
type App struct {
	ctx      context.Context
	settings *config.UserSettings
	mu       sync.Mutex
	devMode  bool // Mirror log lines to the frontend in dev mode only
	log      logging.Logger
	tracker  analytics.Tracker
	viewer   *viewer.Viewer
	animator *navigation.CallbackAnimator

	stopTracing func(context.Context) error
}

// NewApp creates a new App application struct
func NewApp() *App {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	if settings.InstallID == "" {
		settings.InstallID = analytics.NewInstallID()
		if err := config.SaveSettings(settings); err != nil {
			log.Printf("Failed to persist install ID: %v", err)
		}
	}

	logger := logging.NewFromEnv()
	a := &App{
		settings: settings,
		log:      logger,
		tracker:  analytics.New(PostHogKey, PostHogHost, settings.InstallID, settings.AnalyticsEnabled, logger),
	}

	// Flight-started events cue the frontend animation; CompleteFlight ends it.
	a.animator = navigation.NewCallbackAnimator(nil, flightGrace)
	v, err := viewer.New(viewer.Config{
		Settings:   settings,
		Emitter:    viewer.EmitterFunc(a.emit),
		Animator:   a.animator,
		Logger:     logger,
		Registerer: prometheus.DefaultRegisterer,
		Track:      a.TrackEvent,
	})
	if err != nil {
		log.Fatalf("Failed to initialize viewer: %v", err)
	}
	a.viewer = v
	return a
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	if os.Getenv(observability.TraceEnv) == "1" {
		stop, err := observability.InitTracing(os.Stderr)
		if err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to initialize tracing: %v", err))
		} else {
			a.stopTracing = stop
		}
	}

	if err := a.viewer.Start(ctx); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start viewer: %v", err))
	} else {
		a.emitLog(fmt.Sprintf("Footprint overlay served at %s", a.viewer.OverlayURL()))
	}

	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// shutdown stops background work and flushes analytics
func (a *App) shutdown(ctx context.Context) {
	if err := a.viewer.Stop(ctx); err != nil {
		log.Printf("Failed to stop viewer: %v", err)
	}
	if a.stopTracing != nil {
		_ = a.stopTracing(ctx)
	}
	if err := a.tracker.Close(); err != nil {
		log.Printf("Failed to flush analytics: %v", err)
	}
}

// emit forwards viewer events to the frontend once the window exists.
func (a *App) emit(event string, payload any) {
	if a.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(a.ctx, event, payload)
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode && a.ctx != nil {
		wailsRuntime.EventsEmit(a.ctx, "log", message)
	}
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	a.tracker.Track(event, props)
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetInitialView returns the configured starting camera.
func (a *App) GetInitialView() MapView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return MapView{Lat: a.settings.DefaultCenterLat, Lon: a.settings.DefaultCenterLon, Zoom: a.settings.DefaultZoom}
}

// ===================
// Layers
// ===================

// GetPaintState returns the map's current paint parameters
func (a *App) GetPaintState() compositor.PaintState { return a.viewer.PaintState() }

// GetSources lists the raster data sources
func (a *App) GetSources() []sources.DataSource { return a.viewer.Sources() }

// GetComposites lists the band composites
func (a *App) GetComposites() []composite.BandComposite { return a.viewer.Composites() }

// GetSelectedComposite returns the composite currently painted
func (a *App) GetSelectedComposite() composite.BandComposite { return a.viewer.SelectedComposite() }

// GetFusionOptions lists the fusion toggles
func (a *App) GetFusionOptions() []composite.FusionOption { return a.viewer.FusionOptions() }

// ToggleSource turns one source on or off
func (a *App) ToggleSource(id string, enabled bool) (compositor.PaintState, error) {
	return a.viewer.ToggleSource(id, enabled)
}

// SelectSource makes id the only enabled source in its group
func (a *App) SelectSource(id string) (compositor.PaintState, error) {
	return a.viewer.SelectSource(id)
}

// SelectComposite switches the band composite
func (a *App) SelectComposite(id string) (compositor.PaintState, error) {
	return a.viewer.SelectComposite(id)
}

// ToggleFusion turns a fusion option on or off
func (a *App) ToggleFusion(id string, enabled bool) (compositor.PaintState, error) {
	return a.viewer.ToggleFusion(id, enabled)
}

// ===================
// Navigation
// ===================

// NavigateTo flies to a place or coordinate. Requests made mid-flight are
// rejected.
func (a *App) NavigateTo(req navigation.Request) error {
	return a.viewer.NavigateTo(a.ctx, req)
}

// SearchPlace flies to a place name or a "lat, lon" literal
func (a *App) SearchPlace(query string) error {
	return a.viewer.NavigateTo(a.ctx, navigation.Place(query))
}

// CompleteFlight is called by the frontend when its fly-to animation ends
func (a *App) CompleteFlight(targetID string) bool {
	return a.animator.Complete(targetID)
}

// GetFlightState returns the current flight phase and target
func (a *App) GetFlightState() navigation.FlightState { return a.viewer.FlightState() }

// GetSearchResults returns the last published catalog results
func (a *App) GetSearchResults() []backend.SearchResult { return a.viewer.LastResults() }

// GetFootprintsURL returns the GeoJSON overlay endpoint for the map
func (a *App) GetFootprintsURL() string { return a.viewer.OverlayURL() }

// ExportFootprints saves the current footprints to a folder chosen by the user
func (a *App) ExportFootprints() (string, error) {
	home, _ := os.UserHomeDir()
	dir, err := wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Export Footprints",
		DefaultDirectory: home,
	})
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", nil
	}

	path, err := a.viewer.ExportFootprints(dir)
	if err != nil {
		return "", err
	}
	a.emitLog(fmt.Sprintf("Exported footprints to %s", path))
	return path, nil
}

// ===================
// Inspection & Agent
// ===================

// InspectPixel samples band values at a clicked point
func (a *App) InspectPixel(lat, lon float64) spectral.SpectralSample {
	return a.viewer.Inspect(a.ctx, lat, lon)
}

// DescribePoint returns the place name nearest to a map click
func (a *App) DescribePoint(lat, lon float64) (geocode.Result, error) {
	return a.viewer.DescribePoint(a.ctx, lat, lon)
}

// AskAgent asks the backend agent and applies its suggested actions
func (a *App) AskAgent(query string) backend.AgentResponse {
	resp := a.viewer.Ask(a.ctx, query)
	if resp.Offline {
		a.emitLog("Agent answered in offline mode")
	}
	return resp
}

// GetConnectionStatus returns the last backend health check
func (a *App) GetConnectionStatus() backend.HealthStatus { return a.viewer.ConnectionStatus() }

// CheckConnection re-checks the backend now
func (a *App) CheckConnection() backend.HealthStatus { return a.viewer.CheckConnection(a.ctx) }

// GetLivePasses returns the tracked satellites' current ground positions
func (a *App) GetLivePasses() []livepass.Position { return a.viewer.LivePasses() }
