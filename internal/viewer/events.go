package viewer

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/navigation"
)

// Frontend event names.
const (
	EventFlightStarted      = "flight-started"
	EventFlightLanded       = "flight-landed"
	EventFootprintsUpdated  = "footprints-updated"
	EventNavigationError    = "navigation-error"
	EventPaintState         = "paint-state"
	EventConnectionStatus   = "connection-status"
	EventLivePass           = "live-pass"
	EventFusionStatus       = "fusion-status"
	EventRateLimit          = "rate-limit"
	EventRateLimitRecovered = "rate-limit-recovered"
	EventSpectralLoading    = "spectral-loading"
	EventSourcesChanged     = "sources-changed"
)

// Emitter delivers events to whatever is presenting the viewer.
type Emitter interface {
	Emit(event string, payload any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, payload any)

func (f EmitterFunc) Emit(event string, payload any) { f(event, payload) }

type discard struct{}

func (discard) Emit(string, any) {}

// FlightStartedEvent tells the map to begin its fly-to animation.
type FlightStartedEvent struct {
	Target     navigation.Target `json:"target"`
	DurationMs int64             `json:"durationMs"`
}

func newFlightStarted(target navigation.Target, d time.Duration) FlightStartedEvent {
	return FlightStartedEvent{Target: target, DurationMs: d.Milliseconds()}
}

// FootprintsEvent carries the footprints published for a landed flight.
type FootprintsEvent struct {
	TargetID   string                     `json:"targetId"`
	OverlayURL string                     `json:"overlayUrl,omitempty"`
	Results    []backend.SearchResult     `json:"results"`
	Collection *geojson.FeatureCollection `json:"collection"`
	// Bounds is [minLon,minLat,maxLon,maxLat] over every footprint, absent
	// when there are none.
	Bounds []float64 `json:"bounds,omitempty"`
}

// NavigationErrorEvent reports a navigation that never took off.
type NavigationErrorEvent struct {
	Request navigation.Request `json:"request"`
	Kind    string             `json:"kind,omitempty"`
	Message string             `json:"message"`
}
