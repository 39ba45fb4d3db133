package navigation

import (
	"satfusion-desktop/internal/geo"
)

// Phase is the flight lifecycle: Idle → Resolving → Animating → Landed → Idle.
type Phase int

const (
	Idle Phase = iota
	Resolving
	Animating
	Landed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Animating:
		return "animating"
	case Landed:
		return "landed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Rect is the on-screen element a flight visually originates from.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Request asks for a navigation. A non-empty PlaceName is resolved through
// the geocoder unless it is a "lat, lon" literal; otherwise Lat/Lon are a
// direct target. BBox uses the geocoder's [minLat,maxLat,minLon,maxLon]
// order.
type Request struct {
	PlaceName   string          `json:"placeName,omitempty"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Zoom        float64         `json:"zoom,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	BBox        geo.GeocoderBox `json:"boundingBox,omitempty"`
	OriginRect  *Rect           `json:"originRect,omitempty"`
}

// Direct builds a coordinate request.
func Direct(lat, lon float64) Request { return Request{Lat: lat, Lon: lon} }

// Place builds a place-name request.
func Place(name string) Request { return Request{PlaceName: name} }

// Target is a resolved, immutable navigation destination. BBox is in
// catalog order and is the box the catalog search is scoped to.
type Target struct {
	ID            string   `json:"id"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Zoom          float64  `json:"zoom"`
	DisplayName   string   `json:"displayName"`
	BBox          geo.BBox `json:"boundingBox"`
	BBoxGenerated bool     `json:"boundingBoxGenerated"`
	OriginRect    *Rect    `json:"originRect,omitempty"`
}

// FlightState is a snapshot of the orchestrator's single flight.
type FlightState struct {
	Phase  Phase   `json:"phase"`
	Target *Target `json:"target,omitempty"`
}
