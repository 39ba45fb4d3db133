// Package geo holds the coordinate conventions shared by the geocoder, the
// navigation orchestrator and the catalog search.
package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"satfusion-desktop/internal/apperr"
)

// SynthesizedHalfSpan is the half-width in degrees of the box synthesized
// around a point when no usable bounding box is available.
const SynthesizedHalfSpan = 0.1

// BBox is the catalog convention: [minLon, minLat, maxLon, maxLat].
type BBox [4]float64

func (b BBox) MinLon() float64 { return b[0] }
func (b BBox) MinLat() float64 { return b[1] }
func (b BBox) MaxLon() float64 { return b[2] }
func (b BBox) MaxLat() float64 { return b[3] }

// Slice returns the box as a JSON-friendly slice.
func (b BBox) Slice() []float64 { return []float64{b[0], b[1], b[2], b[3]} }

// GeocoderBox is the geocoder convention: [minLat, maxLat, minLon, maxLon].
// Geocoders such as Nominatim serialize each value as a string, so the raw
// form is kept until it is converted.
type GeocoderBox []string

// UnmarshalJSON accepts each component as a string or a number. Any other
// shape leaves the box empty so a synthesized box is used instead.
func (g *GeocoderBox) UnmarshalJSON(data []byte) error {
	*g = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(GeocoderBox, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		var s string
		switch {
		case json.Unmarshal(r, &s) == nil:
			out = append(out, s)
		case len(r) > 0 && (r[0] == '-' || (r[0] >= '0' && r[0] <= '9')):
			out = append(out, string(r))
		default:
			return nil
		}
	}
	*g = out
	return nil
}

// ToCatalog converts the geocoder convention into the catalog convention.
// Any missing or unparseable component yields a MalformedInput error.
func (g GeocoderBox) ToCatalog() (BBox, error) {
	if len(g) != 4 {
		return BBox{}, apperr.New("geo.convert_bbox", apperr.KindMalformedInput, fmt.Errorf("expected 4 values, got %d", len(g)))
	}
	var v [4]float64
	for i, s := range g {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return BBox{}, apperr.New("geo.convert_bbox", apperr.KindMalformedInput, err)
		}
		v[i] = f
	}
	minLat, maxLat, minLon, maxLon := v[0], v[1], v[2], v[3]
	return BBox{minLon, minLat, maxLon, maxLat}, nil
}

// SynthesizeBox returns a small box centered on the point.
func SynthesizeBox(lat, lon float64) BBox {
	return BBox{
		lon - SynthesizedHalfSpan,
		lat - SynthesizedHalfSpan,
		lon + SynthesizedHalfSpan,
		lat + SynthesizedHalfSpan,
	}
}

// SearchBox converts a geocoder box when present and valid, and otherwise
// falls back to a synthesized box around the point.
func SearchBox(box GeocoderBox, lat, lon float64) (BBox, bool) {
	if len(box) == 0 {
		return SynthesizeBox(lat, lon), false
	}
	b, err := box.ToCatalog()
	if err != nil {
		return SynthesizeBox(lat, lon), false
	}
	return b, true
}

var coordinateLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?,\s*-?\d+(\.\d+)?$`)

// ParseCoordinateLiteral recognizes "lat, lon" input that bypasses geocoding.
func ParseCoordinateLiteral(s string) (lat, lon float64, ok bool) {
	s = strings.TrimSpace(s)
	if !coordinateLiteral.MatchString(s) {
		return 0, 0, false
	}
	parts := strings.SplitN(s, ",", 2)
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
