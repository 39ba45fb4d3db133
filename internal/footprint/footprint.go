// Package footprint turns catalog search results into GeoJSON overlay
// polygons for the map.
package footprint

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/common"
)

// ToOverlayGeometry expands every result's [minLon,minLat,maxLon,maxLat]
// box into a closed polygon ring. Results without a four-value box are
// skipped. An empty input yields an empty collection, which clears the
// overlay.
func ToOverlayGeometry(results []backend.SearchResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		if len(r.BBox) != 4 {
			continue
		}
		minLon, minLat, maxLon, maxLat := r.BBox[0], r.BBox[1], r.BBox[2], r.BBox[3]
		ring := orb.Ring{
			{minLon, minLat},
			{maxLon, minLat},
			{maxLon, maxLat},
			{minLon, maxLat},
			{minLon, minLat},
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.ID = r.ID
		f.Properties["id"] = r.ID
		f.Properties["date"] = r.AcquisitionDate
		f.Properties["displayDate"] = common.DisplayFromISO(r.AcquisitionDate)
		f.Properties["satellite"] = r.SatelliteID
		f.Properties["cloudCover"] = r.CloudCoverPercent
		if r.Source != "" {
			f.Properties["agency"] = r.Source
		}
		if r.Thumbnail != "" {
			f.Properties["thumbnail"] = r.Thumbnail
		}
		fc.Append(f)
	}
	return fc
}

// Bounds returns the envelope of every footprint, or false when the
// collection is empty.
func Bounds(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil || len(fc.Features) == 0 {
		return orb.Bound{}, false
	}
	b := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b, true
}

// Store holds the most recently published overlay. Publishing replaces the
// previous collection wholesale.
type Store struct {
	mu     sync.RWMutex
	latest *geojson.FeatureCollection
}

// NewStore returns a store holding an empty collection.
func NewStore() *Store {
	return &Store{latest: geojson.NewFeatureCollection()}
}

// Publish replaces the stored overlay.
func (s *Store) Publish(fc *geojson.FeatureCollection) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	s.mu.Lock()
	s.latest = fc
	s.mu.Unlock()
}

// Latest returns the stored overlay.
func (s *Store) Latest() *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// MarshalLatest encodes the stored overlay as GeoJSON.
func (s *Store) MarshalLatest() ([]byte, error) {
	return s.Latest().MarshalJSON()
}
