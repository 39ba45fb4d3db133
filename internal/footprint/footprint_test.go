package footprint

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satfusion-desktop/internal/backend"
)

func TestEmptyInputYieldsEmptyCollection(t *testing.T) {
	fc := ToOverlayGeometry(nil)
	require.NotNil(t, fc)
	assert.Empty(t, fc.Features)

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestSingleResultProducesClosedRing(t *testing.T) {
	fc := ToOverlayGeometry([]backend.SearchResult{{
		ID:                "a",
		BBox:              []float64{10, 20, 12, 22},
		AcquisitionDate:   "2024-03-01",
		SatelliteID:       "Sentinel-2",
		CloudCoverPercent: 4.2,
	}})
	require.Len(t, fc.Features, 1)

	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	ring := poly[0]
	require.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[4])
	assert.Equal(t, orb.Point{10, 20}, ring[0])
	assert.Equal(t, orb.Point{12, 22}, ring[2])

	props := fc.Features[0].Properties
	assert.Equal(t, "a", props["id"])
	assert.Equal(t, "2024-03-01", props["date"])
	assert.Equal(t, "Mar 01, 2024", props["displayDate"])
	assert.NotContains(t, props, "agency")
	assert.Equal(t, "Sentinel-2", props["satellite"])
	assert.Equal(t, 4.2, props["cloudCover"])
}

func TestMalformedBoxesAreSkipped(t *testing.T) {
	fc := ToOverlayGeometry([]backend.SearchResult{
		{ID: "short", BBox: []float64{1, 2, 3}},
		{ID: "ok", BBox: []float64{0, 0, 1, 1}},
	})
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "ok", fc.Features[0].Properties["id"])
}

func TestBounds(t *testing.T) {
	_, ok := Bounds(ToOverlayGeometry(nil))
	assert.False(t, ok)

	b, ok := Bounds(ToOverlayGeometry([]backend.SearchResult{
		{ID: "a", BBox: []float64{10, 20, 12, 22}},
		{ID: "b", BBox: []float64{-5, 15, 0, 21}},
	}))
	require.True(t, ok)
	assert.Equal(t, orb.Point{-5, 15}, b.Min)
	assert.Equal(t, orb.Point{12, 22}, b.Max)
}

func TestStoreReplacesWholesale(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Latest().Features)

	s.Publish(ToOverlayGeometry([]backend.SearchResult{{ID: "a", BBox: []float64{0, 0, 1, 1}}}))
	assert.Len(t, s.Latest().Features, 1)

	s.Publish(nil)
	data, err := s.MarshalLatest()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded["features"])
}
