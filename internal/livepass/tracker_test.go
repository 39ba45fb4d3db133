package livepass

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satfusion-desktop/internal/config"
)

var iss = config.TrackedSatellite{
	Name:  "ISS",
	Line1: "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
	Line2: "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760",
}

func TestPositionsMoveOverTime(t *testing.T) {
	tr, err := NewTracker([]config.TrackedSatellite{iss}, time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, 1, tr.Len())

	t1 := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	p1 := tr.PositionsAt(t1)
	p2 := tr.PositionsAt(t1.Add(10 * time.Minute))
	require.Len(t, p1, 1)
	require.Len(t, p2, 1)

	assert.NotEqual(t, p1[0].Lon, p2[0].Lon)
	for _, p := range append(p1, p2...) {
		assert.LessOrEqual(t, p.Lat, 52.5, "ISS inclination bounds latitude")
		assert.GreaterOrEqual(t, p.Lat, -52.5)
		assert.GreaterOrEqual(t, p.Lon, -180.0)
		assert.Less(t, p.Lon, 180.0)
		assert.InDelta(t, 420, p.AltitudeKm, 60)
	}
}

func TestInvalidTLEIsSkipped(t *testing.T) {
	bad := config.TrackedSatellite{Name: "BROKEN", Line1: "1 00000", Line2: "2 00000"}
	tr, err := NewTracker([]config.TrackedSatellite{bad, iss}, time.Second, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKEN")
	assert.Equal(t, 1, tr.Len())
}

func TestValidateTLE(t *testing.T) {
	assert.NoError(t, ValidateTLE(iss.Line1, iss.Line2))
	assert.Error(t, ValidateTLE(iss.Line2, iss.Line1))
	assert.Error(t, ValidateTLE(iss.Line1, "2 40697"+iss.Line2[7:]))
}

func TestNormalizeLon(t *testing.T) {
	assert.InDelta(t, -170.0, normalizeLon(190), 1e-9)
	assert.InDelta(t, 170.0, normalizeLon(-190), 1e-9)
	assert.InDelta(t, 45.0, normalizeLon(45), 1e-9)
}

func TestStartEmitsOnInterval(t *testing.T) {
	tr, err := NewTracker([]config.TrackedSatellite{iss}, 10*time.Millisecond, nil)
	require.NoError(t, err)

	var emits atomic.Int32
	tr.Start(context.Background(), func(ps []Position) {
		if len(ps) == 1 {
			emits.Add(1)
		}
	})
	assert.Eventually(t, func() bool { return emits.Load() >= 2 }, time.Second, 5*time.Millisecond)
	tr.Stop()
}
