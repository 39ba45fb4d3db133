package naming

import (
	"fmt"
	"math"
	"strings"
)

// QuadkeyForPoint returns the Bing-style quadkey of the tile containing the
// point at the given zoom. Used as a stable key for nearby lookups.
func QuadkeyForPoint(lat, lon float64, zoom int) string {
	n := math.Pow(2, float64(zoom))
	x := int((lon + 180.0) / 360.0 * n)
	latRad := lat * math.Pi / 180.0
	y := int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	max := int(n) - 1
	x = clampInt(x, 0, max)
	y = clampInt(y, 0, max)

	var quadkey strings.Builder
	for i := zoom; i > 0; i-- {
		digit := 0
		mask := 1 << (i - 1)
		if (x & mask) != 0 {
			digit++
		}
		if (y & mask) != 0 {
			digit += 2
		}
		quadkey.WriteByte(byte('0' + digit))
	}
	return quadkey.String()
}

// FormatCoordinate renders a single coordinate with a hemisphere suffix,
// e.g. 20.5900°N.
func FormatCoordinate(coord float64, isLat bool) string {
	var dir string
	switch {
	case isLat && coord < 0:
		dir = "S"
	case isLat:
		dir = "N"
	case coord < 0:
		dir = "W"
	default:
		dir = "E"
	}
	return fmt.Sprintf("%.4f°%s", math.Abs(coord), dir)
}

// CoordinateLabel is the display name used for coordinate-only targets.
func CoordinateLabel(lat, lon float64) string {
	return FormatCoordinate(lat, true) + ", " + FormatCoordinate(lon, false)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
