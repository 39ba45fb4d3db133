package naming

import (
	"fmt"
	"strings"
)

// FootprintsFilename creates a standardized name for exported search footprints.
// Format: {source}_{date}_{quadkey}_footprints.geojson
func FootprintsFilename(sourceID, date string, lat, lon float64) string {
	source := strings.NewReplacer("/", "-", ":", "-", " ", "-").Replace(sourceID)
	if source == "" {
		source = "all"
	}
	return fmt.Sprintf("%s_%s_%s_footprints.geojson", source, date, QuadkeyForPoint(lat, lon, 12))
}
