package common

// Agency names reported by the catalog for each searchable source
const (
	AgencyESA  = "ESA"
	AgencyNASA = "NASA"
	AgencyISRO = "ISRO"
)

// Searchable source identifiers understood by the backend catalog
const (
	SourceSentinel2  = "sentinel-2"
	SourceLandsat8   = "landsat-8"
	SourceISROBhuvan = "isro-bhuvan"
)

// AgencyForSource returns the agency operating a searchable source, or ""
// for sources the catalog does not know
func AgencyForSource(sourceID string) string {
	switch sourceID {
	case SourceSentinel2:
		return AgencyESA
	case SourceLandsat8:
		return AgencyNASA
	case SourceISROBhuvan:
		return AgencyISRO
	default:
		return ""
	}
}
