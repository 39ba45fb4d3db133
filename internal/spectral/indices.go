package spectral

// Vegetation classes by NDVI.
const (
	DenseVegetation    = "Dense Vegetation"
	ModerateVegetation = "Moderate Vegetation"
	SparseVegetation   = "Sparse Vegetation"
	NoVegetation       = "No Vegetation"
)

// Moisture classes by NDWI.
const (
	WaterBody    = "Water Body"
	HighMoisture = "High Moisture"
	LowMoisture  = "Low Moisture"
)

// NDVI is (NIR - Red) / (NIR + Red), or 0 when the denominator is zero.
func NDVI(nir, red float64) float64 {
	return normalizedDifference(nir, red)
}

// NDWI is the McFeeters index (Green - NIR) / (Green + NIR), or 0 when the
// denominator is zero.
func NDWI(green, nir float64) float64 {
	return normalizedDifference(green, nir)
}

func normalizedDifference(a, b float64) float64 {
	sum := a + b
	if sum == 0 {
		return 0
	}
	return (a - b) / sum
}

// ClassifyVegetation buckets an NDVI value.
func ClassifyVegetation(ndvi float64) string {
	switch {
	case ndvi > 0.4:
		return DenseVegetation
	case ndvi > 0.2:
		return ModerateVegetation
	case ndvi > 0:
		return SparseVegetation
	default:
		return NoVegetation
	}
}

// ClassifyMoisture buckets an NDWI value.
func ClassifyMoisture(ndwi float64) string {
	switch {
	case ndwi > 0.2:
		return WaterBody
	case ndwi > 0:
		return HighMoisture
	default:
		return LowMoisture
	}
}
