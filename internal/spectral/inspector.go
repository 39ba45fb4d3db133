// Package spectral inspects a single pixel: it fetches band reflectances
// from the backend and derives vegetation and moisture indices.
package spectral

import (
	"context"

	"satfusion-desktop/internal/backend"
	"satfusion-desktop/internal/logging"
)

// Band names used for index computation.
const (
	BandGreen = "Green"
	BandRed   = "Red"
	BandNIR   = "NIR"
)

// Analyzer is the backend's spectral-analysis operation.
type Analyzer interface {
	AnalyzeSpectral(ctx context.Context, lat, lon float64) (backend.SpectralResponse, error)
}

// SpectralSample is the result of one inspection. It is replaced wholesale
// by the next one.
type SpectralSample struct {
	Lat             float64            `json:"lat"`
	Lon             float64            `json:"lon"`
	Bands           map[string]float64 `json:"bands"`
	Wavelengths     map[string]string  `json:"wavelengths,omitempty"`
	BandOrder       []string           `json:"bandOrder"`
	Classification  string             `json:"classification"`
	NDVI            float64            `json:"ndvi"`
	NDWI            float64            `json:"ndwi"`
	VegetationClass string             `json:"vegetationClass"`
	MoistureClass   string             `json:"moistureClass"`
	NoData          bool               `json:"noData"`
}

// Inspector runs pixel inspections against an Analyzer.
type Inspector struct {
	analyzer  Analyzer
	log       logging.Logger
	onLoading func(loading bool)
}

// NewInspector creates an Inspector. onLoading, when set, is called with
// true before the backend request and false once a sample is ready.
func NewInspector(analyzer Analyzer, log logging.Logger, onLoading func(bool)) *Inspector {
	if log == nil {
		log = logging.Noop()
	}
	return &Inspector{analyzer: analyzer, log: log, onLoading: onLoading}
}

// Inspect samples the pixel at lat/lon. It never fails: a backend error
// produces a sample with no bands and NoData set.
func (i *Inspector) Inspect(ctx context.Context, lat, lon float64) SpectralSample {
	i.setLoading(true)
	defer i.setLoading(false)

	resp, err := i.analyzer.AnalyzeSpectral(ctx, lat, lon)
	if err != nil || len(resp.Bands) == 0 {
		if err != nil {
			i.log.Info(ctx, "spectral.no_data",
				logging.Float("lat", lat),
				logging.Float("lon", lon),
				logging.Err(err))
		}
		return noData(lat, lon)
	}
	return Sample(lat, lon, resp)
}

// Sample derives indices and classes from a backend response.
func Sample(lat, lon float64, resp backend.SpectralResponse) SpectralSample {
	s := SpectralSample{
		Lat:            lat,
		Lon:            lon,
		Bands:          make(map[string]float64, len(resp.Bands)),
		Wavelengths:    make(map[string]string, len(resp.Bands)),
		BandOrder:      make([]string, 0, len(resp.Bands)),
		Classification: resp.Classification,
	}
	for _, b := range resp.Bands {
		if _, dup := s.Bands[b.Name]; !dup {
			s.BandOrder = append(s.BandOrder, b.Name)
		}
		s.Bands[b.Name] = b.Value
		if b.Wavelength != "" {
			s.Wavelengths[b.Name] = b.Wavelength
		}
	}

	green, red, nir := s.Bands[BandGreen], s.Bands[BandRed], s.Bands[BandNIR]
	s.NDVI = NDVI(nir, red)
	s.NDWI = NDWI(green, nir)
	s.VegetationClass = ClassifyVegetation(s.NDVI)
	s.MoistureClass = ClassifyMoisture(s.NDWI)
	return s
}

func noData(lat, lon float64) SpectralSample {
	return SpectralSample{
		Lat:       lat,
		Lon:       lon,
		Bands:     map[string]float64{},
		BandOrder: []string{},
		NoData:    true,
	}
}

func (i *Inspector) setLoading(loading bool) {
	if i.onLoading != nil {
		i.onLoading(loading)
	}
}
