// Package sources keeps the session's raster data sources and their toggles.
package sources

import (
	"fmt"
	"sync"

	"github.com/samber/lo"

	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/wmts"
)

// Kind is how the map widget fetches a source.
type Kind string

const (
	KindXYZ  Kind = "xyz"
	KindWMS  Kind = "wms"
	KindWMTS Kind = "wmts"
)

// Exclusivity groups. Base imagery sources share GroupOptical; reference
// overlays are additive and stay visible alongside whichever base wins.
const (
	GroupOptical   = "optical"
	GroupReference = "reference"
)

var additiveGroups = map[string]bool{GroupReference: true}

// AdditiveGroup reports whether every member of group may be visible at
// once. All other groups are exclusive.
func AdditiveGroup(group string) bool { return additiveGroups[group] }

// DataSource is one toggleable raster layer.
type DataSource struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ExclusivityGroup string `json:"exclusivityGroup"`
	Enabled          bool   `json:"enabled"`
	Kind             Kind   `json:"kind"`
	TileURL          string `json:"tileUrl"`
	Attribution      string `json:"attribution,omitempty"`
	MinZoom          int    `json:"minZoom"`
	MaxZoom          int    `json:"maxZoom"`
	// Searchable sources are backed by the catalog search endpoint.
	Searchable bool `json:"searchable"`
}

// Defaults returns the built-in sources in priority order: later enabled
// entries in a group win over earlier ones.
func Defaults() []DataSource {
	return []DataSource{
		{
			ID:               "esri-world-imagery",
			DisplayName:      "Esri World Imagery",
			ExclusivityGroup: GroupOptical,
			Enabled:          true,
			Kind:             KindXYZ,
			TileURL:          "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution:      "Esri, Maxar, Earthstar Geographics",
			MaxZoom:          19,
		},
		{
			ID:               "sentinel-2",
			DisplayName:      "Sentinel-2 L2A",
			ExclusivityGroup: GroupOptical,
			Kind:             KindXYZ,
			TileURL:          "https://tiles.maps.eox.at/wmts/1.0.0/s2cloudless-2020_3857/default/g/{z}/{y}/{x}.jpg",
			Attribution:      "Sentinel-2 cloudless by EOX (Copernicus Sentinel data)",
			MaxZoom:          15,
			Searchable:       true,
		},
		{
			ID:               "landsat-8",
			DisplayName:      "Landsat 8/9",
			ExclusivityGroup: GroupOptical,
			Kind:             KindWMTS,
			TileURL:          "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best/Landsat_WELD_CorrectedReflectance_TrueColor_Global_Annual/default/2000-12-01/GoogleMapsCompatible_Level12/{z}/{y}/{x}.jpg",
			Attribution:      "NASA GIBS / USGS Landsat",
			MaxZoom:          12,
			Searchable:       true,
		},
		{
			ID:               "isro-bhuvan",
			DisplayName:      "ISRO Bhuvan (LISS-III/IV)",
			ExclusivityGroup: GroupOptical,
			Kind:             KindWMS,
			TileURL:          "https://bhuvan-vec2.nrsc.gov.in/bhuvan/wms",
			Attribution:      "ISRO / NRSC Bhuvan",
			MaxZoom:          18,
			Searchable:       true,
		},
		{
			ID:               "reference-labels",
			DisplayName:      "Boundaries & Places",
			ExclusivityGroup: GroupReference,
			Enabled:          true,
			Kind:             KindXYZ,
			TileURL:          "https://server.arcgisonline.com/ArcGIS/rest/services/Reference/World_Boundaries_and_Places/MapServer/tile/{z}/{y}/{x}",
			Attribution:      "Esri",
			MaxZoom:          19,
		},
	}
}

// FromCustom converts a user-configured source into a base imagery source.
func FromCustom(c config.CustomSource) DataSource {
	maxZoom := c.MaxZoom
	if maxZoom == 0 {
		maxZoom = 18
	}
	tileURL := c.URL
	if c.Type == string(KindWMTS) {
		tileURL = wmts.ConvertTemplateToXYZ(tileURL)
	}
	return DataSource{
		ID:               "custom:" + c.Name,
		DisplayName:      c.Name,
		ExclusivityGroup: GroupOptical,
		Enabled:          c.Enabled,
		Kind:             Kind(c.Type),
		TileURL:          tileURL,
		Attribution:      c.Attribution,
		MinZoom:          c.MinZoom,
		MaxZoom:          maxZoom,
	}
}

// FromWMTSLayer builds a custom source config from an imported WMTS layer.
func FromWMTSLayer(layer wmts.LayerInfo, attribution string) config.CustomSource {
	return config.CustomSource{
		Name:        layer.Title,
		Type:        string(KindWMTS),
		URL:         wmts.ConvertTemplateToXYZ(layer.TemplateURL),
		Attribution: attribution,
		MaxZoom:     18,
		Enabled:     false,
	}
}

// Registry is the mutable per-session list of sources. Toggles are
// independent; conflicts inside a group are resolved by the compositor.
type Registry struct {
	mu      sync.RWMutex
	sources []DataSource
}

// NewRegistry seeds the registry with the given sources in order.
func NewRegistry(initial []DataSource) *Registry {
	r := &Registry{}
	for _, s := range initial {
		if _, exists := r.index(s.ID); exists {
			continue
		}
		r.sources = append(r.sources, s)
	}
	return r
}

// List returns a snapshot of all sources in declaration order.
func (r *Registry) List() []DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DataSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Get returns a source by id.
func (r *Registry) Get(id string) (DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index(id)
	if !ok {
		return DataSource{}, false
	}
	return r.sources[i], true
}

// SetEnabled flips one source's own flag.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index(id)
	if !ok {
		return fmt.Errorf("source '%s' not found", id)
	}
	r.sources[i].Enabled = enabled
	return nil
}

// Select enables id and disables the other members of its exclusivity group.
// Used when an agent or the settings default names a single base source.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index(id)
	if !ok {
		return fmt.Errorf("source '%s' not found", id)
	}
	group := r.sources[i].ExclusivityGroup
	for j := range r.sources {
		if r.sources[j].ExclusivityGroup == group {
			r.sources[j].Enabled = j == i
		}
	}
	return nil
}

// Add appends a source, making it the highest priority member of its group.
func (r *Registry) Add(s DataSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index(s.ID); exists {
		return fmt.Errorf("source with id '%s' already exists", s.ID)
	}
	r.sources = append(r.sources, s)
	return nil
}

// Remove drops a source.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index(id); !ok {
		return fmt.Errorf("source '%s' not found", id)
	}
	r.sources = lo.Reject(r.sources, func(s DataSource, _ int) bool { return s.ID == id })
	return nil
}

// Searchable returns the ids of catalog-backed sources.
func (r *Registry) Searchable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(r.sources, func(s DataSource, _ int) (string, bool) {
		return s.ID, s.Searchable
	})
}

func (r *Registry) index(id string) (int, bool) {
	_, i, ok := lo.FindIndexOf(r.sources, func(s DataSource) bool { return s.ID == id })
	return i, ok
}
