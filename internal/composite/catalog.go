// Package composite holds the static registry of band composites and the
// fusion options that can be layered on top of them.
package composite

import (
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Channels assigns a band code to each display channel.
type Channels struct {
	Red   string `yaml:"red" json:"red"`
	Green string `yaml:"green" json:"green"`
	Blue  string `yaml:"blue" json:"blue"`
}

// BandComposite is an immutable catalog entry.
type BandComposite struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	Channels         Channels `yaml:"channels" json:"channels"`
	Saturation       float64  `yaml:"saturation" json:"saturation"`
	Contrast         float64  `yaml:"contrast" json:"contrast"`
	HueRotateDegrees float64  `yaml:"hueRotateDegrees" json:"hueRotateDegrees"`
}

// VisualDelta is added component-wise onto a composite's baseline.
type VisualDelta struct {
	Saturation float64 `yaml:"saturation" json:"saturation"`
	Contrast   float64 `yaml:"contrast" json:"contrast"`
	HueRotate  float64 `yaml:"hueRotate" json:"hueRotate"`
}

// FusionOption is a toggleable simulated enhancement.
type FusionOption struct {
	ID      string      `yaml:"id" json:"id"`
	Name    string      `yaml:"name" json:"name"`
	Action  string      `yaml:"action" json:"action"` // backend /fusion/process action, empty for paint-only options
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Delta   VisualDelta `yaml:"delta" json:"delta"`
}

// Catalog is the read-only registry of composites and fusion option templates.
type Catalog struct {
	composites []BandComposite
	byID       map[string]int
	fusion     []FusionOption
}

type catalogFile struct {
	Composites    []BandComposite `yaml:"composites"`
	FusionOptions []FusionOption  `yaml:"fusionOptions"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = parse(defaultCatalogYAML)
	})
	return defaultCatalog, defaultErr
}

// Load parses a catalog document in the embedded format.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Composites) == 0 {
		return nil, fmt.Errorf("catalog has no composites")
	}

	c := &Catalog{
		composites: f.Composites,
		byID:       make(map[string]int, len(f.Composites)),
		fusion:     f.FusionOptions,
	}
	for i, comp := range f.Composites {
		if comp.ID == "" {
			return nil, fmt.Errorf("composite %d has no id", i)
		}
		if _, dup := c.byID[comp.ID]; dup {
			return nil, fmt.Errorf("duplicate composite id: %s", comp.ID)
		}
		c.byID[comp.ID] = i
	}
	seen := make(map[string]bool, len(f.FusionOptions))
	for i := range c.fusion {
		id := c.fusion[i].ID
		if id == "" || seen[id] {
			return nil, fmt.Errorf("invalid or duplicate fusion option id: %q", id)
		}
		seen[id] = true
		c.fusion[i].Enabled = false
	}
	return c, nil
}

// Composite looks up a composite by id.
func (c *Catalog) Composite(id string) (BandComposite, bool) {
	i, ok := c.byID[id]
	if !ok {
		return BandComposite{}, false
	}
	return c.composites[i], true
}

// Composites returns every composite in declaration order.
func (c *Catalog) Composites() []BandComposite {
	out := make([]BandComposite, len(c.composites))
	copy(out, c.composites)
	return out
}

// FusionOptions returns a fresh, all-disabled set of fusion options.
func (c *Catalog) FusionOptions() []FusionOption {
	out := make([]FusionOption, len(c.fusion))
	copy(out, c.fusion)
	return out
}

// DefaultCompositeID is the composite selected on startup.
func (c *Catalog) DefaultCompositeID() string {
	return c.composites[0].ID
}
