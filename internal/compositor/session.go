package compositor

import (
	"fmt"
	"sync"

	"satfusion-desktop/internal/composite"
	"satfusion-desktop/internal/sources"
)

// Session holds the operator's current layer selections and recomputes the
// paint state on demand.
type Session struct {
	mu        sync.Mutex
	catalog   *composite.Catalog
	registry  *sources.Registry
	composite composite.BandComposite
	fusion    []composite.FusionOption
}

// NewSession starts with compositeID selected and every fusion option off.
// An unknown id falls back to the catalog default.
func NewSession(catalog *composite.Catalog, registry *sources.Registry, compositeID string) *Session {
	comp, ok := catalog.Composite(compositeID)
	if !ok {
		comp, _ = catalog.Composite(catalog.DefaultCompositeID())
	}
	return &Session{
		catalog:   catalog,
		registry:  registry,
		composite: comp,
		fusion:    catalog.FusionOptions(),
	}
}

// SelectComposite switches the band composite.
func (s *Session) SelectComposite(id string) error {
	comp, ok := s.catalog.Composite(id)
	if !ok {
		return fmt.Errorf("composite '%s' not found", id)
	}
	s.mu.Lock()
	s.composite = comp
	s.mu.Unlock()
	return nil
}

// SetFusion toggles a fusion option and returns the option as stored.
func (s *Session) SetFusion(id string, enabled bool) (composite.FusionOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.fusion {
		if s.fusion[i].ID == id {
			s.fusion[i].Enabled = enabled
			return s.fusion[i], nil
		}
	}
	return composite.FusionOption{}, fmt.Errorf("fusion option '%s' not found", id)
}

// Composite returns the selected composite.
func (s *Session) Composite() composite.BandComposite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composite
}

// FusionOptions returns a snapshot of the fusion toggles.
func (s *Session) FusionOptions() []composite.FusionOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]composite.FusionOption, len(s.fusion))
	copy(out, s.fusion)
	return out
}

// Sources exposes the registry backing this session.
func (s *Session) Sources() *sources.Registry {
	return s.registry
}

// Paint computes the current paint state.
func (s *Session) Paint() PaintState {
	srcs := s.registry.List()
	s.mu.Lock()
	comp := s.composite
	fusion := make([]composite.FusionOption, len(s.fusion))
	copy(fusion, s.fusion)
	s.mu.Unlock()
	return ComputePaintState(srcs, comp, fusion)
}
