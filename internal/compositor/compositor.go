// Package compositor derives the map's paint parameters from the layer
// toggles, the selected band composite and the enabled fusion options.
package compositor

import (
	"sort"

	"satfusion-desktop/internal/composite"
	"satfusion-desktop/internal/sources"
)

// PaintState is what the map viewport applies to its raster layers.
type PaintState struct {
	ActiveSourceID   string             `json:"activeSourceId"`
	LayerOpacities   map[string]float64 `json:"layerOpacities"`
	CompositeID      string             `json:"compositeId"`
	Saturation       float64            `json:"saturation"`
	Contrast         float64            `json:"contrast"`
	HueRotateDegrees float64            `json:"hueRotateDegrees"`
}

// ComputePaintState is pure: the same three inputs always give the same state.
//
// Within an exclusive group the last enabled source in declaration order wins
// and is the only member with opacity 1. Additive groups are not resolved;
// each member is visible exactly when enabled. The active source is the
// winner of the first exclusive group that has one.
//
// Visual parameters are the composite baseline plus the sum of every enabled
// fusion option's delta. Values are not clamped.
func ComputePaintState(srcs []sources.DataSource, comp composite.BandComposite, fusion []composite.FusionOption) PaintState {
	state := PaintState{
		LayerOpacities: make(map[string]float64, len(srcs)),
		CompositeID:    comp.ID,
	}

	winners := make(map[string]string)
	var groupOrder []string
	for _, s := range srcs {
		if sources.AdditiveGroup(s.ExclusivityGroup) {
			continue
		}
		if _, seen := winners[s.ExclusivityGroup]; !seen {
			winners[s.ExclusivityGroup] = ""
			groupOrder = append(groupOrder, s.ExclusivityGroup)
		}
		if s.Enabled {
			winners[s.ExclusivityGroup] = s.ID
		}
	}

	for _, s := range srcs {
		var opacity float64
		if sources.AdditiveGroup(s.ExclusivityGroup) {
			if s.Enabled {
				opacity = 1
			}
		} else if winners[s.ExclusivityGroup] == s.ID {
			opacity = 1
		}
		state.LayerOpacities[s.ID] = opacity
	}

	for _, g := range groupOrder {
		if id := winners[g]; id != "" {
			state.ActiveSourceID = id
			break
		}
	}

	delta := sumEnabled(fusion)
	state.Saturation = comp.Saturation + delta.Saturation
	state.Contrast = comp.Contrast + delta.Contrast
	state.HueRotateDegrees = comp.HueRotateDegrees + delta.HueRotate
	return state
}

// sumEnabled adds deltas in id order so any permutation of the input yields
// bit-identical floating point sums.
func sumEnabled(fusion []composite.FusionOption) composite.VisualDelta {
	enabled := make([]composite.FusionOption, 0, len(fusion))
	for _, f := range fusion {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].ID < enabled[j].ID })

	var total composite.VisualDelta
	for _, f := range enabled {
		total.Saturation += f.Delta.Saturation
		total.Contrast += f.Delta.Contrast
		total.HueRotate += f.Delta.HueRotate
	}
	return total
}
