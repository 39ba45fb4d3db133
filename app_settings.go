package main

import (
	"fmt"
	"log"

	"satfusion-desktop/internal/config"
	"satfusion-desktop/internal/sources"
	"satfusion-desktop/internal/wmts"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings validates and saves user settings. Service URLs and polling
// intervals apply on next restart.
func (a *App) SaveSettings(settings *config.UserSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	settings.InstallID = a.settings.InstallID
	if err := config.SaveSettings(settings); err != nil {
		return err
	}
	a.settings = settings

	log.Printf("Settings saved. Service and polling changes will apply on next restart.")
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// ===================
// Custom Sources
// ===================

// AddCustomSource adds a new custom imagery source
func (a *App) AddCustomSource(source config.CustomSource) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, existing := range a.settings.CustomSources {
		if existing.Name == source.Name {
			return fmt.Errorf("source with name '%s' already exists", source.Name)
		}
	}
	if err := a.viewer.AddSource(source); err != nil {
		return err
	}

	a.settings.CustomSources = append(a.settings.CustomSources, source)
	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	a.emitLog(fmt.Sprintf("Added custom source: %s (%s)", source.Name, source.Type))
	return nil
}

// RemoveCustomSource removes a custom imagery source by name
func (a *App) RemoveCustomSource(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.viewer.RemoveSource(name); err != nil {
		return err
	}

	kept := make([]config.CustomSource, 0, len(a.settings.CustomSources))
	for _, source := range a.settings.CustomSources {
		if source.Name != name {
			kept = append(kept, source)
		}
	}
	a.settings.CustomSources = kept

	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	a.emitLog(fmt.Sprintf("Removed custom source: %s", name))
	return nil
}

// UpdateCustomSource replaces an existing custom source
func (a *App) UpdateCustomSource(name string, source config.CustomSource) error {
	if err := config.ValidateCustomSource(&source); err != nil {
		return err
	}
	if err := a.RemoveCustomSource(name); err != nil {
		return err
	}
	return a.AddCustomSource(source)
}

// ===================
// WMTS Integration
// ===================

// FetchWMTSLayers fetches available layers from a WMTS service
func (a *App) FetchWMTSLayers(url string) ([]wmts.LayerInfo, error) {
	layers, err := a.viewer.ListWMTSLayers(a.ctx, url)
	if err != nil {
		return nil, err
	}
	a.emitLog(fmt.Sprintf("Fetched %d layers from WMTS service", len(layers)))
	return layers, nil
}

// CreateSourceFromWMTSLayer creates a custom source from a WMTS layer
func (a *App) CreateSourceFromWMTSLayer(layer wmts.LayerInfo, attribution string) config.CustomSource {
	return sources.FromWMTSLayer(layer, attribution)
}
