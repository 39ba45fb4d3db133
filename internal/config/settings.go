package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// BackendURLEnv overrides the configured backend base URL when set.
const BackendURLEnv = "SATFUSION_BACKEND_URL"

// CustomSource represents a user-added imagery source
type CustomSource struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "wmts", "wms", "xyz"
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
	MaxZoom     int    `json:"maxZoom,omitempty"`
	MinZoom     int    `json:"minZoom,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// TrackedSatellite is a two-line element set followed by the live pass tracker.
type TrackedSatellite struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Remote services
	BackendURL  string `json:"backendUrl"`
	GeocoderURL string `json:"geocoderUrl"`

	// Navigation
	FlightDurationMs int     `json:"flightDurationMs"`
	DefaultZoom      float64 `json:"defaultZoom"`
	DefaultCenterLat float64 `json:"defaultCenterLat"`
	DefaultCenterLon float64 `json:"defaultCenterLon"`
	SearchWindowDays int     `json:"searchWindowDays"`

	// Layers
	DefaultComposite string         `json:"defaultComposite"`
	DefaultSource    string         `json:"defaultSource"`
	CustomSources    []CustomSource `json:"customSources"`

	// Background polling
	HealthIntervalSec   int                `json:"healthIntervalSec"`
	LivePassIntervalSec int                `json:"livePassIntervalSec"`
	TrackedSatellites   []TrackedSatellite `json:"trackedSatellites"`

	// Caches
	GeocodeCacheEntries int `json:"geocodeCacheEntries"`
	GeocodeCacheTTLMin  int `json:"geocodeCacheTTLMin"`

	// UI preferences
	Theme            string `json:"theme"` // "light", "dark", "system"
	AnalyticsEnabled bool   `json:"analyticsEnabled"`
	InstallID        string `json:"installId,omitempty"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		BackendURL:          "http://127.0.0.1:8000",
		GeocoderURL:         "https://nominatim.openstreetmap.org",
		FlightDurationMs:    3000,
		DefaultZoom:         4,
		DefaultCenterLat:    20.5937, // India
		DefaultCenterLon:    78.9629,
		SearchWindowDays:    30,
		DefaultComposite:    "true-color",
		DefaultSource:       "esri-world-imagery",
		CustomSources:       []CustomSource{},
		HealthIntervalSec:   10,
		LivePassIntervalSec: 5,
		TrackedSatellites: []TrackedSatellite{
			{
				Name:  "SENTINEL-2A",
				Line1: "1 40697U 15028A   24001.50000000  .00000023  00000-0  25000-4 0  9990",
				Line2: "2 40697  98.5672  76.1200 0001093  95.1500 264.9800 14.30820000448805",
			},
		},
		GeocodeCacheEntries: 256,
		GeocodeCacheTTLMin:  60,
		Theme:               "system",
		AnalyticsEnabled:    true,
	}
}

// FlightDuration returns the configured flight animation length.
func (s *UserSettings) FlightDuration() time.Duration {
	return time.Duration(s.FlightDurationMs) * time.Millisecond
}

// HealthInterval returns the health polling period.
func (s *UserSettings) HealthInterval() time.Duration {
	return time.Duration(s.HealthIntervalSec) * time.Second
}

// LivePassInterval returns the live pass polling period.
func (s *UserSettings) LivePassInterval() time.Duration {
	return time.Duration(s.LivePassIntervalSec) * time.Second
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// ~/.walkthru-earth/satfusion-desktop/settings/
	baseDir := filepath.Join(homeDir, ".walkthru-earth", "satfusion-desktop", "settings")
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from the default location
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path, merging defaults for missing
// fields and applying the backend URL environment override.
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(settingsPath)
	switch {
	case os.IsNotExist(err):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	default:
		var loaded UserSettings
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
		mergeDefaults(&loaded, settings)
		settings = &loaded
	}

	if v := os.Getenv(BackendURLEnv); v != "" {
		settings.BackendURL = v
	}
	return settings, nil
}

func mergeDefaults(s, defaults *UserSettings) {
	if s.BackendURL == "" {
		s.BackendURL = defaults.BackendURL
	}
	if s.GeocoderURL == "" {
		s.GeocoderURL = defaults.GeocoderURL
	}
	if s.FlightDurationMs == 0 {
		s.FlightDurationMs = defaults.FlightDurationMs
	}
	if s.DefaultZoom == 0 {
		s.DefaultZoom = defaults.DefaultZoom
	}
	if s.SearchWindowDays == 0 {
		s.SearchWindowDays = defaults.SearchWindowDays
	}
	if s.DefaultComposite == "" {
		s.DefaultComposite = defaults.DefaultComposite
	}
	if s.DefaultSource == "" {
		s.DefaultSource = defaults.DefaultSource
	}
	if s.HealthIntervalSec == 0 {
		s.HealthIntervalSec = defaults.HealthIntervalSec
	}
	if s.LivePassIntervalSec == 0 {
		s.LivePassIntervalSec = defaults.LivePassIntervalSec
	}
	if s.TrackedSatellites == nil {
		s.TrackedSatellites = defaults.TrackedSatellites
	}
	if s.GeocodeCacheEntries == 0 {
		s.GeocodeCacheEntries = defaults.GeocodeCacheEntries
	}
	if s.GeocodeCacheTTLMin == 0 {
		s.GeocodeCacheTTLMin = defaults.GeocodeCacheTTLMin
	}
	if s.Theme == "" {
		s.Theme = defaults.Theme
	}
	if s.CustomSources == nil {
		s.CustomSources = []CustomSource{}
	}
}

// SaveSettings saves user settings to the default location
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo validates and writes settings to path.
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	if err := Validate(settings); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Validate checks the fields the core depends on.
func Validate(s *UserSettings) error {
	if err := validateHTTPURL("backend URL", s.BackendURL); err != nil {
		return err
	}
	if err := validateHTTPURL("geocoder URL", s.GeocoderURL); err != nil {
		return err
	}
	if s.FlightDurationMs <= 0 {
		return fmt.Errorf("flight duration must be positive")
	}
	if s.HealthIntervalSec <= 0 || s.LivePassIntervalSec <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if s.SearchWindowDays <= 0 {
		return fmt.Errorf("search window must be positive")
	}
	for i := range s.CustomSources {
		if err := ValidateCustomSource(&s.CustomSources[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	return nil
}

// ValidateCustomSource validates a custom source configuration
func ValidateCustomSource(source *CustomSource) error {
	if source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if source.Type == "" {
		return fmt.Errorf("source type is required")
	}

	validTypes := map[string]bool{
		"wmts": true,
		"wms":  true,
		"xyz":  true,
	}
	if !validTypes[source.Type] {
		return fmt.Errorf("invalid source type: %s (must be wmts, wms, or xyz)", source.Type)
	}
	return nil
}
