package backend

// HealthStatus is the connectivity indicator's input.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
	Service   string `json:"service,omitempty"`
}

// SearchRequest is the catalog search body. BBox is [minLon,minLat,maxLon,maxLat].
type SearchRequest struct {
	SourceID  string    `json:"source_id"`
	BBox      []float64 `json:"bbox"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

// SearchResult is one catalog scene.
type SearchResult struct {
	ID                string    `json:"id"`
	BBox              []float64 `json:"bbox"`
	AcquisitionDate   string    `json:"date"`
	SatelliteID       string    `json:"sensor"`
	CloudCoverPercent float64   `json:"cloud_cover"`
	Source            string    `json:"source,omitempty"`
	Thumbnail         string    `json:"thumbnail,omitempty"`
}

type searchResponse struct {
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// Band is one spectral reading.
type Band struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Wavelength string  `json:"wavelength"`
}

// SpectralResponse is the backend's pixel analysis.
type SpectralResponse struct {
	Bands          []Band `json:"bands"`
	Classification string `json:"classification"`
	Message        string `json:"message,omitempty"`
}

// FusionResponse acknowledges a fusion action.
type FusionResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Metrics map[string]string `json:"metrics,omitempty"`
}

// Action is a UI action proposed by the agent.
type Action struct {
	Type   string         `json:"type"` // navigate, toggle_fusion, select_composite, select_source
	Params map[string]any `json:"params,omitempty"`
}

// AgentResponse is the agent's reasoning trace and answer.
type AgentResponse struct {
	Query    string   `json:"query"`
	Answer   string   `json:"answer"`
	Thoughts []string `json:"thoughts"`
	Actions  []Action `json:"actions"`
	Persona  string   `json:"agent_persona,omitempty"`
	Offline  bool     `json:"offline"`
}
