// Package backend is the client for the analysis backend's JSON contract.
// Every call degrades to a safe default on failure; the accompanying error
// is informational and already logged.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"satfusion-desktop/internal/apperr"
	"satfusion-desktop/internal/common"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/observability"
	"satfusion-desktop/internal/ratelimit"
)

const userAgent = "satfusion-desktop"

// Client talks to the backend at a single configurable base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logging.Logger
	metrics    *observability.Collector
	limiter    *ratelimit.Handler
	agent      agentConfig
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option         { return func(c *Client) { c.httpClient = hc } }
func WithLogger(l logging.Logger) Option            { return func(c *Client) { c.log = l } }
func WithMetrics(m *observability.Collector) Option { return func(c *Client) { c.metrics = m } }
func WithRateLimiter(h *ratelimit.Handler) Option   { return func(c *Client) { c.limiter = h } }

// NewClient creates a backend client with a 15s request timeout.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		log:   logging.Noop(),
		agent: defaultAgentConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes GET /health. Any error or a status other than "ok" reads
// as disconnected.
func (c *Client) Health(ctx context.Context) HealthStatus {
	var out struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return HealthStatus{Connected: false, Status: "disconnected"}
	}
	if out.Status != "ok" {
		return HealthStatus{Connected: false, Status: "disconnected", Service: out.Service}
	}
	return HealthStatus{Connected: true, Status: out.Status, Service: out.Service}
}

// Search runs a catalog search. On failure it returns an empty, non-nil
// result set alongside the error.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	var out searchResponse
	if err := c.doJSON(ctx, "search", http.MethodPost, "/search", req, &out); err != nil {
		return []SearchResult{}, err
	}
	if out.Results == nil {
		out.Results = []SearchResult{}
	}
	agency := common.AgencyForSource(req.SourceID)
	for i := range out.Results {
		if out.Results[i].Source == "" {
			out.Results[i].Source = agency
		}
	}
	return out.Results, nil
}

// AnalyzeSpectral requests the band values at a point. On failure the
// response has no bands.
func (c *Client) AnalyzeSpectral(ctx context.Context, lat, lon float64) (SpectralResponse, error) {
	body := map[string]float64{"lat": lat, "lon": lon}
	var out SpectralResponse
	if err := c.doJSON(ctx, "spectral", http.MethodPost, "/spectral/analyze", body, &out); err != nil {
		return SpectralResponse{Bands: []Band{}}, err
	}
	if out.Bands == nil {
		out.Bands = []Band{}
	}
	return out, nil
}

// ProcessFusion asks the backend to run a fusion action. A backend reply
// with status "error" is returned as an error.
func (c *Client) ProcessFusion(ctx context.Context, action string) (FusionResponse, error) {
	body := map[string]string{"action": action}
	var out FusionResponse
	if err := c.doJSON(ctx, "fusion", http.MethodPost, "/fusion/process", body, &out); err != nil {
		return FusionResponse{Status: "error", Message: err.Error()}, err
	}
	if out.Status == "error" {
		return out, fmt.Errorf("fusion action %q rejected: %s", action, out.Message)
	}
	return out, nil
}

// statusError is returned for non-2xx responses.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "backend."+op)
	span.SetAttributes(attribute.String("http.method", method), attribute.String("backend.path", path))
	defer func() {
		c.metrics.ObserveBackend(op, start, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			c.log.Info(ctx, "backend.call_failed",
				logging.String("operation", op),
				logging.Err(err))
		}
		span.End()
	}()

	if c.limiter.IsRateLimited(ratelimit.ProviderBackend) {
		return apperr.New("backend."+op, apperr.KindBackendUnavailable, fmt.Errorf("rate limited"))
	}

	var body io.Reader
	if in != nil {
		data, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, merr)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.New("backend."+op, apperr.KindBackendUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.New("backend."+op, apperr.KindBackendUnavailable, err)
	}
	defer resp.Body.Close()
	c.limiter.CheckResponse(ratelimit.ProviderBackend, resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.New("backend."+op, apperr.KindBackendUnavailable,
			&statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.New("backend."+op, apperr.KindBackendUnavailable, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
