// Package geocode resolves place names to coordinates through a
// Nominatim-compatible service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"satfusion-desktop/internal/apperr"
	"satfusion-desktop/internal/cache"
	"satfusion-desktop/internal/geo"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/ratelimit"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Result is one geocoding candidate. BBox keeps the service's
// [minLat,maxLat,minLon,maxLon] string order.
type Result struct {
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	BBox        geo.GeocoderBox `json:"boundingBox,omitempty"`
	DisplayName string          `json:"displayName"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
}

type place struct {
	Lat         string          `json:"lat"`
	Lon         string          `json:"lon"`
	DisplayName string          `json:"display_name"`
	BoundingBox []string        `json:"boundingbox"`
	GeoJSON     json.RawMessage `json:"geojson,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func (p place) toResult() (Result, bool) {
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err1 != nil || err2 != nil {
		return Result{}, false
	}
	return Result{
		Lat:         lat,
		Lon:         lon,
		BBox:        geo.GeocoderBox(p.BoundingBox),
		DisplayName: p.DisplayName,
		Geometry:    p.GeoJSON,
	}, true
}

// Client is a polite Nominatim client: requests are paced to one per
// second, identical in-flight lookups are collapsed and answers are cached.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	pace       *rate.Limiter
	group      singleflight.Group
	answers    *cache.Cache[string, []Result]
	limiter    *ratelimit.Handler
	log        logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option       { return func(c *Client) { c.httpClient = hc } }
func WithLogger(l logging.Logger) Option          { return func(c *Client) { c.log = l } }
func WithRateLimiter(h *ratelimit.Handler) Option { return func(c *Client) { c.limiter = h } }
func WithPace(l *rate.Limiter) Option             { return func(c *Client) { c.pace = l } }
func WithUserAgent(ua string) Option              { return func(c *Client) { c.userAgent = ua } }
func WithTimeout(d time.Duration) Option          { return func(c *Client) { c.timeout = d } }

// WithCache replaces the default answer cache.
func WithCache(answers *cache.Cache[string, []Result]) Option {
	return func(c *Client) { c.answers = answers }
}

// NewClient creates a geocoder for baseURL, or DefaultBaseURL when empty.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "satfusion-desktop/1.0",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		timeout:    10 * time.Second,
		pace:       rate.NewLimiter(rate.Every(time.Second), 1),
		answers:    cache.New[string, []Result](cache.DefaultConfig()),
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search looks up a free-text place name. No candidates yields an empty
// slice and a nil error; the caller decides whether that is NotFound.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	key := "search:" + strings.ToLower(query)

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("polygon_geojson", "1")

	return c.lookup(ctx, key, "/search", params, func(data []byte) ([]Result, error) {
		var places []place
		if err := json.Unmarshal(data, &places); err != nil {
			return nil, err
		}
		out := make([]Result, 0, len(places))
		for _, p := range places {
			if r, ok := p.toResult(); ok {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

// Reverse resolves a coordinate to the nearest named place.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Result, error) {
	key := fmt.Sprintf("reverse:%.5f,%.5f", lat, lon)

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")

	results, err := c.lookup(ctx, key, "/reverse", params, func(data []byte) ([]Result, error) {
		var p place
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Error != "" {
			return []Result{}, nil
		}
		r, ok := p.toResult()
		if !ok {
			return []Result{}, nil
		}
		return []Result{r}, nil
	})
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, apperr.New("geocode.reverse", apperr.KindNotFound, nil)
	}
	return results[0], nil
}

func (c *Client) lookup(ctx context.Context, key, path string, params url.Values, decode func([]byte) ([]Result, error)) ([]Result, error) {
	if cached, ok := c.answers.Get(key); ok {
		return cached, nil
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		data, err := c.fetch(fctx, path, params)
		if err != nil {
			return nil, err
		}
		results, err := decode(data)
		if err != nil {
			return nil, apperr.New("geocode"+path, apperr.KindBackendUnavailable, fmt.Errorf("failed to decode response: %w", err))
		}
		c.answers.Set(key, results)
		return results, nil
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = apperr.New("geocode"+path, apperr.KindBackendUnavailable, ctx.Err())
	}
	if err != nil {
		c.log.Info(ctx, "geocode.lookup_failed", logging.String("path", path), logging.Err(err))
		return []Result{}, err
	}
	return v.([]Result), nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	op := "geocode" + path
	if c.limiter.IsRateLimited(ratelimit.ProviderGeocoder) {
		return nil, apperr.New(op, apperr.KindBackendUnavailable, fmt.Errorf("rate limited"))
	}
	if err := c.pace.Wait(ctx); err != nil {
		return nil, apperr.New(op, apperr.KindBackendUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.New(op, apperr.KindBackendUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(op, apperr.KindBackendUnavailable, err)
	}
	defer resp.Body.Close()
	c.limiter.CheckResponse(ratelimit.ProviderGeocoder, resp)

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(op, apperr.KindBackendUnavailable, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var buf json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&buf); err != nil {
		return nil, apperr.New(op, apperr.KindBackendUnavailable, fmt.Errorf("failed to read response: %w", err))
	}
	return buf, nil
}
