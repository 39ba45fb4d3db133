package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"satfusion-desktop/internal/logging"
)

// Provider names used as rate limit keys.
const (
	ProviderBackend  = "backend"
	ProviderGeocoder = "geocoder"
)

// RetryStrategy defines the cool-down intervals after consecutive rate limits.
type RetryStrategy struct {
	Intervals []time.Duration
}

// DefaultRetryStrategy backs off from 30s to 5min.
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			30 * time.Second,
			1 * time.Minute,
			2 * time.Minute,
			5 * time.Minute,
		},
	}
}

// RateLimitEvent represents a rate limit occurrence
type RateLimitEvent struct {
	Timestamp    time.Time `json:"timestamp" ts_type:"string"`
	Provider     string    `json:"provider"`
	StatusCode   int       `json:"statusCode"`
	RetryAttempt int       `json:"retryAttempt"` // 0 = first occurrence
	NextRetryAt  time.Time `json:"nextRetryAt" ts_type:"string"`
	Message      string    `json:"message"`
}

// Handler tracks per-provider rate limits. While a provider is cooling down
// callers should skip the request and use their fallback value.
type Handler struct {
	mu          sync.RWMutex
	rateLimited map[string]*RateLimitEvent
	strategy    *RetryStrategy
	log         logging.Logger
	now         func() time.Time
	onRateLimit func(event RateLimitEvent)
	onRecovered func(provider string)
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy, log logging.Logger) *Handler {
	if strategy == nil || len(strategy.Intervals) == 0 {
		strategy = DefaultRetryStrategy()
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		rateLimited: make(map[string]*RateLimitEvent),
		strategy:    strategy,
		log:         log,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetCallbacks registers UI notifications. Either may be nil.
func (h *Handler) SetCallbacks(onRateLimit func(RateLimitEvent), onRecovered func(string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = onRateLimit
	h.onRecovered = onRecovered
}

// IsRateLimited reports whether provider is still inside its cool-down window.
func (h *Handler) IsRateLimited(provider string) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, limited := h.rateLimited[provider]
	return limited && h.now().Before(ev.NextRetryAt)
}

// CheckResponse records a rate limit for 429/509 responses (and 403, which
// some public services use for throttling) and clears it on any other status.
// It returns true when the response was a rate limit.
func (h *Handler) CheckResponse(provider string, resp *http.Response) bool {
	if h == nil || resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusForbidden, 509:
		h.recordRateLimit(provider, resp.StatusCode)
		return true
	default:
		h.checkRecovery(provider)
		return false
	}
}

func (h *Handler) recordRateLimit(provider string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	attempt := 0
	if existing, ok := h.rateLimited[provider]; ok {
		attempt = existing.RetryAttempt + 1
	}

	interval := h.strategy.Intervals[len(h.strategy.Intervals)-1]
	if attempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[attempt]
	}

	now := h.now()
	event := RateLimitEvent{
		Timestamp:    now,
		Provider:     provider,
		StatusCode:   statusCode,
		RetryAttempt: attempt,
		NextRetryAt:  now.Add(interval),
		Message:      buildMessage(provider, statusCode, attempt, interval),
	}
	h.rateLimited[provider] = &event

	h.log.Warn(h.ctx, "ratelimit.recorded",
		logging.String("provider", provider),
		logging.Int("status", statusCode),
		logging.Int("attempt", attempt),
		logging.String("next_retry_at", event.NextRetryAt.Format(time.RFC3339)))

	if h.onRateLimit != nil {
		go h.onRateLimit(event)
	}
}

func (h *Handler) checkRecovery(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[provider]; !exists {
		return
	}
	delete(h.rateLimited, provider)
	h.log.Info(h.ctx, "ratelimit.cleared", logging.String("provider", provider))
	if h.onRecovered != nil {
		go h.onRecovered(provider)
	}
}

// ManualRetry ends the cool-down immediately.
func (h *Handler) ManualRetry(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev, ok := h.rateLimited[provider]; ok {
		ev.NextRetryAt = h.now()
		h.log.Info(h.ctx, "ratelimit.manual_retry", logging.String("provider", provider))
	}
}

// GetCurrentState returns a copy of the provider's rate limit state, or nil.
func (h *Handler) GetCurrentState(provider string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if event, exists := h.rateLimited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func buildMessage(provider string, statusCode, attempt int, wait time.Duration) string {
	name := "The analysis backend"
	if provider == ProviderGeocoder {
		name = "Place search"
	}
	if attempt == 0 {
		return fmt.Sprintf("%s is rate limited (HTTP %d). Requests pause for %s.", name, statusCode, wait)
	}
	return fmt.Sprintf("%s is still rate limited (attempt %d). Next try in %s.", name, attempt+1, wait)
}

// Close shuts down the rate limit handler
func (h *Handler) Close() {
	h.cancel()
}
