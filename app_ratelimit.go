package main

import (
	"satfusion-desktop/internal/cache"
	"satfusion-desktop/internal/ratelimit"
)

// Rate Limit Management Functions (Wails-exported)

// ManualRetryRateLimit allows user to manually trigger a retry for a rate-limited provider
func (a *App) ManualRetryRateLimit(provider string) {
	a.viewer.RateLimiter().ManualRetry(provider)
}

// GetRateLimitStatus returns the current rate limit state for a provider
func (a *App) GetRateLimitStatus(provider string) *ratelimit.RateLimitEvent {
	return a.viewer.RateLimiter().GetCurrentState(provider)
}

// IsRateLimited checks if a provider is currently rate limited
func (a *App) IsRateLimited(provider string) bool {
	return a.viewer.RateLimiter().IsRateLimited(provider)
}

// Cache Management Functions (Wails-exported)

// GetCacheStats returns geocode and agent answer cache counters
func (a *App) GetCacheStats() map[string]cache.Stats {
	return a.viewer.CacheStats()
}

// ClearCache empties the lookup caches
func (a *App) ClearCache() {
	a.viewer.ClearCaches()
}
