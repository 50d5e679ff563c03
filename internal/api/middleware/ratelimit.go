package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/metamapa/mapgateway/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// AuthRateLimit applies to login endpoints (10 req/min).
	AuthRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to catalog and admin endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}

	// MapEventRateLimit applies per map session. Pans and zooms arrive in
	// bursts while the user drags the map (300 req/min).
	MapEventRateLimit = RateLimitConfig{
		RequestLimit: 300,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByUser creates a rate limiter middleware using the authenticated subject.
// Falls back to IP-based rate limiting for anonymous requests.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyByUserOrIP)
}

// RateLimitBySession limits requests per {sessionId} route parameter, so one
// busy map cannot starve other sessions behind the same address.
func RateLimitBySession(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyBySessionOrUser)
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the reset time; a full window is the upper bound.
			w.Header().Set("Retry-After", retryAfter)
			rateLimitExceeded(w, r)
		}),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}

func keyBySessionOrUser(r *http.Request) (string, error) {
	if sessionID := sessionIDParam(r); sessionID != "" {
		return "session:" + sessionID, nil
	}
	return keyByUserOrIP(r)
}

// rateLimitExceeded writes an RFC7807 Problem response when rate limit is exceeded.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, r, models.ProblemFor(http.StatusTooManyRequests, GetRequestID(r.Context()),
		"Rate limit exceeded. Please try again later."))
}
