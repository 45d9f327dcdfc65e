package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns default rate limit settings, 100 requests
// per 15 minutes per caller
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    15 * time.Minute,
		BurstSize:         20,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a new in-process rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) capacity() float64 {
	return float64(rl.config.RequestsPerWindow + rl.config.BurstSize)
}

// Allow takes one token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}

	// refill proportionally to elapsed time
	rate := float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens = math.Min(rl.capacity(), b.tokens+now.Sub(b.lastUpdate).Seconds()*rate)
	b.lastUpdate = now

	d := Decision{Limit: rl.config.RequestsPerWindow}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	}
	d.Remaining = int(b.tokens)

	// time until one token is available again
	wait := time.Duration((1 - math.Min(1, b.tokens)) / rate * float64(time.Second))
	d.ResetAt = now.Add(wait)
	return d, nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		return int(rl.capacity())
	}
	return int(b.tokens)
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// RateLimitMiddleware throttles requests per principal, or per client IP
// for anonymous callers
type RateLimitMiddleware struct {
	limiter Limiter
	logger  *observability.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware over limiter
func NewRateLimitMiddleware(limiter Limiter, logger *observability.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// Handler wraps an HTTP handler with rate limiting. Limiter errors fail open.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateLimitKey(r)

		d, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.FromContext(r.Context(), m.logger).WithError(err).
				WithField("key", key).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			retryAfter := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteTooManyRequests(w, "Too many requests from this IP, please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if authCtx := GetAuthContext(r); authCtx != nil && authCtx.Principal.ID != "" {
		return fmt.Sprintf("user:%s", authCtx.Principal.ID)
	}
	return "ip:" + getClientIP(r)
}

func getClientIP(r *http.Request) string {
	// first hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
