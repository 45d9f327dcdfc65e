package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/softwarehub/pkg/auth"
)

func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	now := start
	return func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}, func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}
}

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)
	now, advance := fakeClock(time.Unix(1700000000, 0))
	limiter.now = now

	key := "test-user"

	// Should allow initial requests up to limit + burst
	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		d, err := limiter.Allow(context.Background(), key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Allowed {
			allowedCount++
		}
	}

	expected := config.RequestsPerWindow + config.BurstSize
	if allowedCount != expected {
		t.Errorf("Allowed %d requests, want %d", allowedCount, expected)
	}

	// 150ms of a 1s window refills 1.5 tokens
	advance(150 * time.Millisecond)
	if d, _ := limiter.Allow(context.Background(), key); !d.Allowed {
		t.Error("Should allow request after refill")
	}
	if d, _ := limiter.Allow(context.Background(), key); d.Allowed {
		t.Error("Should deny once the refilled token is spent")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)
	now, _ := fakeClock(time.Unix(1700000000, 0))
	limiter.now = now

	key := "test-user"

	initial := limiter.Remaining(key)
	expected := config.RequestsPerWindow + config.BurstSize
	if initial != expected {
		t.Errorf("Initial remaining = %d, want %d", initial, expected)
	}

	d, _ := limiter.Allow(context.Background(), key)
	if d.Remaining != initial-1 || limiter.Remaining(key) != initial-1 {
		t.Errorf("After using 1 token, remaining = %d, want %d", d.Remaining, initial-1)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute})
	now, advance := fakeClock(time.Unix(1700000000, 0))
	limiter.now = now

	_, _ = limiter.Allow(context.Background(), "idle")
	advance(90 * time.Second)
	_, _ = limiter.Allow(context.Background(), "busy")
	advance(45 * time.Second)

	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.buckets["idle"]; ok {
		t.Error("idle bucket should be removed")
	}
	if _, ok := limiter.buckets["busy"]; !ok {
		t.Error("busy bucket should be kept")
	}
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	if limiter.config.RequestsPerWindow != 100 || limiter.config.WindowDuration != 15*time.Minute {
		t.Errorf("unexpected defaults %+v", limiter.config)
	}
}

func TestRateLimiter_Concurrency(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := limiter.Allow(context.Background(), "shared"); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed %d concurrent requests, want 50", allowed)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:4321", "10.0.0.1"},
		{"remote addr without port", nil, "10.0.0.1", "10.0.0.1"},
		{"x-real-ip", map[string]string{"X-Real-IP": "192.168.1.9"}, "10.0.0.1:1", "192.168.1.9"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitMiddleware_Handler_Anonymous(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	handler := NewRateLimitMiddleware(limiter, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/softwares", nil)
		req.RemoteAddr = "198.51.100.4:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if i == 2 {
			if w.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header")
			}
			if w.Header().Get("X-RateLimit-Remaining") != "0" {
				t.Errorf("expected remaining 0, got %q", w.Header().Get("X-RateLimit-Remaining"))
			}
			if errorLabel(t, w) == "" {
				t.Error("expected JSON error body")
			}
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status %d, want %d", i, codes[i], want[i])
		}
	}

	// another client still has its own budget
	req := httptest.NewRequest("GET", "/api/softwares", nil)
	req.RemoteAddr = "198.51.100.5:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other IP: status %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_Handler_AuthenticatedUser(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := NewRateLimitMiddleware(limiter, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(auth.WithAuthContext(req.Context(), &auth.AuthContext{
		Principal: auth.Principal{ID: "u-42", Role: auth.RoleViewer},
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if limiter.Remaining("user:u-42") != 0 {
		t.Error("expected the principal's bucket to be charged")
	}
	if limiter.Remaining("ip:192.0.2.1") != 1 {
		t.Error("expected the IP bucket to be untouched")
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	called := false
	handler := NewRateLimitMiddleware(brokenLimiter{}, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if !called || w.Code != http.StatusOK {
		t.Errorf("expected request to pass, status %d", w.Code)
	}
}
