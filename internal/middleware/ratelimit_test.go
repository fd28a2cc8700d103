package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		wantAllowed []bool
	}{
		{"under limit", 5, []bool{true, true, true}},
		{"at limit", 5, []bool{true, true, true, true, true, false}},
		{"limit of one", 1, []bool{true, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryRateLimitStore()
			config := RateLimitConfig{RequestsPerWindow: tt.limit, WindowDuration: time.Minute}
			for i, want := range tt.wantAllowed {
				if allowed, _, _ := store.Allow(context.Background(), "k", config); allowed != want {
					t.Errorf("request %d: allowed = %v, want %v", i+1, allowed, want)
				}
			}
		})
	}
}

func TestInMemoryRateLimitStore_RemainingAndRetryAfter(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Second}
	ctx := context.Background()

	allowed, remaining, retryAfter := store.Allow(ctx, "k", config)
	if !allowed || remaining != 0 || retryAfter != 0 {
		t.Errorf("first Allow() = (%v, %d, %d), want (true, 0, 0)", allowed, remaining, retryAfter)
	}

	allowed, remaining, retryAfter = store.Allow(ctx, "k", config)
	if allowed || remaining != 0 {
		t.Errorf("second Allow() = (%v, %d, _), want (false, 0, _)", allowed, remaining)
	}
	if retryAfter <= 0 || retryAfter > 10 {
		t.Errorf("retryAfter = %d, want in (0, 10]", retryAfter)
	}
}

func TestInMemoryRateLimitStore_KeysAreIndependent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	ctx := context.Background()

	for _, key := range []string{"user:u1", "user:u2"} {
		if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
			t.Errorf("first request for %s blocked", key)
		}
		if allowed, _, _ := store.Allow(ctx, key, config); allowed {
			t.Errorf("second request for %s allowed past limit", key)
		}
	}
}

func TestInMemoryRateLimitStore_WindowExpiry(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "k", config)
	if allowed, _, _ := store.Allow(ctx, "k", config); allowed {
		t.Error("request inside exhausted window allowed")
	}

	time.Sleep(60 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, "k", config); !allowed {
		t.Error("request after window expiry blocked")
	}
}

func TestInMemoryRateLimitStore_Concurrency(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := store.Allow(ctx, "shared", config); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("%d requests allowed, want exactly 100", allowedCount)
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "k1", config)
	store.Allow(ctx, "k2", config)

	time.Sleep(60 * time.Millisecond)
	store.Cleanup()

	store.mu.RLock()
	n := len(store.buckets)
	store.mu.RUnlock()
	if n != 0 {
		t.Errorf("%d buckets left after cleanup, want 0", n)
	}

	if allowed, _, _ := store.Allow(ctx, "k1", config); !allowed {
		t.Error("request after cleanup blocked")
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		xRealIP       string
		want          string
	}{
		{"remote addr with port", "192.168.1.1:12345", "", "", "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", "", "", "192.168.1.1"},
		{"ipv6 remote addr", "[2001:db8::1]:8080", "", "", "2001:db8::1"},
		{"x-forwarded-for", "10.0.0.1:12345", "203.0.113.50", "", "203.0.113.50"},
		{"first hop of chain", "10.0.0.1:12345", "203.0.113.50, 198.51.100.1, 10.0.0.1", "", "203.0.113.50"},
		{"chain with whitespace", "10.0.0.1:12345", "  203.0.113.50  ,  198.51.100.1  ", "", "203.0.113.50"},
		{"x-real-ip fallback", "10.0.0.1:12345", "", " 203.0.113.50 ", "203.0.113.50"},
		{"x-forwarded-for wins over x-real-ip", "10.0.0.1:12345", "203.0.113.50", "198.51.100.1", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/anchors/nearby", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := keyFunc(req); got != tt.want {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	keyFunc := UserKeyFunc()

	req := httptest.NewRequest(http.MethodPost, "/anchors/a1/unlock", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	if got := keyFunc(req); got != "ip:192.168.1.1" {
		t.Errorf("anonymous key = %q, want %q", got, "ip:192.168.1.1")
	}

	req = req.WithContext(SetUserID(req.Context(), "user-123"))
	if got := keyFunc(req); got != "user:user-123" {
		t.Errorf("authenticated key = %q, want %q", got, "user:user-123")
	}
}

// rateLimitedHandler builds a limiter over a trivial 200 handler and returns
// a helper that fires one request from addr.
func rateLimitedHandler(config RateLimitConfig) func(addr string) *httptest.ResponseRecorder {
	handler := RateLimiter(NewInMemoryRateLimitStore(), config, IPKeyFunc(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	return func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/anchors/nearby", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}
}

func TestRateLimiter_BlocksPastLimit(t *testing.T) {
	send := rateLimitedHandler(RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute})

	for i := 0; i < 15; i++ {
		rr := send("192.168.1.1:12345")
		want := http.StatusOK
		if i >= 10 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Errorf("request %d: status = %d, want %d", i+1, rr.Code, want)
		}
	}
}

func TestRateLimiter_Headers(t *testing.T) {
	send := rateLimitedHandler(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 30 * time.Second})

	rr := send("192.168.1.1:12345")
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, "1")
	}

	rr = send("192.168.1.1:12345")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}

	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After not an integer: %v", err)
	}
	if retryAfter <= 0 || retryAfter > 30 {
		t.Errorf("Retry-After = %d, want in (0, 30]", retryAfter)
	}

	reset, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		t.Fatalf("X-RateLimit-Reset not a Unix timestamp: %v", err)
	}
	now := time.Now().Unix()
	if reset <= now || reset > now+30 {
		t.Errorf("X-RateLimit-Reset = %d, want within 30s after %d", reset, now)
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	send := rateLimitedHandler(RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute})

	for i := 0; i < 5; i++ {
		if rr := send("192.168.1.1:12345"); rr.Code != http.StatusOK {
			t.Fatalf("client1 request %d blocked", i+1)
		}
	}
	if rr := send("192.168.1.1:12345"); rr.Code != http.StatusTooManyRequests {
		t.Error("client1 not blocked past its limit")
	}

	for i := 0; i < 5; i++ {
		if rr := send("192.168.1.2:12345"); rr.Code != http.StatusOK {
			t.Errorf("client2 request %d blocked by client1's quota", i+1)
		}
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	send := rateLimitedHandler(RateLimitConfig{RequestsPerWindow: 2, WindowDuration: 50 * time.Millisecond})

	send("192.168.1.1:12345")
	send("192.168.1.1:12345")
	if rr := send("192.168.1.1:12345"); rr.Code != http.StatusTooManyRequests {
		t.Error("third request in window not blocked")
	}

	time.Sleep(60 * time.Millisecond)

	if rr := send("192.168.1.1:12345"); rr.Code != http.StatusOK {
		t.Error("request after window reset blocked")
	}
}

func TestDefaultLimits(t *testing.T) {
	tests := []struct {
		name  string
		limit RateLimitConfig
		want  int
	}{
		{"global", DefaultGlobalLimit(), 100},
		{"unlock", DefaultUnlockLimit(), 10},
		{"nearby", DefaultNearbyLimit(), 30},
	}

	for _, tt := range tests {
		if tt.limit.RequestsPerWindow != tt.want {
			t.Errorf("%s RequestsPerWindow = %d, want %d", tt.name, tt.limit.RequestsPerWindow, tt.want)
		}
		if tt.limit.WindowDuration != time.Minute {
			t.Errorf("%s WindowDuration = %v, want 1m", tt.name, tt.limit.WindowDuration)
		}
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{"valid", RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}, false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, true},
		{"negative requests", RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 100}, true},
		{"negative window", RateLimitConfig{RequestsPerWindow: 100, WindowDuration: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
