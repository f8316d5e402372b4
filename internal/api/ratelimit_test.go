package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := newRateLimiter(1.0, 5, false)

	for i := range 5 {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("allow() returned false on request %d (within burst of 5)", i+1)
		}
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := newRateLimiter(1.0, 3, false)

	for range 3 {
		rl.allow("1.2.3.4")
	}
	if rl.allow("1.2.3.4") {
		t.Error("allow() should return false after burst exhausted")
	}
}

func TestRateLimiter_SeparateIPs(t *testing.T) {
	rl := newRateLimiter(1.0, 2, false)

	rl.allow("1.1.1.1")
	rl.allow("1.1.1.1")

	if !rl.allow("2.2.2.2") {
		t.Error("allow() should allow a different IP")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := newRateLimiter(100.0, 1, false) // 100 tokens/sec so the test stays fast

	rl.allow("1.2.3.4")
	if rl.allow("1.2.3.4") {
		t.Error("allow() should be blocked immediately after burst exhausted")
	}

	time.Sleep(20 * time.Millisecond)

	if !rl.allow("1.2.3.4") {
		t.Error("allow() should be allowed after token refill")
	}
}

func TestRateLimiter_DropsStaleClients(t *testing.T) {
	rl := newRateLimiter(1.0, 1, false)
	rl.allow("1.2.3.4")

	// Force the cleanup path by backdating both the bucket and the last
	// cleanup time.
	rl.mu.Lock()
	rl.clients["1.2.3.4"].lastSeen = time.Now().Add(-staleThreshold - time.Minute)
	rl.lastCleanup = time.Now().Add(-cleanupInterval - time.Minute)
	rl.mu.Unlock()

	// A fresh client triggers cleanup; the stale bucket must be gone,
	// so the old IP gets a full new bucket.
	rl.allow("5.6.7.8")
	if !rl.allow("1.2.3.4") {
		t.Error("stale client should have been reset to a fresh bucket")
	}
}

func TestClientIP_IgnoresProxyHeadersByDefault(t *testing.T) {
	rl := newRateLimiter(1.0, 1, false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	if got := rl.clientIP(r); got != "10.0.0.1" {
		t.Errorf("clientIP() = %q, want %q", got, "10.0.0.1")
	}
}

func TestClientIP_TrustsProxyWhenConfigured(t *testing.T) {
	rl := newRateLimiter(1.0, 1, true)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.2")

	if got := rl.clientIP(r); got != "203.0.113.9" {
		t.Errorf("clientIP() = %q, want first X-Forwarded-For entry", got)
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl := newRateLimiter(0.001, 1, false)

	handler := rateLimitMiddleware(rl, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}
