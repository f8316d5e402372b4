package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &stubAgent{model: "ollama/llama3.2"})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want %q", resp.Status, "healthy")
	}
	if resp.Model != "ollama/llama3.2" {
		t.Errorf("model = %q, want %q", resp.Model, "ollama/llama3.2")
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", resp.Timestamp, err)
	}
}

func TestHealthBypassesRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:         discardLogger(),
		Agent:          &stubAgent{},
		RateLimitRPS:   0.001,
		RateLimitBurst: 1,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	for i := range 10 {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = "10.0.0.1:12345"
		srv.Handler().ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("health request %d status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestReadinessWithoutPool(t *testing.T) {
	srv := newTestServer(t, &stubAgent{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
