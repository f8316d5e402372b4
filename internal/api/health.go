package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ioc-assistant/eassistant/internal/log"
)

type healthResponse struct {
	Status    string `json:"status"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
}

// handleHealth is a liveness probe. It reports the configured model but
// touches no downstream dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Model:     s.agent.ModelName(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, s.logger)
}

// readiness reports whether the database pool is reachable. A nil pool
// means readiness degrades to liveness.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, logger)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	})
}
