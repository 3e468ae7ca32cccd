package api

import (
	"net/http"
	"time"

	"github.com/siminyang/aboutxtime/internal/api/respond"
	"github.com/siminyang/aboutxtime/internal/store"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	pinger store.HealthPinger
}

func NewHealthHandler(pinger store.HealthPinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// CheckHealth handles GET /api/health. Always 200; the body reports status.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// CheckStoreHealth handles GET /api/health/db and pings the document store.
func (h *HealthHandler) CheckStoreHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if h.pinger != nil {
		if err := h.pinger.HealthPing(r.Context()); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	respond.WriteJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
