package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/api"
)

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.healthChecker.PingContext(pingCtx); err != nil {
		h.logger.Error("health check failed: ledger unreachable", "error", err)
		respondWithJSON(w, http.StatusServiceUnavailable, api.Health{Status: api.Unhealthy})
		return
	}

	respondWithJSON(w, http.StatusOK, api.Health{Status: api.Healthy})
}
