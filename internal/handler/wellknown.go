package handler

import (
	"net/http"
)

// handleWellKnown returns the UCP discovery profile.
// GET /.well-known/ucp
func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	// Discovery is static per deployment and safe to cache.
	w.Header().Set("Cache-Control", "public, max-age=3600")
	h.writeJSON(w, http.StatusOK, h.profile)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}
