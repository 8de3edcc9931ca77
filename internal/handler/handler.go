// Package handler provides the HTTP surface of the checkout service:
// REST routes, the MCP endpoint, and protocol discovery.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ucp-merchant/internal/catalog"
	"ucp-merchant/internal/checkout"
	"ucp-merchant/internal/compliance"
	"ucp-merchant/internal/envelope"
	"ucp-merchant/internal/model"
	"ucp-merchant/internal/negotiation"
)

// Handler holds dependencies for HTTP handlers. Both transports route
// into the same checkout.Service, so REST and MCP callers observe
// identical state machine behavior.
type Handler struct {
	service    checkout.Service
	profile    *model.DiscoveryProfile
	envelope   *envelope.Builder
	negotiator *negotiation.Negotiator
	catalog    *catalog.Static
	compliance *compliance.Evaluator
	logger     *slog.Logger
}

// New creates a Handler. The negotiator may be nil to disable MCP-side
// negotiation (for testing); REST negotiation runs in middleware.
func New(
	service checkout.Service,
	profile *model.DiscoveryProfile,
	envelopeBuilder *envelope.Builder,
	negotiator *negotiation.Negotiator,
	cat *catalog.Static,
	ev *compliance.Evaluator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:    service,
		profile:    profile,
		envelope:   envelopeBuilder,
		negotiator: negotiator,
		catalog:    cat,
		compliance: ev,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Discovery endpoint
	mux.HandleFunc("GET /.well-known/ucp", h.handleWellKnown)

	// REST transport - checkout operations
	mux.HandleFunc("POST /checkout-sessions", h.handleCreateCheckout)
	mux.HandleFunc("GET /checkout-sessions/{id}", h.handleGetCheckout)
	mux.HandleFunc("PUT /checkout-sessions/{id}", h.handleUpdateCheckout)
	mux.HandleFunc("POST /checkout-sessions/{id}/complete", h.handleCompleteCheckout)
	mux.HandleFunc("POST /checkout-sessions/{id}/cancel", h.handleCancelCheckout)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError
// if present. Uses errors.As() to unwrap error chains.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if !errors.As(err, &apiErr) {
		apiErr = &model.APIError{
			Code:       model.CodeInternalError,
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewInvalidRequestError("body", "invalid JSON")
	}
	return nil
}

// negotiated returns the negotiation result for the request, defaulting
// to the full merchant set when middleware did not run.
func (h *Handler) negotiated(r *http.Request) *negotiation.NegotiatedContext {
	if n := negotiation.FromContext(r.Context()); n != nil {
		return n
	}
	if h.negotiator != nil {
		return h.negotiator.Default()
	}
	return nil
}

func activeNames(n *negotiation.NegotiatedContext) []string {
	if n == nil {
		return nil
	}
	return n.Active
}
