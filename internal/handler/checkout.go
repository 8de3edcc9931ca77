package handler

import (
	"log/slog"
	"net/http"

	"ucp-merchant/internal/model"
)

// handleCreateCheckout creates a new checkout session.
// POST /checkout-sessions
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	negotiated := h.negotiated(r)

	var req model.CreateCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logIdempotencyKey(r)
	h.logger.InfoContext(ctx, "creating checkout",
		slog.Int("line_items", len(req.LineItems)),
		slog.Int("active_capabilities", len(activeNames(negotiated))),
	)

	session, err := h.service.Create(ctx, &req, activeNames(negotiated))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, h.envelope.Apply(session, negotiated))
}

// handleGetCheckout retrieves an existing checkout.
// GET /checkout-sessions/{id}
func (h *Handler) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	negotiated := h.negotiated(r)
	checkoutID := r.PathValue("id")

	session, err := h.service.Get(ctx, checkoutID, activeNames(negotiated))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope.Apply(session, negotiated))
}

// handleUpdateCheckout modifies checkout details.
// PUT /checkout-sessions/{id}
func (h *Handler) handleUpdateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	negotiated := h.negotiated(r)
	checkoutID := r.PathValue("id")

	var req model.UpdateCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logIdempotencyKey(r)
	h.logger.InfoContext(ctx, "updating checkout",
		slog.String("checkout_id", checkoutID),
		slog.Int("line_items", len(req.LineItems)),
		slog.Bool("has_buyer", req.Buyer != nil),
	)

	session, err := h.service.Update(ctx, checkoutID, &req, activeNames(negotiated))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope.Apply(session, negotiated))
}

// handleCompleteCheckout submits payment and finalizes the checkout.
// POST /checkout-sessions/{id}/complete
func (h *Handler) handleCompleteCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	negotiated := h.negotiated(r)
	checkoutID := r.PathValue("id")

	var req model.CompleteCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logIdempotencyKey(r)
	h.logger.InfoContext(ctx, "completing checkout",
		slog.String("checkout_id", checkoutID),
	)

	session, err := h.service.Complete(ctx, checkoutID, &req, activeNames(negotiated))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope.Apply(session, negotiated))
}

// handleCancelCheckout cancels a checkout session.
// POST /checkout-sessions/{id}/cancel
func (h *Handler) handleCancelCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	negotiated := h.negotiated(r)
	checkoutID := r.PathValue("id")

	h.logIdempotencyKey(r)
	h.logger.InfoContext(ctx, "canceling checkout",
		slog.String("checkout_id", checkoutID),
	)

	session, err := h.service.Cancel(ctx, checkoutID, activeNames(negotiated))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope.Apply(session, negotiated))
}

// logIdempotencyKey records the Idempotency-Key header when present.
// The key is accepted for forward compatibility; mutations are not yet
// deduplicated by it.
func (h *Handler) logIdempotencyKey(r *http.Request) {
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		h.logger.Debug("idempotency key received", slog.String("key", key))
	}
}
