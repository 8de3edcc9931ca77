// Package checkout implements the checkout session engine: state
// derivation, compliance gating, totals, and the complete/cancel
// lifecycle. The engine is transport-neutral; REST and MCP both call it
// through the Service interface and get identical semantics.
package checkout

import (
	"context"

	"ucp-merchant/internal/model"
)

// Service is the transport-facing surface of the checkout engine.
//
// Every operation receives the caller's active capability names from
// negotiation; extension-gated behavior (buyer consent, and with it age
// verification) is only honored when the matching capability is active.
// Errors are *model.APIError values carrying the protocol error code and
// HTTP status.
type Service interface {
	Create(ctx context.Context, req *model.CreateCheckoutRequest, active []string) (*model.Checkout, error)
	Get(ctx context.Context, id string, active []string) (*model.Checkout, error)
	Update(ctx context.Context, id string, req *model.UpdateCheckoutRequest, active []string) (*model.Checkout, error)
	Complete(ctx context.Context, id string, req *model.CompleteCheckoutRequest, active []string) (*model.Checkout, error)
	Cancel(ctx context.Context, id string, active []string) (*model.Checkout, error)
}
