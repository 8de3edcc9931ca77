// Package envelope stamps UCP protocol metadata onto checkout responses.
//
// Every response body carries a `ucp` block describing the protocol version
// and the capabilities active for this caller, so the caller can tell which
// negotiated features shaped the payload it received.
package envelope

import (
	"ucp-merchant/internal/model"
	"ucp-merchant/internal/negotiation"
)

// Builder constructs response envelopes from negotiation results.
type Builder struct {
	version string
}

// NewBuilder creates a Builder for the given protocol version. The version
// is the fallback when a negotiation result carries none.
func NewBuilder(version string) *Builder {
	return &Builder{version: version}
}

// Metadata builds the `ucp` response block for a negotiation result.
// The capability list reflects the negotiated set in stable order; with
// no negotiated handlers the payment_handlers block is an empty object,
// never null.
func (b *Builder) Metadata(negotiated *negotiation.NegotiatedContext) model.UCPMetadata {
	if negotiated == nil {
		return model.UCPMetadata{
			Version:         b.version,
			Capabilities:    map[string][]model.Capability{},
			PaymentHandlers: map[string][]model.PaymentHandler{},
		}
	}

	version := negotiated.Version
	if version == "" {
		version = b.version
	}

	meta := model.UCPMetadata{
		Version:         version,
		Capabilities:    negotiated.Capabilities,
		PaymentHandlers: negotiated.PaymentHandlers,
	}
	if meta.PaymentHandlers == nil {
		meta.PaymentHandlers = map[string][]model.PaymentHandler{}
	}
	return meta
}

// Apply returns a deep copy of the checkout with the negotiated metadata
// stamped on. The stored session is never mutated.
func (b *Builder) Apply(checkout *model.Checkout, negotiated *negotiation.NegotiatedContext) *model.Checkout {
	out := checkout.Clone()
	out.UCP = b.Metadata(negotiated)
	return out
}
