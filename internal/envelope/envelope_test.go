package envelope

import (
	"encoding/json"
	"strings"
	"testing"

	"ucp-merchant/internal/model"
	"ucp-merchant/internal/negotiation"
)

func TestMetadataNilNegotiation(t *testing.T) {
	b := NewBuilder(model.Version)

	meta := b.Metadata(nil)
	if meta.Version != model.Version {
		t.Errorf("Version = %s, want %s", meta.Version, model.Version)
	}
	if meta.Capabilities == nil {
		t.Error("Capabilities = nil, want empty map")
	}
	if meta.PaymentHandlers == nil {
		t.Error("PaymentHandlers = nil, want empty map")
	}
}

// The wire shape requires payment_handlers to be an object even when no
// handlers were negotiated; a nil map would serialize as null.
func TestMetadataPaymentHandlersSerializeAsObject(t *testing.T) {
	b := NewBuilder(model.Version)

	for name, negotiated := range map[string]*negotiation.NegotiatedContext{
		"nil negotiation": nil,
		"no handlers":     {Version: "2025-06-01"},
	} {
		raw, err := json.Marshal(b.Metadata(negotiated))
		if err != nil {
			t.Fatalf("%s: Marshal() error = %v", name, err)
		}
		if !strings.Contains(string(raw), `"payment_handlers":{}`) {
			t.Errorf("%s: payment_handlers not an empty object: %s", name, raw)
		}
	}
}

func TestMetadataNegotiated(t *testing.T) {
	b := NewBuilder(model.Version)
	negotiated := &negotiation.NegotiatedContext{
		Version: "2025-06-01",
		Capabilities: map[string][]model.Capability{
			model.CapabilityCheckout: {{Version: "2025-06-01"}},
		},
		PaymentHandlers: map[string][]model.PaymentHandler{
			"dev.ucp.payment.simulated": {{ID: "sim", Version: model.Version}},
		},
	}

	meta := b.Metadata(negotiated)
	if meta.Version != "2025-06-01" {
		t.Errorf("Version = %s, want negotiated 2025-06-01", meta.Version)
	}
	if _, ok := meta.Capabilities[model.CapabilityCheckout]; !ok {
		t.Error("missing negotiated checkout capability")
	}
	if _, ok := meta.PaymentHandlers["dev.ucp.payment.simulated"]; !ok {
		t.Error("missing negotiated payment handler")
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	b := NewBuilder(model.Version)
	session := &model.Checkout{ID: "checkout_a", Status: model.StatusIncomplete}

	out := b.Apply(session, nil)
	if out.UCP.Version != model.Version {
		t.Errorf("ucp.version = %s, want %s", out.UCP.Version, model.Version)
	}
	if session.UCP.Version != "" {
		t.Error("Apply mutated the stored session")
	}
	if out == session {
		t.Error("Apply returned the input, want a copy")
	}
}
