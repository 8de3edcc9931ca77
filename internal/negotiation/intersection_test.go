package negotiation

import (
	"context"
	"errors"
	"testing"

	"ucp-merchant/internal/model"
)

// fakeFetcher returns a canned profile or error.
type fakeFetcher struct {
	profile *AgentProfile
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, profileURL string) (*AgentProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func merchantProfile() *model.DiscoveryProfile {
	return &model.DiscoveryProfile{
		UCP: model.UCPMetadata{
			Version: "2026-01-11",
			Capabilities: map[string][]model.Capability{
				model.CapabilityCheckout: {{Version: "2026-01-11"}},
				model.CapabilityBuyerConsent: {{
					Version: "2026-01-11",
					Extends: model.NewSingleExtends(model.CapabilityCheckout),
				}},
			},
			PaymentHandlers: map[string][]model.PaymentHandler{
				"dev.ucp.payment.simulated": {{ID: "dev.ucp.payment.simulated", Version: "2026-01-11"}},
			},
		},
	}
}

func newTestNegotiator(fetcher ProfileFetcher) *Negotiator {
	return NewNegotiator(fetcher, merchantProfile(),
		[]string{model.CapabilityCheckout},
		[]string{model.CapabilityBuyerConsent})
}

func TestNegotiateNoProfileURL(t *testing.T) {
	n := newTestNegotiator(&fakeFetcher{})

	negotiated, err := n.Negotiate(context.Background(), "")
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	if len(negotiated.Capabilities) != 2 {
		t.Errorf("Capabilities = %d entries, want 2", len(negotiated.Capabilities))
	}
	wantActive := []string{model.CapabilityCheckout, model.CapabilityBuyerConsent}
	if len(negotiated.Active) != len(wantActive) {
		t.Fatalf("Active = %v, want %v", negotiated.Active, wantActive)
	}
	for i, name := range wantActive {
		if negotiated.Active[i] != name {
			t.Errorf("Active[%d] = %s, want %s", i, negotiated.Active[i], name)
		}
	}
}

func TestNegotiateFetchFailureDegradesToCore(t *testing.T) {
	n := newTestNegotiator(&fakeFetcher{err: errors.New("connection refused")})

	negotiated, err := n.Negotiate(context.Background(), "https://agent.example/profile")
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	if negotiated.FetchError == nil {
		t.Error("FetchError = nil, want error recorded")
	}
	if _, ok := negotiated.Capabilities[model.CapabilityCheckout]; !ok {
		t.Error("core checkout capability missing from degraded set")
	}
	if _, ok := negotiated.Capabilities[model.CapabilityBuyerConsent]; ok {
		t.Error("extension survived degraded negotiation, want core only")
	}
	if !negotiated.HasCapability(model.CapabilityCheckout) {
		t.Error("HasCapability(checkout) = false, want true")
	}
}

func TestNegotiateIntersection(t *testing.T) {
	// Caller supports checkout but not buyer consent.
	caller := &AgentProfile{
		UCP: model.UCPMetadata{
			Version: "2026-01-11",
			Capabilities: map[string][]model.Capability{
				model.CapabilityCheckout: {{Version: "2026-01-11"}},
			},
		},
	}
	n := newTestNegotiator(&fakeFetcher{profile: caller})

	negotiated, err := n.Negotiate(context.Background(), "https://agent.example/profile")
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	if negotiated.HasCapability(model.CapabilityBuyerConsent) {
		t.Error("buyer consent active, want dropped by intersection")
	}
	if !negotiated.HasCapability(model.CapabilityCheckout) {
		t.Error("checkout not active, want kept")
	}
}

func TestNegotiatePrunesOrphanedExtensions(t *testing.T) {
	// Caller declares the extension but not its parent: the extension
	// must not survive without the capability it extends.
	caller := &AgentProfile{
		UCP: model.UCPMetadata{
			Version: "2026-01-11",
			Capabilities: map[string][]model.Capability{
				model.CapabilityBuyerConsent: {{Version: "2026-01-11"}},
			},
		},
	}
	n := newTestNegotiator(&fakeFetcher{profile: caller})

	negotiated, err := n.Negotiate(context.Background(), "https://agent.example/profile")
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	if len(negotiated.Capabilities) != 0 {
		t.Errorf("Capabilities = %v, want empty after pruning", negotiated.Capabilities)
	}
	if len(negotiated.Active) != 0 {
		t.Errorf("Active = %v, want empty", negotiated.Active)
	}
}

func TestNegotiateEmptyCallerCapabilitiesAcceptsAll(t *testing.T) {
	caller := &AgentProfile{
		UCP: model.UCPMetadata{Version: "2026-01-11"},
	}
	n := newTestNegotiator(&fakeFetcher{profile: caller})

	negotiated, err := n.Negotiate(context.Background(), "https://agent.example/profile")
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	if len(negotiated.Capabilities) != 2 {
		t.Errorf("Capabilities = %d entries, want full merchant set", len(negotiated.Capabilities))
	}
}

func TestNegotiateVersionMismatch(t *testing.T) {
	caller := &AgentProfile{
		UCP: model.UCPMetadata{Version: "2027-01-01"},
	}
	n := newTestNegotiator(&fakeFetcher{profile: caller})

	_, err := n.Negotiate(context.Background(), "https://agent.example/profile")

	var verr *VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *VersionError", err)
	}
	if verr.Code != VersionUnsupported {
		t.Errorf("Code = %s, want %s", verr.Code, VersionUnsupported)
	}
}

func TestNegotiateOlderCallerVersionAccepted(t *testing.T) {
	caller := &AgentProfile{
		UCP: model.UCPMetadata{Version: "2025-06-01"},
	}
	n := newTestNegotiator(&fakeFetcher{profile: caller})

	if _, err := n.Negotiate(context.Background(), "https://agent.example/profile"); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
}

func TestHandlersCompatible(t *testing.T) {
	tests := []struct {
		name     string
		merchant model.PaymentHandler
		caller   model.PaymentHandler
		want     bool
	}{
		{
			"same id and version",
			model.PaymentHandler{ID: "h", Version: "2026-01-11"},
			model.PaymentHandler{ID: "h", Version: "2026-01-11"},
			true,
		},
		{
			"different ids",
			model.PaymentHandler{ID: "a", Version: "2026-01-11"},
			model.PaymentHandler{ID: "b", Version: "2026-01-11"},
			false,
		},
		{
			"caller newer date version",
			model.PaymentHandler{ID: "h", Version: "2026-01-11"},
			model.PaymentHandler{ID: "h", Version: "2026-06-01"},
			true,
		},
		{
			"merchant newer date version",
			model.PaymentHandler{ID: "h", Version: "2026-06-01"},
			model.PaymentHandler{ID: "h", Version: "2026-01-11"},
			false,
		},
		{
			"semver caller newer",
			model.PaymentHandler{ID: "h", Version: "1.2.0"},
			model.PaymentHandler{ID: "h", Version: "1.3.0"},
			true,
		},
		{
			"semver merchant newer",
			model.PaymentHandler{ID: "h", Version: "2.0.0"},
			model.PaymentHandler{ID: "h", Version: "1.9.9"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handlersCompatible(tt.merchant, tt.caller); got != tt.want {
				t.Errorf("handlersCompatible() = %v, want %v", got, tt.want)
			}
		})
	}
}
