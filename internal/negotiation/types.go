// Package negotiation implements UCP capability negotiation.
// Transport-agnostic core: handles profile fetching, caching, and
// capability intersection. The REST middleware extracts the caller's
// profile URL from the UCP-Agent header; MCP tool handlers extract it
// from meta["ucp-agent"]["profile"] in request params.
package negotiation

import (
	"time"

	"ucp-merchant/internal/model"
)

// AgentProfile represents a fetched caller (agent/platform) profile.
// Contains the caller's UCP metadata (capabilities and payment handlers).
type AgentProfile struct {
	UCP model.UCPMetadata `json:"ucp"`

	// Cache metadata - not from wire, set by fetcher
	ProfileURL string    `json:"-"`
	FetchedAt  time.Time `json:"-"`
	ExpiresAt  time.Time `json:"-"`
}

// NegotiatedContext is the result of capability negotiation.
// Stored in http.Request context for REST, passed explicitly for MCP handlers.
type NegotiatedContext struct {
	// AgentProfileURL is the profile URL from the request (for logging)
	AgentProfileURL string

	// Version is the protocol version in force (always the merchant's)
	Version string

	// Capabilities holds the active capability set keyed by name
	Capabilities map[string][]model.Capability

	// PaymentHandlers holds the active handler set keyed by name
	PaymentHandlers map[string][]model.PaymentHandler

	// Active is the order-stable active capability name list:
	// core capabilities first, then extensions.
	Active []string

	// FetchError is non-nil when the caller's profile could not be
	// fetched and the negotiation degraded to core capabilities only.
	FetchError error
}

// HasCapability reports whether the named capability is active.
func (n *NegotiatedContext) HasCapability(name string) bool {
	_, ok := n.Capabilities[name]
	return ok
}

// contextKey is the type for context values to avoid collisions
type contextKey string

// ContextKey is the request-context key for storing NegotiatedContext
const ContextKey contextKey = "ucp.negotiation"

// VersionUnsupported is the error code when the caller's version is too new
const VersionUnsupported = "ucp_version_unsupported"
