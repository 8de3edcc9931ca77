package negotiation

import (
	"context"
	"fmt"

	"golang.org/x/mod/semver"

	"ucp-merchant/internal/model"
)

// Negotiator computes the active capability set for a caller against the
// merchant's declared capabilities.
//
// Reference behavior: a request without a caller profile activates the full
// merchant set. With a profile URL the caller's profile is fetched
// (timeout-bounded); on success the true intersection is computed, on
// failure negotiation degrades to core capabilities only.
type Negotiator struct {
	fetcher    ProfileFetcher
	merchant   *model.DiscoveryProfile
	core       []string // order-stable: core capabilities first
	extensions []string // then extensions
}

// NewNegotiator creates a negotiator for the merchant profile. core and
// extensions name the merchant's capabilities in their stable output order;
// every name must key into the profile's capability registry.
func NewNegotiator(fetcher ProfileFetcher, merchant *model.DiscoveryProfile, core, extensions []string) *Negotiator {
	return &Negotiator{
		fetcher:    fetcher,
		merchant:   merchant,
		core:       core,
		extensions: extensions,
	}
}

// Default returns the negotiation result for a caller that declared no
// profile: the full merchant capability set. Never fails.
func (n *Negotiator) Default() *NegotiatedContext {
	ucp := n.merchant.UCP
	return n.result("", ucp.Capabilities, ucp.PaymentHandlers, nil)
}

// Negotiate resolves the active capability set for the given caller
// profile URL. An empty URL yields the default (full merchant set).
// If the caller requires a protocol version newer than the merchant
// supports, a *VersionError is returned.
func (n *Negotiator) Negotiate(ctx context.Context, profileURL string) (*NegotiatedContext, error) {
	if profileURL == "" {
		return n.Default(), nil
	}

	merchant := n.merchant.UCP

	callerProfile, fetchErr := n.fetcher.Fetch(ctx, profileURL)
	if fetchErr != nil {
		// Degraded mode: core capabilities only, error recorded so the
		// caller sees a warning in the response.
		return n.result(profileURL, n.coreOnly(), merchant.PaymentHandlers, fetchErr), nil
	}

	caller := callerProfile.UCP

	// Caller may request an older or equal version, never a newer one.
	if err := validateVersion(merchant.Version, caller.Version); err != nil {
		return nil, err
	}

	caps := intersectCapabilities(merchant.Capabilities, caller.Capabilities)
	handlers := intersectPaymentHandlers(merchant.PaymentHandlers, caller.PaymentHandlers)

	return n.result(profileURL, caps, handlers, nil), nil
}

func (n *Negotiator) result(
	profileURL string,
	caps map[string][]model.Capability,
	handlers map[string][]model.PaymentHandler,
	fetchErr error,
) *NegotiatedContext {
	return &NegotiatedContext{
		AgentProfileURL: profileURL,
		Version:         n.merchant.UCP.Version,
		Capabilities:    caps,
		PaymentHandlers: handlers,
		Active:          n.activeNames(caps),
		FetchError:      fetchErr,
	}
}

// activeNames projects the capability map onto the merchant's stable
// ordering: core capabilities first, then extensions.
func (n *Negotiator) activeNames(caps map[string][]model.Capability) []string {
	names := make([]string, 0, len(caps))
	for _, name := range n.core {
		if _, ok := caps[name]; ok {
			names = append(names, name)
		}
	}
	for _, name := range n.extensions {
		if _, ok := caps[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// coreOnly returns just the merchant's core capabilities.
func (n *Negotiator) coreOnly() map[string][]model.Capability {
	out := make(map[string][]model.Capability, len(n.core))
	for _, name := range n.core {
		if caps, ok := n.merchant.UCP.Capabilities[name]; ok {
			out[name] = caps
		}
	}
	return out
}

// validateVersion checks if the merchant can serve the caller's requested
// version. UCP versions are YYYY-MM-DD and sort correctly as strings.
func validateVersion(merchantVersion, callerVersion string) error {
	// Empty caller version = accept whatever the merchant offers
	if callerVersion == "" {
		return nil
	}

	if callerVersion > merchantVersion {
		return &VersionError{
			Code:            VersionUnsupported,
			Message:         fmt.Sprintf("caller requires version %s, merchant supports %s", callerVersion, merchantVersion),
			CallerVersion:   callerVersion,
			MerchantVersion: merchantVersion,
		}
	}

	return nil
}

// VersionError is returned when the caller requests an unsupported version.
type VersionError struct {
	Code            string
	Message         string
	CallerVersion   string
	MerchantVersion string
}

func (e *VersionError) Error() string {
	return e.Message
}

// intersectCapabilities computes the capability intersection.
// Algorithm:
//  1. For each merchant capability, include if the caller has the same name
//  2. Prune extensions whose `extends` parents are all missing
//  3. Repeat pruning until stable
func intersectCapabilities(
	merchant map[string][]model.Capability,
	caller map[string][]model.Capability,
) map[string][]model.Capability {
	// A caller that declares no capabilities accepts whatever the
	// merchant offers.
	if len(caller) == 0 {
		return merchant
	}

	result := make(map[string][]model.Capability)

	for name, merchantCaps := range merchant {
		if callerCaps, ok := caller[name]; ok {
			intersected := intersectCapabilityVersions(merchantCaps, callerCaps)
			if len(intersected) > 0 {
				result[name] = intersected
			}
		}
	}

	for {
		pruned := pruneOrphanedExtensions(result)
		if !pruned {
			break
		}
	}

	return result
}

// intersectCapabilityVersions finds compatible versions between merchant
// and caller. The merchant capability is used whenever the caller declares
// any version of the same name.
func intersectCapabilityVersions(merchant, caller []model.Capability) []model.Capability {
	if len(caller) > 0 {
		return merchant
	}
	return nil
}

// pruneOrphanedExtensions removes capabilities whose `extends` parents are
// all missing. For multi-parent extensions, keeps if ANY parent is present.
// Returns true if anything was pruned.
func pruneOrphanedExtensions(caps map[string][]model.Capability) bool {
	pruned := false

	for name, capList := range caps {
		for _, cap := range capList {
			if cap.Extends != nil && cap.Extends.IsExtension() {
				parents := cap.Extends.GetParents()
				hasParent := false
				for _, parent := range parents {
					if _, ok := caps[parent]; ok {
						hasParent = true
						break
					}
				}
				if !hasParent {
					delete(caps, name)
					pruned = true
					break
				}
			}
		}
	}

	return pruned
}

// intersectPaymentHandlers returns handlers that the merchant offers and
// the caller supports.
func intersectPaymentHandlers(
	merchant map[string][]model.PaymentHandler,
	caller map[string][]model.PaymentHandler,
) map[string][]model.PaymentHandler {
	if len(caller) == 0 {
		return merchant
	}

	result := make(map[string][]model.PaymentHandler)

	for name, merchantHandlers := range merchant {
		if callerHandlers, ok := caller[name]; ok {
			intersected := intersectHandlerVersions(merchantHandlers, callerHandlers)
			if len(intersected) > 0 {
				result[name] = intersected
			}
		}
	}

	return result
}

// intersectHandlerVersions finds compatible handler versions.
func intersectHandlerVersions(merchant, caller []model.PaymentHandler) []model.PaymentHandler {
	var result []model.PaymentHandler

	for _, mh := range merchant {
		for _, ch := range caller {
			if handlersCompatible(mh, ch) {
				result = append(result, mh)
				break
			}
		}
	}

	return result
}

// handlersCompatible checks if a merchant handler is compatible with a
// caller handler. The merchant handler version must be <= the caller's
// (callers can handle older formats).
func handlersCompatible(merchant, caller model.PaymentHandler) bool {
	if merchant.ID != caller.ID {
		return false
	}

	mv := normalizeVersion(merchant.Version)
	cv := normalizeVersion(caller.Version)

	// If either version is not semver-like, fall back to string comparison
	if !semver.IsValid(mv) || !semver.IsValid(cv) {
		// For YYYY-MM-DD format, string comparison works
		return merchant.Version <= caller.Version
	}

	return semver.Compare(mv, cv) <= 0
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
func normalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
