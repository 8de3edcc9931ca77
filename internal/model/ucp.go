// Package model defines data structures for the UCP checkout protocol.
package model

import (
	"encoding/json"
	"time"
)

// Version is the UCP protocol version this service speaks.
const Version = "2026-01-11"

// Capability names in the shopping registry.
const (
	CapabilityCheckout     = "dev.ucp.shopping.checkout"
	CapabilityBuyerConsent = "dev.ucp.shopping.buyer_consent"
)

// === Root Types ===

// Checkout represents a UCP checkout session.
// This is the primary response type for all checkout operations and the
// aggregate stored by the session engine.
type Checkout struct {
	UCP       UCPMetadata    `json:"ucp"`
	ID        string         `json:"id"`
	Status    CheckoutStatus `json:"status"`
	Currency  string         `json:"currency"`
	Market    string         `json:"market"`
	LineItems []LineItem     `json:"line_items"`
	Totals    []Total        `json:"totals"`
	Links     []Link         `json:"links"`
	Payment   Payment        `json:"payment"`
	Buyer     *Buyer         `json:"buyer,omitempty"`
	Messages  []Message      `json:"messages,omitempty"`

	ContinueURL string     `json:"continue_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	// Order is populated once the checkout reaches completed.
	Order *Order `json:"order,omitempty"`
}

// Order references the order created when a checkout completes.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Clone returns a deep copy of the checkout. The session engine mutates
// copies only, so a failed write never leaves partial state behind.
func (c *Checkout) Clone() *Checkout {
	out := *c
	out.LineItems = cloneLineItems(c.LineItems)
	out.Totals = append([]Total(nil), c.Totals...)
	out.Links = append([]Link(nil), c.Links...)
	out.Messages = append([]Message(nil), c.Messages...)
	out.Payment.Instruments = cloneInstruments(c.Payment.Instruments)
	if c.Buyer != nil {
		buyer := *c.Buyer
		if c.Buyer.Consent != nil {
			consent := *c.Buyer.Consent
			buyer.Consent = &consent
		}
		out.Buyer = &buyer
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	if c.Order != nil {
		o := *c.Order
		out.Order = &o
	}
	return &out
}

func cloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, li := range items {
		out[i] = li
		out[i].Totals = append([]Total(nil), li.Totals...)
	}
	return out
}

func cloneInstruments(instruments []PaymentInstrument) []PaymentInstrument {
	if instruments == nil {
		return nil
	}
	out := make([]PaymentInstrument, len(instruments))
	for i, in := range instruments {
		out[i] = in
		if in.Credential != nil {
			cred := *in.Credential
			out[i].Credential = &cred
		}
	}
	return out
}

// UCPMetadata contains protocol version and registries for capabilities and handlers.
// Uses registry pattern: maps keyed by reverse-domain name (e.g., "dev.ucp.shopping.checkout").
// The same structure serves discovery profiles and response envelopes,
// with different fields populated for each context.
type UCPMetadata struct {
	Version         string                      `json:"version"`
	Services        map[string][]Service        `json:"services,omitempty"` // Discovery only
	Capabilities    map[string][]Capability     `json:"capabilities"`
	PaymentHandlers map[string][]PaymentHandler `json:"payment_handlers"`
}

// Service represents a transport binding for a UCP capability.
// Each transport (REST, MCP) is a separate service entry.
type Service struct {
	Version   string `json:"version"`
	Transport string `json:"transport"`          // "rest", "mcp"
	Endpoint  string `json:"endpoint,omitempty"` // URL for the transport
	Spec      string `json:"spec,omitempty"`     // URL to human-readable spec
	Schema    string `json:"schema,omitempty"`   // URL to JSON Schema
}

// Capability declares a supported UCP capability using the entity pattern.
// Capabilities are keyed by reverse-domain name in the registry.
type Capability struct {
	Version string        `json:"version"`
	Spec    string        `json:"spec,omitempty"`
	Schema  string        `json:"schema,omitempty"`
	Extends *ExtendsField `json:"extends,omitempty"` // Parent capability(s) for extensions
}

// ExtendsField supports both string and []string for single/multi-parent extensions.
type ExtendsField struct {
	single   string
	multiple []string
}

// UnmarshalJSON handles both "string" and ["string", ...] formats.
func (e *ExtendsField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.single = s
		e.multiple = nil
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	e.single = ""
	e.multiple = arr
	return nil
}

// MarshalJSON outputs string for single parent, array for multiple.
func (e ExtendsField) MarshalJSON() ([]byte, error) {
	if e.single != "" {
		return json.Marshal(e.single)
	}
	if len(e.multiple) > 0 {
		return json.Marshal(e.multiple)
	}
	return []byte("null"), nil
}

// GetParents returns all parent capability names as a slice.
func (e ExtendsField) GetParents() []string {
	if e.single != "" {
		return []string{e.single}
	}
	return e.multiple
}

// IsExtension returns true if this capability extends one or more parents.
func (e ExtendsField) IsExtension() bool {
	return e.single != "" || len(e.multiple) > 0
}

// IsZero returns true if no extends value is set (for omitempty support).
func (e ExtendsField) IsZero() bool {
	return e.single == "" && len(e.multiple) == 0
}

// NewSingleExtends creates an ExtendsField with a single parent.
func NewSingleExtends(parent string) *ExtendsField {
	return &ExtendsField{single: parent}
}

// NewMultiExtends creates an ExtendsField with multiple parents.
func NewMultiExtends(parents ...string) *ExtendsField {
	return &ExtendsField{multiple: parents}
}

// === Enums ===

// CheckoutStatus represents the state of a checkout session.
// Always server-computed; callers never set it directly.
type CheckoutStatus string

const (
	StatusIncomplete         CheckoutStatus = "incomplete"           // Missing recoverable data (e.g., buyer email)
	StatusRequiresEscalation CheckoutStatus = "requires_escalation"  // Buyer input/review needed before proceeding
	StatusReadyForComplete   CheckoutStatus = "ready_for_complete"   // All data present, can call complete
	StatusCompleteInProgress CheckoutStatus = "complete_in_progress" // Payment capture in flight
	StatusCompleted          CheckoutStatus = "completed"            // Order finalized; terminal
	StatusCanceled           CheckoutStatus = "canceled"             // Session canceled; terminal
)

// IsTerminal reports whether the status admits no further mutation.
func (s CheckoutStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// MessageSeverity indicates how an error message should be handled.
type MessageSeverity string

const (
	SeverityRecoverable         MessageSeverity = "recoverable"           // Caller can fix with different input
	SeverityRequiresBuyerInput  MessageSeverity = "requires_buyer_input"  // Buyer must supply data (escalation)
	SeverityRequiresBuyerReview MessageSeverity = "requires_buyer_review" // Buyer must review before proceeding (escalation)
)

// Escalates reports whether this severity forces requires_escalation.
func (s MessageSeverity) Escalates() bool {
	return s == SeverityRequiresBuyerInput || s == SeverityRequiresBuyerReview
}

// TotalType categorizes different pricing components.
type TotalType string

const (
	TotalTypeItemsDiscount TotalType = "items_discount"
	TotalTypeSubtotal      TotalType = "subtotal"
	TotalTypeDiscount      TotalType = "discount"
	TotalTypeFulfillment   TotalType = "fulfillment"
	TotalTypeTax           TotalType = "tax"
	TotalTypeFee           TotalType = "fee"
	TotalTypeTotal         TotalType = "total"
)

// LinkType categorizes merchant policy links.
type LinkType string

const (
	LinkTypePrivacyPolicy  LinkType = "privacy_policy"
	LinkTypeTermsOfService LinkType = "terms_of_service"
	LinkTypeRefundPolicy   LinkType = "refund_policy"
	LinkTypeShippingPolicy LinkType = "shipping_policy"
)

// === Line Items ===

// LineItem represents a product in the checkout with server-resolved pricing.
type LineItem struct {
	ID       string  `json:"id"`
	Item     Item    `json:"item"`
	Quantity int     `json:"quantity"`
	Totals   []Total `json:"totals,omitempty"` // per-line subtotal, recomputed on every write
}

// Subtotal returns the line's subtotal amount, or 0 if not yet computed.
func (li LineItem) Subtotal() int64 {
	for _, t := range li.Totals {
		if t.Type == TotalTypeSubtotal {
			return t.Amount
		}
	}
	return 0
}

// Item represents product details within a line item.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Price    int64  `json:"price,omitempty"` // minor units, unit price
	ImageURL string `json:"image_url,omitempty"`
}

// === Totals & Links ===

// Total represents a categorized price component.
// All amounts are in minor currency units.
type Total struct {
	Type        TotalType `json:"type"`
	DisplayText string    `json:"display_text,omitempty"`
	Amount      int64     `json:"amount"`
}

// Link represents a merchant policy URL.
type Link struct {
	Type  LinkType `json:"type"`
	URL   string   `json:"url"`
	Title string   `json:"title,omitempty"`
}

// === Payment ===

// Payment contains submitted payment instruments.
// Instruments are opaque references; no payment-network integration here.
type Payment struct {
	Instruments []PaymentInstrument `json:"instruments,omitempty"`
}

// SelectedInstrument returns the first instrument with Selected=true, or nil.
func (p Payment) SelectedInstrument() *PaymentInstrument {
	for i := range p.Instruments {
		if p.Instruments[i].Selected {
			return &p.Instruments[i]
		}
	}
	return nil
}

// PaymentHandler defines a payment collection strategy using the entity pattern.
// Handlers are keyed by reverse-domain name (e.g., "com.stripe") in the registry.
type PaymentHandler struct {
	ID      string      `json:"id"`
	Version string      `json:"version"` // YYYY-MM-DD format
	Spec    string      `json:"spec,omitempty"`
	Schema  string      `json:"schema,omitempty"`
	Config  interface{} `json:"config,omitempty"`
}

// PaymentInstrument represents a payment method submitted by the buyer.
type PaymentInstrument struct {
	ID         string           `json:"id"`
	HandlerID  string           `json:"handler_id"`
	Type       string           `json:"type"` // "card", "wallet", "mandate"
	Selected   bool             `json:"selected,omitempty"`
	Credential *TokenCredential `json:"credential,omitempty"`
}

// TokenCredential contains opaque payment token data.
type TokenCredential struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// === Buyer ===

// Buyer represents the purchasing customer.
type Buyer struct {
	FirstName   string        `json:"first_name,omitempty"`
	LastName    string        `json:"last_name,omitempty"`
	Email       string        `json:"email,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	Consent     *BuyerConsent `json:"consent,omitempty"` // buyer_consent extension
}

// BuyerConsent carries consent flags per the dev.ucp.shopping.buyer_consent
// extension. DateOfBirth is caller-supplied; AgeVerified is server-computed
// after a successful date-of-birth check and is never accepted from callers.
type BuyerConsent struct {
	Analytics   bool   `json:"analytics,omitempty"`
	Preferences bool   `json:"preferences,omitempty"`
	Marketing   bool   `json:"marketing,omitempty"`
	SaleOfData  bool   `json:"sale_of_data,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // ISO 8601 date
	AgeVerified bool   `json:"age_verified,omitempty"`
}

// Context provides provisional buyer signals for market and currency
// determination. Higher-resolution data supersedes context.
type Context struct {
	Geo    *GeoContext `json:"geo,omitempty"`
	Locale string      `json:"locale,omitempty"`
}

// GeoContext locates the buyer for market resolution.
type GeoContext struct {
	Country string `json:"country,omitempty"` // ISO 3166-1 alpha-2
	Region  string `json:"region,omitempty"`
}

// === Messages ===

// Message represents feedback about checkout state.
// Type discriminates between error, warning, and info messages.
// For type="error", severity is required.
type Message struct {
	Type        string          `json:"type"` // "error", "warning", "info"
	Code        string          `json:"code,omitempty"`
	Content     string          `json:"content"`
	ContentType string          `json:"content_type,omitempty"` // "plain" or "markdown"
	Severity    MessageSeverity `json:"severity,omitempty"`     // required for errors
	Path        string          `json:"path,omitempty"`         // RFC 9535 JSONPath to field
}

// NewErrorMessage creates an error message with required severity.
func NewErrorMessage(code, content string, severity MessageSeverity) Message {
	return Message{
		Type:     "error",
		Code:     code,
		Content:  content,
		Severity: severity,
	}
}

// NewErrorMessageWithPath creates an error message pointing to a specific field.
func NewErrorMessageWithPath(code, content string, severity MessageSeverity, path string) Message {
	m := NewErrorMessage(code, content, severity)
	m.Path = path
	return m
}

// NewInfoMessage creates an informational message.
func NewInfoMessage(content string) Message {
	return Message{
		Type:    "info",
		Content: content,
	}
}

// NewWarningMessage creates a warning message. Warnings flag issues that
// affect expectations but don't prevent checkout from proceeding.
func NewWarningMessage(code, content string) Message {
	return Message{
		Type:    "warning",
		Code:    code,
		Content: content,
	}
}

// === Discovery Profile ===

// DiscoveryProfile is returned by the /.well-known/ucp endpoint.
// Advertises available services, capabilities, and payment handlers.
type DiscoveryProfile struct {
	UCP UCPMetadata `json:"ucp"`
}
