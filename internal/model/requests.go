package model

import (
	"fmt"
	"strings"
)

// Request types for the checkout operations. Both transports decode into
// these shapes and validate them exhaustively before any engine call;
// malformed input never reaches the session engine.

// CreateCheckoutRequest contains fields for creating a checkout session.
type CreateCheckoutRequest struct {
	LineItems []LineItemRequest `json:"line_items"`
	Buyer     *Buyer            `json:"buyer,omitempty"`
	Context   *Context          `json:"context,omitempty"`
}

// LineItemRequest specifies a line item by product reference.
// Prices are never caller-supplied; the engine resolves them.
type LineItemRequest struct {
	ID       string      `json:"id,omitempty"`
	Item     ItemRequest `json:"item"`
	Quantity int         `json:"quantity"`
}

// ItemRequest references a catalog product.
type ItemRequest struct {
	ID string `json:"id"`
}

// UpdateCheckoutRequest contains fields for updating a checkout session.
// Present fields replace current values wholesale: line items not resent
// are dropped. Omitted fields are left unchanged.
type UpdateCheckoutRequest struct {
	LineItems []LineItemRequest `json:"line_items,omitempty"`
	Buyer     *Buyer            `json:"buyer,omitempty"`
	Context   *Context          `json:"context,omitempty"`
}

// CompleteCheckoutRequest contains payment for completing a checkout.
type CompleteCheckoutRequest struct {
	Payment *Payment `json:"payment,omitempty"`
}

// Validate checks the create request shape.
func (r *CreateCheckoutRequest) Validate() error {
	if len(r.LineItems) == 0 {
		return NewInvalidRequestError("line_items", "at least one line item required")
	}
	if err := validateLineItems(r.LineItems); err != nil {
		return err
	}
	return validateBuyer(r.Buyer)
}

// Validate checks the update request shape. All fields are optional but
// must be well-formed when present.
func (r *UpdateCheckoutRequest) Validate() error {
	if r.LineItems != nil {
		if len(r.LineItems) == 0 {
			return NewInvalidRequestError("line_items", "must contain at least one line item when present")
		}
		if err := validateLineItems(r.LineItems); err != nil {
			return err
		}
	}
	return validateBuyer(r.Buyer)
}

// Validate checks the complete request shape. Payment is optional; when
// instruments are supplied each must carry an id, handler and known type.
func (r *CompleteCheckoutRequest) Validate() error {
	if r.Payment == nil {
		return nil
	}
	for i, in := range r.Payment.Instruments {
		field := fmt.Sprintf("payment.instruments[%d]", i)
		if in.ID == "" {
			return NewInvalidRequestError(field+".id", "instrument id required")
		}
		if in.HandlerID == "" {
			return NewInvalidRequestError(field+".handler_id", "handler id required")
		}
		switch in.Type {
		case "card", "wallet", "mandate":
		default:
			return NewInvalidRequestError(field+".type", "must be one of card, wallet, mandate")
		}
	}
	return nil
}

func validateLineItems(items []LineItemRequest) error {
	for i, li := range items {
		field := fmt.Sprintf("line_items[%d]", i)
		if li.Item.ID == "" {
			return NewInvalidRequestError(field+".item.id", "product id required")
		}
		if li.Quantity < 1 {
			return NewInvalidRequestError(field+".quantity", "must be at least 1")
		}
	}
	return nil
}

func validateBuyer(b *Buyer) error {
	if b == nil {
		return nil
	}
	if b.Email != "" && !looksLikeEmail(b.Email) {
		return NewInvalidRequestError("buyer.email", "not a valid email address")
	}
	return nil
}

// looksLikeEmail performs a structural check: one @, non-empty local part,
// and a domain with at least one dot. Deliverability is not our concern.
func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at < 1 || at != strings.LastIndex(s, "@") {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
