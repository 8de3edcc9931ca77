package model

import (
	"errors"
	"testing"
	"time"
)

func TestCreateCheckoutRequestValidate(t *testing.T) {
	valid := CreateCheckoutRequest{
		LineItems: []LineItemRequest{
			{Item: ItemRequest{ID: "glenmor-12"}, Quantity: 1},
		},
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateCheckoutRequest)
		wantErr bool
	}{
		{"valid", func(r *CreateCheckoutRequest) {}, false},
		{"no line items", func(r *CreateCheckoutRequest) { r.LineItems = nil }, true},
		{"empty item id", func(r *CreateCheckoutRequest) { r.LineItems[0].Item.ID = "" }, true},
		{"zero quantity", func(r *CreateCheckoutRequest) { r.LineItems[0].Quantity = 0 }, true},
		{"negative quantity", func(r *CreateCheckoutRequest) { r.LineItems[0].Quantity = -1 }, true},
		{"valid buyer email", func(r *CreateCheckoutRequest) {
			r.Buyer = &Buyer{Email: "buyer@example.com"}
		}, false},
		{"malformed buyer email", func(r *CreateCheckoutRequest) {
			r.Buyer = &Buyer{Email: "not-an-email"}
		}, true},
		{"email missing domain dot", func(r *CreateCheckoutRequest) {
			r.Buyer = &Buyer{Email: "a@b"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateCheckoutRequest{
				LineItems: append([]LineItemRequest(nil), valid.LineItems...),
			}
			tt.mutate(&req)

			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("error is not ErrInvalidRequest: %v", err)
			}
		})
	}
}

func TestUpdateCheckoutRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     UpdateCheckoutRequest
		wantErr bool
	}{
		{"empty update", UpdateCheckoutRequest{}, false},
		{"buyer only", UpdateCheckoutRequest{Buyer: &Buyer{Email: "a@b.co"}}, false},
		{"present but empty line items", UpdateCheckoutRequest{LineItems: []LineItemRequest{}}, true},
		{"bad quantity", UpdateCheckoutRequest{
			LineItems: []LineItemRequest{{Item: ItemRequest{ID: "x"}, Quantity: 0}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompleteCheckoutRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CompleteCheckoutRequest
		wantErr bool
	}{
		{"no payment", CompleteCheckoutRequest{}, false},
		{"valid instrument", CompleteCheckoutRequest{Payment: &Payment{
			Instruments: []PaymentInstrument{
				{ID: "in_1", HandlerID: "dev.ucp.payment.simulated", Type: "card"},
			},
		}}, false},
		{"missing instrument id", CompleteCheckoutRequest{Payment: &Payment{
			Instruments: []PaymentInstrument{{HandlerID: "h", Type: "card"}},
		}}, true},
		{"missing handler id", CompleteCheckoutRequest{Payment: &Payment{
			Instruments: []PaymentInstrument{{ID: "in_1", Type: "card"}},
		}}, true},
		{"unknown instrument type", CompleteCheckoutRequest{Payment: &Payment{
			Instruments: []PaymentInstrument{{ID: "in_1", HandlerID: "h", Type: "crypto"}},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckoutClone(t *testing.T) {
	expires := time.Now().Add(6 * time.Hour)
	original := &Checkout{
		ID:     "checkout_1",
		Status: StatusIncomplete,
		LineItems: []LineItem{
			{ID: "li_1", Item: Item{ID: "glenmor-12", Price: 4250}, Quantity: 2,
				Totals: []Total{{Type: TotalTypeSubtotal, Amount: 8500}}},
		},
		Buyer:     &Buyer{Email: "a@b.co", Consent: &BuyerConsent{DateOfBirth: "1990-01-01"}},
		ExpiresAt: &expires,
	}

	clone := original.Clone()
	clone.LineItems[0].Totals[0].Amount = 1
	clone.Buyer.Consent.DateOfBirth = "2020-01-01"
	clone.Buyer.Email = "x@y.co"

	if original.LineItems[0].Totals[0].Amount != 8500 {
		t.Error("clone shares line item totals with original")
	}
	if original.Buyer.Consent.DateOfBirth != "1990-01-01" {
		t.Error("clone shares consent with original")
	}
	if original.Buyer.Email != "a@b.co" {
		t.Error("clone shares buyer with original")
	}
}
