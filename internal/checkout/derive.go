package checkout

import (
	"fmt"
	"time"

	"ucp-merchant/internal/catalog"
	"ucp-merchant/internal/compliance"
	"ucp-merchant/internal/model"
)

// Derivation rules for server-computed session fields. Every write path
// rebuilds line-item pricing, totals, messages, and status from scratch;
// nothing derived survives from the previous revision.

// defaultMarket is assumed when the caller provides no geo context.
const defaultMarket = "GB"

// marketCurrencies maps market to settlement currency. Unknown markets
// settle in GBP.
var marketCurrencies = map[string]string{
	"GB": "GBP",
	"US": "USD",
	"DE": "EUR",
	"FR": "EUR",
	"JP": "JPY",
}

func resolveMarket(cctx *model.Context) string {
	if cctx != nil && cctx.Geo != nil && cctx.Geo.Country != "" {
		return cctx.Geo.Country
	}
	return defaultMarket
}

func currencyForMarket(market string) string {
	if c, ok := marketCurrencies[market]; ok {
		return c
	}
	return "GBP"
}

// resolveLineItems prices the requested items from the catalog. Unknown
// products are kept at price zero with a warning rather than rejected, so
// a stale agent catalog doesn't block the whole checkout.
func resolveLineItems(cat catalog.Lookup, reqs []model.LineItemRequest, currency string, newID func() string) ([]model.LineItem, []model.Message) {
	items := make([]model.LineItem, 0, len(reqs))
	var messages []model.Message

	for _, req := range reqs {
		id := req.ID
		if id == "" {
			id = "li_" + newID()
		}

		item := model.Item{ID: req.Item.ID}
		if product, ok := cat.Product(req.Item.ID); ok {
			item.Title = product.Title
			item.Price = product.UnitPrice(currency)
			item.ImageURL = product.ImageURL
		} else {
			messages = append(messages, model.NewWarningMessage(
				"unknown_item",
				fmt.Sprintf("item %q is not in the catalog; priced at zero", req.Item.ID),
			))
		}

		subtotal := item.Price * int64(req.Quantity)
		items = append(items, model.LineItem{
			ID:       id,
			Item:     item,
			Quantity: req.Quantity,
			Totals: []model.Total{
				{Type: model.TotalTypeSubtotal, Amount: subtotal},
			},
		})
	}

	return items, messages
}

// computeTotals derives the order totals from line items. Tax is a single
// flat rate applied to the subtotal, rounded half-up in minor units.
func computeTotals(items []model.LineItem, taxBasisPoints int) []model.Total {
	var subtotal int64
	for _, li := range items {
		subtotal += li.Subtotal()
	}

	tax := (subtotal*int64(taxBasisPoints) + 5000) / 10000
	total := subtotal + tax

	return []model.Total{
		{Type: model.TotalTypeSubtotal, DisplayText: "Subtotal", Amount: subtotal},
		{Type: model.TotalTypeTax, DisplayText: taxDisplayText(taxBasisPoints), Amount: tax},
		{Type: model.TotalTypeTotal, DisplayText: "Total", Amount: total},
	}
}

func taxDisplayText(basisPoints int) string {
	if basisPoints%100 == 0 {
		return fmt.Sprintf("Tax (%d%%)", basisPoints/100)
	}
	return fmt.Sprintf("Tax (%.2f%%)", float64(basisPoints)/100)
}

// complianceResult is the outcome of a compliance evaluation. Evaluation
// is pure: the caller decides what to do with the verdict.
type complianceResult struct {
	Messages    []model.Message
	AgeVerified bool
}

// evaluateCompliance checks the session against market rules. Date of
// birth travels in the buyer consent extension, so age verification only
// applies when that capability is active for this caller; core-only
// callers skip it entirely and the market rules alone decide.
func evaluateCompliance(ev *compliance.Evaluator, buyer *model.Buyer, market string, consentActive bool, now time.Time) complianceResult {
	var result complianceResult

	if ev.IsRestricted(market) {
		result.Messages = append(result.Messages, model.NewErrorMessage(
			"market_restricted",
			fmt.Sprintf("orders cannot be fulfilled in market %s", market),
			model.SeverityRequiresBuyerReview,
		))
		return result
	}

	if buyer == nil || buyer.Email == "" {
		result.Messages = append(result.Messages, model.NewErrorMessageWithPath(
			"missing_field",
			"buyer email is required",
			model.SeverityRecoverable,
			"$.buyer.email",
		))
	}

	required := ev.AgeThreshold(market)
	if !consentActive || required <= 0 {
		return result
	}

	dateOfBirth := ""
	if buyer != nil && buyer.Consent != nil {
		dateOfBirth = buyer.Consent.DateOfBirth
	}

	switch {
	case dateOfBirth == "":
		result.Messages = append(result.Messages, model.NewErrorMessage(
			"age_verification_required",
			fmt.Sprintf("age verification is required for this order (minimum age %d)", required),
			model.SeverityRequiresBuyerInput,
		))
	default:
		verification := ev.VerifyAge(dateOfBirth, market, now)
		if verification.Verified {
			result.AgeVerified = true
		} else {
			result.Messages = append(result.Messages, model.NewErrorMessageWithPath(
				"age_verification_failed",
				fmt.Sprintf("buyer does not meet the minimum age of %d for market %s", verification.RequiredAge, market),
				model.SeverityRequiresBuyerInput,
				"$.buyer.consent.date_of_birth",
			))
		}
	}

	return result
}

// deriveStatus computes the session status from its error messages.
// Escalating errors win over recoverable ones; a clean session is ready
// to complete.
func deriveStatus(messages []model.Message) model.CheckoutStatus {
	status := model.StatusReadyForComplete
	for _, m := range messages {
		if m.Type != "error" {
			continue
		}
		if m.Severity.Escalates() {
			return model.StatusRequiresEscalation
		}
		status = model.StatusIncomplete
	}
	return status
}
