package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ucp-merchant/internal/catalog"
	"ucp-merchant/internal/compliance"
	"ucp-merchant/internal/model"
)

// Config carries the engine's merchant-level settings.
type Config struct {
	// BaseURL is the merchant storefront origin, used to build continue
	// URLs pointing buyers at the hosted checkout page.
	BaseURL string

	// Links are the merchant policy links stamped on every session.
	Links []model.Link

	// TaxRateBasisPoints is the flat tax rate applied to the subtotal.
	// Zero means the default of 800 (8%).
	TaxRateBasisPoints int

	// SessionTTL is how long a non-terminal session stays retrievable.
	// Zero means the default of 6 hours.
	SessionTTL time.Duration

	// CaptureTimeout bounds a payment capture attempt.
	CaptureTimeout time.Duration
}

const (
	defaultTaxRateBasisPoints = 800
	defaultSessionTTL         = 6 * time.Hour
)

// Engine is the checkout session engine. All mutations are serialized
// per session id and written all-or-nothing: handlers on either transport
// see the same state machine.
type Engine struct {
	store      Store
	catalog    catalog.Lookup
	compliance *compliance.Evaluator
	capturer   Capturer
	cfg        Config
	logger     *slog.Logger

	now   func() time.Time
	newID func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewEngine creates an engine. Zero config values get defaults.
func NewEngine(store Store, cat catalog.Lookup, ev *compliance.Evaluator, capturer Capturer, cfg Config, logger *slog.Logger) *Engine {
	if cfg.TaxRateBasisPoints == 0 {
		cfg.TaxRateBasisPoints = defaultTaxRateBasisPoints
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.CaptureTimeout == 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if capturer == nil {
		capturer = &SimulatedCapturer{}
	}
	return &Engine{
		store:      store,
		catalog:    cat,
		compliance: ev,
		capturer:   capturer,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Create starts a new checkout session.
func (e *Engine) Create(ctx context.Context, req *model.CreateCheckoutRequest, active []string) (*model.Checkout, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	market := resolveMarket(req.Context)
	currency := currencyForMarket(market)

	id := "checkout_" + e.newID()
	expiresAt := now.Add(e.cfg.SessionTTL)

	session := &model.Checkout{
		ID:          id,
		Currency:    currency,
		Market:      market,
		Links:       append([]model.Link(nil), e.cfg.Links...),
		Buyer:       sanitizeBuyer(req.Buyer),
		ContinueURL: e.cfg.BaseURL + "/checkout/" + id,
		ExpiresAt:   &expiresAt,
	}

	var warnings []model.Message
	session.LineItems, warnings = resolveLineItems(e.catalog, req.LineItems, currency, e.shortID)
	e.refresh(session, warnings, active, now)

	if err := e.store.Put(ctx, session); err != nil {
		return nil, model.NewInternalError(err)
	}

	e.logger.Info("checkout created",
		"checkout_id", id, "market", market, "currency", currency,
		"status", session.Status, "line_items", len(session.LineItems))
	return session, nil
}

// Get returns the current session state. Expired sessions read as not
// found.
func (e *Engine) Get(ctx context.Context, id string, _ []string) (*model.Checkout, error) {
	session, _, err := e.load(ctx, id)
	return session, err
}

// Update applies a wholesale replacement of the provided fields and
// re-derives pricing, compliance, and status.
func (e *Engine) Update(ctx context.Context, id string, req *model.UpdateCheckoutRequest, active []string) (*model.Checkout, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := e.lock(id)
	defer unlock()

	session, version, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason, ok := updateBlocked(session.Status); ok {
		return nil, model.NewUpdateConflictError(reason)
	}

	now := e.now()
	if req.Context != nil {
		session.Market = resolveMarket(req.Context)
		session.Currency = currencyForMarket(session.Market)
	}
	if req.Buyer != nil {
		session.Buyer = mergeBuyer(session.Buyer, req.Buyer)
	}

	// Reprice from the catalog on every update, even when line items are
	// unchanged: a market switch changes the settlement currency.
	itemReqs := req.LineItems
	if itemReqs == nil {
		itemReqs = lineItemRequests(session.LineItems)
	}
	var warnings []model.Message
	session.LineItems, warnings = resolveLineItems(e.catalog, itemReqs, session.Currency, e.shortID)
	e.refresh(session, warnings, active, now)

	if err := e.swap(ctx, session, version); err != nil {
		return nil, err
	}

	e.logger.Info("checkout updated", "checkout_id", id, "status", session.Status)
	return session, nil
}

// Complete finalizes the session: re-checks compliance, captures payment,
// and records the resulting order. Only a ready_for_complete session can
// complete, and a session completes at most once.
func (e *Engine) Complete(ctx context.Context, id string, req *model.CompleteCheckoutRequest, active []string) (*model.Checkout, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := e.lock(id)
	defer unlock()

	session, version, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusReadyForComplete {
		return nil, model.NewCompleteConflictError(fmt.Sprintf("checkout is %s", session.Status))
	}

	now := e.now()

	// Compliance is re-evaluated at completion time. The capability set
	// can differ from the one that made the session ready, so the verdict
	// can change between calls.
	check := evaluateCompliance(e.compliance, session.Buyer, session.Market, hasCapability(active, model.CapabilityBuyerConsent), now)
	if hasErrorMessages(check.Messages) {
		session.Messages = check.Messages
		session.Status = deriveStatus(session.Messages)
		if err := e.swap(ctx, session, version); err != nil {
			return nil, err
		}
		return nil, model.NewCompleteConflictError("checkout is no longer ready to complete")
	}

	// Payment is optional: a complete without an instrument captures
	// against the default handler with no credential.
	if req.Payment != nil {
		session.Payment = *req.Payment
	}
	instrument := session.Payment.SelectedInstrument()
	if instrument == nil && len(session.Payment.Instruments) > 0 {
		instrument = &session.Payment.Instruments[0]
	}

	// Mark capture in flight before calling the processor so a retry
	// arriving mid-capture conflicts instead of double-charging.
	session.Status = model.StatusCompleteInProgress
	if err := e.swap(ctx, session, version); err != nil {
		return nil, err
	}
	version++

	result, captureErr := e.capture(ctx, session, instrument)
	if captureErr != nil {
		// Messages are rebuilt, not appended: a retried failure must not
		// stack duplicate capture errors.
		session.Status = model.StatusReadyForComplete
		session.Messages = append(retainWarnings(session.Messages), model.NewErrorMessage(
			"payment_capture_failed",
			"payment could not be captured; try again or use a different instrument",
			model.SeverityRecoverable,
		))
		if err := e.swap(ctx, session, version); err != nil {
			return nil, err
		}
		e.logger.Warn("payment capture failed", "checkout_id", id, "error", captureErr)
		return nil, model.NewCompleteConflictError("payment capture failed")
	}

	session.Status = model.StatusCompleted
	session.Order = &model.Order{ID: "order_" + e.shortID(), Status: "confirmed"}
	session.Messages = []model.Message{
		model.NewInfoMessage(fmt.Sprintf("Order %s confirmed", session.Order.ID)),
	}
	if err := e.swap(ctx, session, version); err != nil {
		return nil, err
	}

	e.logger.Info("checkout completed",
		"checkout_id", id, "order_id", session.Order.ID,
		"capture_ref", result.Reference, "total", totalAmount(session.Totals))
	return session, nil
}

// Cancel moves the session to canceled. Canceling an already canceled
// session is a no-op; a completed session cannot be canceled.
func (e *Engine) Cancel(ctx context.Context, id string, _ []string) (*model.Checkout, error) {
	unlock := e.lock(id)
	defer unlock()

	session, version, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case model.StatusCanceled:
		return session, nil
	case model.StatusCompleted:
		return nil, model.NewCancelConflictError("checkout is completed")
	case model.StatusCompleteInProgress:
		return nil, model.NewCancelConflictError("payment capture is in progress")
	}

	session.Status = model.StatusCanceled
	session.Messages = []model.Message{model.NewInfoMessage("Checkout canceled")}
	if err := e.swap(ctx, session, version); err != nil {
		return nil, err
	}

	e.logger.Info("checkout canceled", "checkout_id", id)
	return session, nil
}

// === internals ===

// load fetches a session and enforces the read-time expiry check.
func (e *Engine) load(ctx context.Context, id string) (*model.Checkout, uint64, error) {
	session, version, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, 0, model.NewNotFoundError(id)
		}
		return nil, 0, model.NewInternalError(err)
	}
	if !session.Status.IsTerminal() && session.ExpiresAt != nil && e.now().After(*session.ExpiresAt) {
		e.logger.Info("checkout expired", "checkout_id", id, "expires_at", session.ExpiresAt)
		return nil, 0, model.NewNotFoundError(id)
	}
	return session, version, nil
}

// swap writes the session back via compare-and-swap. With per-id locking
// a conflict means something outside the engine touched the store.
func (e *Engine) swap(ctx context.Context, session *model.Checkout, version uint64) error {
	if err := e.store.CompareAndSwap(ctx, session, version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return model.NewUpdateConflictError("checkout was modified concurrently")
		}
		if errors.Is(err, model.ErrNotFound) {
			return model.NewNotFoundError(session.ID)
		}
		return model.NewInternalError(err)
	}
	return nil
}

// refresh rebuilds all derived state: totals, compliance messages, the
// server-computed age flag, and status.
func (e *Engine) refresh(session *model.Checkout, warnings []model.Message, active []string, now time.Time) {
	session.Totals = computeTotals(session.LineItems, e.cfg.TaxRateBasisPoints)

	check := evaluateCompliance(e.compliance, session.Buyer, session.Market,
		hasCapability(active, model.CapabilityBuyerConsent), now)
	setAgeVerified(session, check.AgeVerified)

	session.Messages = append(warnings, check.Messages...)
	session.Status = deriveStatus(session.Messages)
}

func (e *Engine) capture(ctx context.Context, session *model.Checkout, instrument *model.PaymentInstrument) (CaptureResult, error) {
	captureCtx, cancel := context.WithTimeout(ctx, e.cfg.CaptureTimeout)
	defer cancel()

	req := CaptureRequest{
		CheckoutID: session.ID,
		Amount:     totalAmount(session.Totals),
		Currency:   session.Currency,
	}
	if instrument != nil {
		req.HandlerID = instrument.HandlerID
		req.InstrumentID = instrument.ID
		if instrument.Credential != nil {
			req.Token = instrument.Credential.Token
		}
	}
	return e.capturer.Capture(captureCtx, req)
}

// lock serializes mutations for one session id.
func (e *Engine) lock(id string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (e *Engine) shortID() string {
	return e.newID()[:8]
}

func updateBlocked(status model.CheckoutStatus) (string, bool) {
	switch status {
	case model.StatusCompleted, model.StatusCanceled:
		return fmt.Sprintf("checkout is %s", status), true
	case model.StatusCompleteInProgress:
		return "payment capture is in progress", true
	}
	return "", false
}

// sanitizeBuyer copies caller-supplied buyer data, dropping the
// server-computed age flag. Callers never assert their own verification.
func sanitizeBuyer(b *model.Buyer) *model.Buyer {
	if b == nil {
		return nil
	}
	buyer := *b
	if b.Consent != nil {
		consent := *b.Consent
		consent.AgeVerified = false
		buyer.Consent = &consent
	}
	return &buyer
}

// mergeBuyer overlays incoming buyer fields onto the current ones.
// Non-empty scalar fields replace; a present consent block replaces the
// whole block.
func mergeBuyer(current, incoming *model.Buyer) *model.Buyer {
	incoming = sanitizeBuyer(incoming)
	if current == nil {
		return incoming
	}
	merged := *current
	if incoming.FirstName != "" {
		merged.FirstName = incoming.FirstName
	}
	if incoming.LastName != "" {
		merged.LastName = incoming.LastName
	}
	if incoming.Email != "" {
		merged.Email = incoming.Email
	}
	if incoming.PhoneNumber != "" {
		merged.PhoneNumber = incoming.PhoneNumber
	}
	if incoming.Consent != nil {
		merged.Consent = incoming.Consent
	}
	return &merged
}

func setAgeVerified(session *model.Checkout, verified bool) {
	if verified {
		if session.Buyer == nil {
			session.Buyer = &model.Buyer{}
		}
		if session.Buyer.Consent == nil {
			session.Buyer.Consent = &model.BuyerConsent{}
		}
		session.Buyer.Consent.AgeVerified = true
		return
	}
	if session.Buyer != nil && session.Buyer.Consent != nil {
		session.Buyer.Consent.AgeVerified = false
	}
}

// lineItemRequests projects stored line items back into request form so
// an update without line items can still reprice.
func lineItemRequests(items []model.LineItem) []model.LineItemRequest {
	out := make([]model.LineItemRequest, len(items))
	for i, li := range items {
		out[i] = model.LineItemRequest{
			ID:       li.ID,
			Item:     model.ItemRequest{ID: li.Item.ID},
			Quantity: li.Quantity,
		}
	}
	return out
}

func hasCapability(active []string, name string) bool {
	for _, n := range active {
		if n == name {
			return true
		}
	}
	return false
}

// retainWarnings keeps only warning messages, dropping prior errors and
// info before a fresh verdict is attached.
func retainWarnings(messages []model.Message) []model.Message {
	var kept []model.Message
	for _, m := range messages {
		if m.Type == "warning" {
			kept = append(kept, m)
		}
	}
	return kept
}

func hasErrorMessages(messages []model.Message) bool {
	for _, m := range messages {
		if m.Type == "error" {
			return true
		}
	}
	return false
}

func totalAmount(totals []model.Total) int64 {
	for _, t := range totals {
		if t.Type == model.TotalTypeTotal {
			return t.Amount
		}
	}
	return 0
}

var _ Service = (*Engine)(nil)
