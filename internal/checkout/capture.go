package checkout

import (
	"context"
	"errors"
	"time"
)

// DefaultCaptureTimeout bounds a single payment capture attempt.
const DefaultCaptureTimeout = 10 * time.Second

// ErrCaptureDeclined indicates the payment processor rejected the capture.
var ErrCaptureDeclined = errors.New("payment capture declined")

// CaptureRequest describes one payment capture attempt.
type CaptureRequest struct {
	CheckoutID   string
	Amount       int64 // minor units
	Currency     string
	HandlerID    string
	InstrumentID string
	Token        string
}

// CaptureResult is returned by a successful capture.
type CaptureResult struct {
	Reference string // processor-side reference for the charge
}

// Capturer settles payment for a completing checkout. Implementations
// must honor ctx cancellation; the engine bounds every attempt with a
// timeout and treats any error as a failed capture.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

// SimulatedCapturer is the built-in processor stand-in. It approves every
// capture except those whose token matches DeclineToken, after an optional
// artificial latency.
type SimulatedCapturer struct {
	Latency      time.Duration
	DeclineToken string
}

// Capture implements Capturer.
func (c *SimulatedCapturer) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return CaptureResult{}, ctx.Err()
		}
	}
	if c.DeclineToken != "" && req.Token == c.DeclineToken {
		return CaptureResult{}, ErrCaptureDeclined
	}
	return CaptureResult{Reference: "cap_" + req.CheckoutID}, nil
}

var _ Capturer = (*SimulatedCapturer)(nil)
