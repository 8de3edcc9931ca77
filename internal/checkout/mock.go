package checkout

import (
	"context"

	"ucp-merchant/internal/model"
)

// Mock is a Service implementation with overridable function fields,
// used by handler tests. Unset fields return a not-found error.
type Mock struct {
	CreateFunc   func(ctx context.Context, req *model.CreateCheckoutRequest, active []string) (*model.Checkout, error)
	GetFunc      func(ctx context.Context, id string, active []string) (*model.Checkout, error)
	UpdateFunc   func(ctx context.Context, id string, req *model.UpdateCheckoutRequest, active []string) (*model.Checkout, error)
	CompleteFunc func(ctx context.Context, id string, req *model.CompleteCheckoutRequest, active []string) (*model.Checkout, error)
	CancelFunc   func(ctx context.Context, id string, active []string) (*model.Checkout, error)
}

func (m *Mock) Create(ctx context.Context, req *model.CreateCheckoutRequest, active []string) (*model.Checkout, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req, active)
	}
	return nil, model.NewNotFoundError("")
}

func (m *Mock) Get(ctx context.Context, id string, active []string) (*model.Checkout, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, active)
	}
	return nil, model.NewNotFoundError(id)
}

func (m *Mock) Update(ctx context.Context, id string, req *model.UpdateCheckoutRequest, active []string) (*model.Checkout, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, req, active)
	}
	return nil, model.NewNotFoundError(id)
}

func (m *Mock) Complete(ctx context.Context, id string, req *model.CompleteCheckoutRequest, active []string) (*model.Checkout, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, id, req, active)
	}
	return nil, model.NewNotFoundError(id)
}

func (m *Mock) Cancel(ctx context.Context, id string, active []string) (*model.Checkout, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id, active)
	}
	return nil, model.NewNotFoundError(id)
}

var _ Service = (*Mock)(nil)
