package lifecycle_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, req subscription.CustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateProduct(ctx context.Context, req subscription.ProductRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePrice(ctx context.Context, req subscription.PriceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Capture(ctx context.Context, req subscription.CaptureRequest) (*subscription.CaptureResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CaptureResult), args.Error(1)
}

func (m *mockGateway) CreateSubscription(ctx context.Context, req subscription.GatewaySubscriptionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) UpdateSubscription(ctx context.Context, req subscription.GatewaySubscriptionUpdate) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockGateway) CancelSubscription(ctx context.Context, ref string, atPeriodEnd bool) error {
	return m.Called(ctx, ref, atPeriodEnd).Error(0)
}

func (m *mockGateway) Refund(ctx context.Context, req subscription.RefundRequest) (*subscription.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.RefundResult), args.Error(1)
}
