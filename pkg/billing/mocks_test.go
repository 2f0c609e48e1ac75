package billing_test

import (
	"context"
	"sync"

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

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendPaymentReceipt(ctx context.Context, r subscription.Receipt) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockNotifier) SendPaymentFailureAlert(ctx context.Context, a subscription.FailureAlert) error {
	return m.Called(ctx, a).Error(0)
}

type fakeLocker struct {
	mu     sync.Mutex
	busy   map[string]bool
	locked []string
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[key] {
		return nil, subscription.ErrLockNotAcquired
	}
	l.locked = append(l.locked, key)
	return func(context.Context) error { return nil }, nil
}
