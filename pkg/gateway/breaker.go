package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Breaker guards a PaymentGateway with a circuit breaker. While the circuit
// is open calls fail fast with subscription.ErrGatewayUnavailable, which the
// billing pass treats as a transient failure.
type Breaker struct {
	next subscription.PaymentGateway
	cb   *gobreaker.CircuitBreaker[any]
}

var _ subscription.PaymentGateway = (*Breaker)(nil)

// NewBreaker wraps next. Declines, rejected requests and caller cancellation
// do not count as failures.
func NewBreaker(next subscription.PaymentGateway, cfg BreakerConfig, log *slog.Logger) *Breaker {
	if next == nil {
		panic("gateway: next gateway is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	log = log.With(logger.Component("gateway_breaker"))

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, subscription.ErrGatewayRejected) ||
				errors.Is(err, ErrInvalidRequest) ||
				errors.Is(err, ErrUnsupported) ||
				errors.Is(err, ErrRenewalPending) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			log.Log(context.Background(), level, "circuit breaker state changed",
				slog.String("breaker", name),
				logger.Transition(from.String(), to.String()))
		},
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the breaker state: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) CreateCustomer(ctx context.Context, req subscription.CustomerRequest) (string, error) {
	return execute(b, "create customer", func() (string, error) { return b.next.CreateCustomer(ctx, req) })
}

func (b *Breaker) CreateProduct(ctx context.Context, req subscription.ProductRequest) (string, error) {
	return execute(b, "create product", func() (string, error) { return b.next.CreateProduct(ctx, req) })
}

func (b *Breaker) CreatePrice(ctx context.Context, req subscription.PriceRequest) (string, error) {
	return execute(b, "create price", func() (string, error) { return b.next.CreatePrice(ctx, req) })
}

func (b *Breaker) Capture(ctx context.Context, req subscription.CaptureRequest) (*subscription.CaptureResult, error) {
	return execute(b, "capture", func() (*subscription.CaptureResult, error) { return b.next.Capture(ctx, req) })
}

func (b *Breaker) CreateSubscription(ctx context.Context, req subscription.GatewaySubscriptionRequest) (string, error) {
	return execute(b, "create subscription", func() (string, error) { return b.next.CreateSubscription(ctx, req) })
}

func (b *Breaker) UpdateSubscription(ctx context.Context, req subscription.GatewaySubscriptionUpdate) error {
	_, err := execute(b, "update subscription", func() (struct{}, error) {
		return struct{}{}, b.next.UpdateSubscription(ctx, req)
	})
	return err
}

func (b *Breaker) CancelSubscription(ctx context.Context, ref string, atPeriodEnd bool) error {
	_, err := execute(b, "cancel subscription", func() (struct{}, error) {
		return struct{}{}, b.next.CancelSubscription(ctx, ref, atPeriodEnd)
	})
	return err
}

func (b *Breaker) Refund(ctx context.Context, req subscription.RefundRequest) (*subscription.RefundResult, error) {
	return execute(b, "refund", func() (*subscription.RefundResult, error) { return b.next.Refund(ctx, req) })
}

func execute[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%s: %w: %w", op, subscription.ErrGatewayUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
