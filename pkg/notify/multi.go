package notify

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Multi sends every notification through all of its notifiers.
type Multi struct {
	notifiers []subscription.Notifier
	logger    *slog.Logger
}

// NewMulti combines notifiers. Failures are logged and never returned.
func NewMulti(log *slog.Logger, notifiers ...subscription.Notifier) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{notifiers: notifiers, logger: log.With(logger.Component("notify"))}
}

func (m *Multi) SendPaymentReceipt(ctx context.Context, r subscription.Receipt) error {
	for i, n := range m.notifiers {
		if err := n.SendPaymentReceipt(ctx, r); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver payment receipt",
				logger.SubscriptionID(r.SubscriptionID),
				logger.UserID(r.UserID),
				slog.Int("notifier_index", i),
				logger.Error(err))
		}
	}
	return nil
}

func (m *Multi) SendPaymentFailureAlert(ctx context.Context, a subscription.FailureAlert) error {
	for i, n := range m.notifiers {
		if err := n.SendPaymentFailureAlert(ctx, a); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver payment failure alert",
				logger.SubscriptionID(a.SubscriptionID),
				logger.UserID(a.UserID),
				slog.Int("notifier_index", i),
				logger.Error(err))
		}
	}
	return nil
}

// Log writes notifications to the logger instead of delivering them.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a notifier that only logs.
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{logger: log.With(logger.Component("notify"))}
}

func (l *Log) SendPaymentReceipt(ctx context.Context, r subscription.Receipt) error {
	l.logger.InfoContext(ctx, "payment receipt",
		logger.SubscriptionID(r.SubscriptionID),
		logger.UserID(r.UserID),
		logger.Amount(r.Amount.String()),
		logger.TransactionRef(r.TransactionRef))
	return nil
}

func (l *Log) SendPaymentFailureAlert(ctx context.Context, a subscription.FailureAlert) error {
	l.logger.WarnContext(ctx, "payment failure alert",
		logger.SubscriptionID(a.SubscriptionID),
		logger.UserID(a.UserID),
		logger.Amount(a.Amount.String()),
		logger.RetryCount(a.Attempt),
		slog.Bool("past_due", a.PastDue))
	return nil
}
