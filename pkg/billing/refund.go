package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// RefundInput describes a refund against a successful billing record.
// A zero Amount refunds everything still refundable.
type RefundInput struct {
	RecordID uuid.UUID
	Amount   int64
	Reason   string
}

// Refunds issues full or partial refunds and attaches them to billing records.
// Refunds of one record are serialized, in process and, with a locker, across
// instances, so the refundable amount is checked and spent by one caller at a time.
type Refunds struct {
	repo    subscription.Repository
	gateway subscription.PaymentGateway
	locker  subscription.Locker
	log     *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// RefundOption configures the refund service.
type RefundOption func(*Refunds)

// WithRefundLocker serializes refunds of a record across scheduler instances.
func WithRefundLocker(l subscription.Locker) RefundOption {
	return func(r *Refunds) {
		r.locker = l
	}
}

// NewRefunds creates a refund service. Panics if a required dependency is nil.
func NewRefunds(repo subscription.Repository, gateway subscription.PaymentGateway, log *slog.Logger, opts ...RefundOption) *Refunds {
	if repo == nil {
		panic("billing: repository is required")
	}
	if gateway == nil {
		panic("billing: payment gateway is required")
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Refunds{
		repo:    repo,
		gateway: gateway,
		log:     log.With(logger.Component("refunds")),
		now:     func() time.Time { return time.Now().UTC() },
		locks:   make(map[uuid.UUID]*recordLock),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue refunds part or all of a successful charge.
// It returns ErrRefundInProgress when another instance is refunding the same record.
func (r *Refunds) Issue(ctx context.Context, in RefundInput) (*subscription.Refund, error) {
	if in.Amount < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidRefund)
	}

	release := r.lockRecord(in.RecordID)
	defer release()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, refundLockKey(in.RecordID))
		if errors.Is(err, subscription.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: record %s", ErrRefundInProgress, in.RecordID)
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.log.WarnContext(ctx, "failed to release refund lock", logger.Error(err))
			}
		}()
	}

	rec, err := r.repo.BillingRecord(ctx, in.RecordID)
	if err != nil {
		return nil, err
	}
	if rec.Outcome != subscription.OutcomeSuccess || rec.TransactionRef == "" {
		return nil, fmt.Errorf("%w: record %s is not a captured charge", subscription.ErrRefundNotAllowed, rec.ID)
	}

	refundable := rec.Refundable()
	if refundable.Amount <= 0 {
		return nil, fmt.Errorf("%w: record %s is fully refunded", subscription.ErrRefundNotAllowed, rec.ID)
	}

	amount := in.Amount
	if amount == 0 {
		amount = refundable.Amount
	}
	if amount > refundable.Amount {
		return nil, subscription.ErrRefundExceedsCaptured
	}

	money := subscription.Money{Amount: amount, Currency: rec.Amount.Currency}
	res, err := r.gateway.Refund(context.WithoutCancel(ctx), subscription.RefundRequest{
		TransactionRef: rec.TransactionRef,
		LineItemRef:    rec.LineItemRef,
		Amount:         money,
		Full:           amount == rec.Amount.Amount,
		Reason:         in.Reason,
	})
	if err != nil {
		return nil, errors.Join(subscription.ErrGatewayUnavailable, err)
	}

	refund := subscription.Refund{
		ID:        uuid.New(),
		Ref:       res.Ref,
		Amount:    money,
		Reason:    in.Reason,
		CreatedAt: r.now(),
	}
	if err := r.repo.AttachRefund(ctx, rec.ID, refund); err != nil {
		r.log.ErrorContext(ctx, "refund issued but not recorded",
			logger.SubscriptionID(rec.SubscriptionID),
			slog.String("refund_ref", res.Ref),
			logger.Amount(money.String()),
			logger.Error(err))
		return nil, err
	}

	r.log.InfoContext(ctx, "refund issued",
		logger.SubscriptionID(rec.SubscriptionID),
		logger.TransactionRef(rec.TransactionRef),
		slog.String("refund_ref", res.Ref),
		logger.Amount(money.String()))
	return &refund, nil
}

// lockRecord holds the in-process lock of a billing record until the returned
// func is called. Entries are dropped once nobody holds or waits for them.
func (r *Refunds) lockRecord(id uuid.UUID) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &recordLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

func refundLockKey(recordID uuid.UUID) string {
	return "telebill:refund:" + recordID.String()
}
