package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BillableQuery selects billing candidates. See Subscription.Billable.
type BillableQuery struct {
	Now        time.Time
	RetryAfter time.Duration
	Limit      int
}

// Repository is the durable store for subscriptions and their audit trails.
// List queries never return soft-deleted rows. Save* methods are atomic: the
// subscription update and its records are committed together or not at all,
// and fail with ErrConcurrentUpdate if sub.Version no longer matches the stored row.
// On success they bump sub.Version.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetByGatewayRef(ctx context.Context, ref string) (*Subscription, error)

	ListBillable(ctx context.Context, q BillableQuery) ([]Subscription, error)
	// ListOverdue returns Active subscriptions with NextBillingDate <= before.
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]Subscription, error)
	// ListEndedTrials returns TrialActive subscriptions with TrialEndDate < now.
	ListEndedTrials(ctx context.Context, now time.Time, limit int) ([]Subscription, error)
	// ListPendingCancellations returns Active or PastDue subscriptions flagged
	// CancelAtPeriodEnd whose NextBillingDate <= now.
	ListPendingCancellations(ctx context.Context, now time.Time, limit int) ([]Subscription, error)

	// Save updates subscription fields without a status change.
	Save(ctx context.Context, sub *Subscription) error

	SaveBilling(ctx context.Context, sub *Subscription, record BillingRecord, change *StatusChange) error
	SaveTransition(ctx context.Context, sub *Subscription, change StatusChange) error

	BillingRecord(ctx context.Context, id uuid.UUID) (*BillingRecord, error)
	BillingRecords(ctx context.Context, subscriptionID uuid.UUID) ([]BillingRecord, error)
	AttachRefund(ctx context.Context, recordID uuid.UUID, refund Refund) error
	History(ctx context.Context, subscriptionID uuid.UUID) ([]StatusChange, error)
}

// Locker serialises work on one subscription across scheduler instances.
// Lock returns ErrLockNotAcquired when another holder owns the key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// LockKey is the lock name for a subscription.
func LockKey(id uuid.UUID) string {
	return "telebill:subscription:" + id.String()
}
