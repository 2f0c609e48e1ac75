package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of a billing attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FailureKind separates card declines from gateway faults.
type FailureKind string

const (
	FailureDeclined  FailureKind = "declined"
	FailureTransient FailureKind = "transient"
)

// BillingRecord is written once per billing attempt.
// It is never mutated afterwards except to attach refunds.
type BillingRecord struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	Amount         Money
	Outcome        Outcome
	FailureKind    FailureKind // empty on success
	Detail         string      // gateway error detail or decline reason
	TransactionRef string
	LineItemRef    string
	Attempt        int // failed-attempt ordinal for declines, 0 otherwise
	CreatedAt      time.Time
	Refunds        []Refund
}

// Refunded returns the total already refunded.
func (r *BillingRecord) Refunded() int64 {
	var total int64
	for _, rf := range r.Refunds {
		total += rf.Amount.Amount
	}
	return total
}

// Refundable returns the amount still available for refund.
func (r *BillingRecord) Refundable() Money {
	if r.Outcome != OutcomeSuccess {
		return Money{Currency: r.Amount.Currency}
	}
	return Money{Amount: r.Amount.Amount - r.Refunded(), Currency: r.Amount.Currency}
}

// Refund is a full or partial reversal of a successful charge.
type Refund struct {
	ID        uuid.UUID
	Ref       string // gateway adjustment id
	Amount    Money
	Reason    string
	CreatedAt time.Time
}

// StatusChange is one append-only entry of a subscription's status history.
type StatusChange struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	From           SubscriptionStatus
	To             SubscriptionStatus
	Event          Event
	Reason         string
	CreatedAt      time.Time
}
