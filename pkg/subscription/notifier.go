package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers user-facing billing messages. Calls are best effort.
type Notifier interface {
	SendPaymentReceipt(ctx context.Context, r Receipt) error
	SendPaymentFailureAlert(ctx context.Context, a FailureAlert) error
}

type Receipt struct {
	SubscriptionID  uuid.UUID
	UserID          uuid.UUID
	PlanName        string
	Amount          Money
	TransactionRef  string
	PaidAt          time.Time
	NextBillingDate time.Time
}

type FailureAlert struct {
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	PlanName       string
	Amount         Money
	Attempt        int
	Threshold      int
	Detail         string
	PastDue        bool
}
