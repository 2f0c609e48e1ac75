package subscription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrInvalidSubscription      = errors.New("invalid subscription")
	ErrInvalidSubscriptionState = errors.New("invalid subscription state")
	ErrSubscriptionDeleted      = errors.New("subscription is deleted")
	ErrConcurrentUpdate         = errors.New("subscription was modified concurrently")

	ErrBillingRecordNotFound = errors.New("billing record not found")
	ErrRefundNotAllowed      = errors.New("refund not allowed")
	ErrRefundExceedsCaptured = errors.New("refund exceeds captured amount")

	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")

	ErrLockNotAcquired = errors.New("subscription lock not acquired")
)

// InconsistencyError reports an event that the subscription's current state does not accept.
// The subscription is left untouched when this error is returned.
type InconsistencyError struct {
	SubscriptionID uuid.UUID
	From           SubscriptionStatus
	Event          Event
	Err            error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("subscription %s: illegal transition from %q on %q: %v", e.SubscriptionID, e.From, e.Event, e.Err)
}

func (e *InconsistencyError) Unwrap() error {
	return e.Err
}

// IsInconsistency reports whether err is an illegal state transition.
func IsInconsistency(err error) bool {
	var e *InconsistencyError
	return errors.As(err, &e)
}
