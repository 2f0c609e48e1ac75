package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subscription represents a user's recurring subscription to a plan.
// Rows are never hard-deleted; terminal states are kept for history.
type Subscription struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	PlanID                 string
	Status                 SubscriptionStatus
	Price                  Money
	BillingAnchor          time.Time // day-of-month source for month-based cycles
	NextBillingDate        time.Time
	IsTrial                bool
	TrialStartDate         *time.Time
	TrialEndDate           *time.Time // set iff IsTrial
	PaymentMethodRef       string
	CustomerRef            string
	GatewaySubscriptionRef string
	FailedPaymentAttempts  int // hard declines since the last successful charge
	TransientFailures      int // gateway faults since the last successful charge
	LastAttemptAt          *time.Time
	Deleted                bool
	Version                int64 // optimistic lock, bumped by every save
	CreatedAt              time.Time
	UpdatedAt              time.Time
	CancelAtPeriodEnd      bool // cancel instead of renewing once the current period ends
	CancelledAt            *time.Time
	PausedAt               *time.Time
}

// Validate checks the structural invariants of a subscription.
func (s *Subscription) Validate() error {
	var errs []error
	if s.ID == uuid.Nil {
		errs = append(errs, errors.New("id is required"))
	}
	if s.UserID == uuid.Nil {
		errs = append(errs, errors.New("user id is required"))
	}
	if s.PlanID == "" {
		errs = append(errs, errors.New("plan id is required"))
	}
	if !s.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", s.Status))
	}
	if s.IsTrial != (s.TrialEndDate != nil) {
		errs = append(errs, errors.New("trial end date must be set exactly when the subscription is a trial"))
	}
	if s.FailedPaymentAttempts < 0 || s.TransientFailures < 0 {
		errs = append(errs, errors.New("failure counters must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidSubscription}, errs...)...)
	}
	return nil
}

// IsDue reports whether the billing date has arrived.
func (s *Subscription) IsDue(now time.Time) bool {
	return !s.NextBillingDate.IsZero() && !s.NextBillingDate.After(now)
}

// TrialEnded reports whether the trial end date has passed.
func (s *Subscription) TrialEnded(now time.Time) bool {
	return s.TrialEndDate != nil && s.TrialEndDate.Before(now)
}

// RetryAllowed reports whether enough time has passed since the last billing attempt.
func (s *Subscription) RetryAllowed(now time.Time, retryAfter time.Duration) bool {
	return s.LastAttemptAt == nil || !s.LastAttemptAt.Add(retryAfter).After(now)
}

// Billable reports whether the billing pass should attempt a charge now.
// Trials are charged only while still running and only with a stored payment method;
// a trial past its end date belongs to the lifecycle pass.
func (s *Subscription) Billable(now time.Time, retryAfter time.Duration) bool {
	if s.Deleted || s.CancelAtPeriodEnd || !s.IsDue(now) || !s.RetryAllowed(now, retryAfter) {
		return false
	}
	switch s.Status {
	case StatusActive, StatusPastDue:
		return true
	case StatusTrialActive:
		return s.PaymentMethodRef != "" && !s.TrialEnded(now)
	}
	return false
}

// PeriodEnded reports whether a subscription set to cancel at period end has reached it.
func (s *Subscription) PeriodEnded(now time.Time) bool {
	return s.CancelAtPeriodEnd && s.IsDue(now)
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (s *Subscription) Clone() *Subscription {
	c := *s
	c.TrialStartDate = cloneTime(s.TrialStartDate)
	c.TrialEndDate = cloneTime(s.TrialEndDate)
	c.LastAttemptAt = cloneTime(s.LastAttemptAt)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.PausedAt = cloneTime(s.PausedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
