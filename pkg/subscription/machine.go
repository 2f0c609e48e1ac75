package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/statemachine"
)

// Event triggers a subscription status transition.
type Event string

const (
	EventActivate         Event = "activate"
	EventStartTrial       Event = "start_trial"
	EventPaymentSucceeded Event = "payment_succeeded"
	EventPaymentFailed    Event = "payment_failed"
	EventBillingElapsed   Event = "billing_elapsed"
	EventTrialEnded       Event = "trial_ended"
	EventPause            Event = "pause"
	EventResume           Event = "resume"
	EventCancel           Event = "cancel"
)

// Name implements statemachine.Event.
func (e Event) Name() string { return string(e) }

// Status history reasons.
const (
	ReasonPaymentSucceeded = "payment succeeded"
	ReasonTrialConverted   = "trial converted"
	ReasonFailureThreshold = "failed payment threshold reached"
	ReasonBillingElapsed   = "billing date elapsed"
	ReasonTrialEnded       = "trial ended"
	ReasonPeriodEnded      = "cancelled at period end"
	ReasonGatewayEvent     = "gateway event"
)

var transitions = []statemachine.Rule{
	{From: StatusPending, To: StatusActive, Event: EventActivate},
	{From: StatusPending, To: StatusActive, Event: EventPaymentSucceeded},
	{From: StatusPending, To: StatusTrialActive, Event: EventStartTrial},
	{From: StatusPending, To: StatusCancelled, Event: EventCancel},

	{From: StatusTrialActive, To: StatusActive, Event: EventPaymentSucceeded},
	{From: StatusTrialActive, To: StatusTrialActive, Event: EventPaymentFailed},
	{From: StatusTrialActive, To: StatusExpired, Event: EventTrialEnded},
	{From: StatusTrialActive, To: StatusCancelled, Event: EventCancel},

	{From: StatusActive, To: StatusActive, Event: EventPaymentSucceeded},
	{From: StatusActive, To: StatusPastDue, Event: EventPaymentFailed},
	{From: StatusActive, To: StatusExpired, Event: EventBillingElapsed},
	{From: StatusActive, To: StatusPaused, Event: EventPause},
	{From: StatusActive, To: StatusCancelled, Event: EventCancel},

	{From: StatusPastDue, To: StatusActive, Event: EventPaymentSucceeded},
	{From: StatusPastDue, To: StatusPastDue, Event: EventPaymentFailed},
	{From: StatusPastDue, To: StatusCancelled, Event: EventCancel},

	{From: StatusPaused, To: StatusActive, Event: EventResume},
	{From: StatusPaused, To: StatusCancelled, Event: EventCancel},
}

// Machine is the single place where subscription status changes are validated.
type Machine struct {
	table *statemachine.Table
}

// NewMachine builds the subscription transition table.
func NewMachine() *Machine {
	return &Machine{
		table: statemachine.MustNew(
			statemachine.WithTerminal(StatusCancelled, StatusExpired),
			statemachine.WithRules(transitions...),
		),
	}
}

// Can reports whether the event is legal from the subscription's current status.
func (m *Machine) Can(ctx context.Context, sub *Subscription, event Event) bool {
	return !sub.Deleted && m.table.Can(ctx, sub.Status, event, sub)
}

// Apply moves sub to the status selected by event and returns the history entry to persist.
// A self-transition returns a nil change. An illegal event returns *InconsistencyError
// and leaves sub untouched.
func (m *Machine) Apply(ctx context.Context, sub *Subscription, event Event, reason string, now time.Time) (*StatusChange, error) {
	if sub.Deleted {
		return nil, &InconsistencyError{SubscriptionID: sub.ID, From: sub.Status, Event: event, Err: ErrSubscriptionDeleted}
	}

	next, err := m.table.Fire(ctx, sub.Status, event, sub)
	if err != nil {
		return nil, &InconsistencyError{SubscriptionID: sub.ID, From: sub.Status, Event: event, Err: err}
	}

	to := next.(SubscriptionStatus)
	if to == sub.Status {
		return nil, nil
	}

	change := &StatusChange{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		From:           sub.Status,
		To:             to,
		Event:          event,
		Reason:         reason,
		CreatedAt:      now,
	}

	sub.Status = to
	sub.UpdatedAt = now
	switch to {
	case StatusCancelled:
		sub.CancelledAt = &now
	case StatusPaused:
		sub.PausedAt = &now
	case StatusActive:
		sub.PausedAt = nil
	}

	return change, nil
}
