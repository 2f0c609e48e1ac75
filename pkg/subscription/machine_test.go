package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/telebill/pkg/statemachine"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

func TestMachine_Apply(t *testing.T) {
	t.Parallel()
	m := subscription.NewMachine()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		from   subscription.SubscriptionStatus
		event  subscription.Event
		to     subscription.SubscriptionStatus
		change bool
	}{
		{subscription.StatusPending, subscription.EventActivate, subscription.StatusActive, true},
		{subscription.StatusPending, subscription.EventStartTrial, subscription.StatusTrialActive, true},
		{subscription.StatusTrialActive, subscription.EventPaymentSucceeded, subscription.StatusActive, true},
		{subscription.StatusTrialActive, subscription.EventPaymentFailed, subscription.StatusTrialActive, false},
		{subscription.StatusTrialActive, subscription.EventTrialEnded, subscription.StatusExpired, true},
		{subscription.StatusActive, subscription.EventPaymentSucceeded, subscription.StatusActive, false},
		{subscription.StatusActive, subscription.EventPaymentFailed, subscription.StatusPastDue, true},
		{subscription.StatusActive, subscription.EventBillingElapsed, subscription.StatusExpired, true},
		{subscription.StatusActive, subscription.EventPause, subscription.StatusPaused, true},
		{subscription.StatusActive, subscription.EventCancel, subscription.StatusCancelled, true},
		{subscription.StatusPastDue, subscription.EventPaymentSucceeded, subscription.StatusActive, true},
		{subscription.StatusPastDue, subscription.EventPaymentFailed, subscription.StatusPastDue, false},
		{subscription.StatusPastDue, subscription.EventCancel, subscription.StatusCancelled, true},
		{subscription.StatusPaused, subscription.EventResume, subscription.StatusActive, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			t.Parallel()
			sub := newActive(now)
			sub.Status = tt.from

			change, err := m.Apply(ctx, sub, tt.event, "test", now)
			require.NoError(t, err)
			assert.Equal(t, tt.to, sub.Status)
			if !tt.change {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.from, change.From)
			assert.Equal(t, tt.to, change.To)
			assert.Equal(t, tt.event, change.Event)
			assert.Equal(t, sub.ID, change.SubscriptionID)
			assert.Equal(t, now, change.CreatedAt)
		})
	}
}

func TestMachine_TerminalStatesAreFinal(t *testing.T) {
	t.Parallel()
	m := subscription.NewMachine()
	now := time.Now().UTC()

	events := []subscription.Event{
		subscription.EventActivate, subscription.EventStartTrial, subscription.EventPaymentSucceeded,
		subscription.EventPaymentFailed, subscription.EventBillingElapsed, subscription.EventTrialEnded,
		subscription.EventPause, subscription.EventResume, subscription.EventCancel,
	}

	for _, status := range []subscription.SubscriptionStatus{subscription.StatusCancelled, subscription.StatusExpired} {
		for _, ev := range events {
			sub := newActive(now)
			sub.Status = status
			before := *sub

			change, err := m.Apply(context.Background(), sub, ev, "test", now)
			require.Error(t, err)
			assert.Nil(t, change)
			assert.True(t, subscription.IsInconsistency(err))
			assert.True(t, errors.Is(err, statemachine.ErrTerminalState))
			assert.Equal(t, before, *sub)
		}
	}
}

func TestMachine_RejectsIllegalAndDeleted(t *testing.T) {
	t.Parallel()
	m := subscription.NewMachine()
	now := time.Now().UTC()
	ctx := context.Background()

	sub := newActive(now)
	sub.Status = subscription.StatusPaused
	_, err := m.Apply(ctx, sub, subscription.EventPaymentSucceeded, "test", now)
	assert.True(t, subscription.IsInconsistency(err))
	assert.ErrorIs(t, err, statemachine.ErrNoTransition)
	assert.Equal(t, subscription.StatusPaused, sub.Status)

	sub = newActive(now)
	sub.Deleted = true
	_, err = m.Apply(ctx, sub, subscription.EventPaymentSucceeded, "test", now)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionDeleted)
	assert.False(t, m.Can(ctx, sub, subscription.EventPaymentSucceeded))

	sub = newActive(now)
	sub.Status = "bogus"
	_, err = m.Apply(ctx, sub, subscription.EventPaymentSucceeded, "test", now)
	assert.True(t, subscription.IsInconsistency(err))
}

func TestMachine_SetsTimestamps(t *testing.T) {
	t.Parallel()
	m := subscription.NewMachine()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	sub := newActive(now)
	_, err := m.Apply(ctx, sub, subscription.EventPause, "user request", now)
	require.NoError(t, err)
	require.NotNil(t, sub.PausedAt)

	_, err = m.Apply(ctx, sub, subscription.EventResume, "user request", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, sub.PausedAt)

	_, err = m.Apply(ctx, sub, subscription.EventCancel, "user request", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, sub.CancelledAt)
	assert.Equal(t, now.Add(2*time.Hour), *sub.CancelledAt)
}
