package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

func newActive(now time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		PlanID:           "pro_monthly",
		Status:           subscription.StatusActive,
		Price:            subscription.Money{Amount: 2900, Currency: "USD"},
		BillingAnchor:    now.AddDate(0, -1, -1),
		NextBillingDate:  now.Add(-24 * time.Hour),
		PaymentMethodRef: "pm_1",
		CustomerRef:      "ctm_1",
		CreatedAt:        now.AddDate(0, -1, -1),
		UpdatedAt:        now.AddDate(0, -1, -1),
	}
}

func TestSubscription_Validate(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	require.NoError(t, newActive(now).Validate())

	sub := newActive(now)
	sub.Status = "unknown"
	sub.IsTrial = true
	err := sub.Validate()
	require.ErrorIs(t, err, subscription.ErrInvalidSubscription)
	assert.Contains(t, err.Error(), "unknown status")
	assert.Contains(t, err.Error(), "trial end date")
}

func TestSubscription_Billable(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	retry := time.Hour
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(s *subscription.Subscription)
		want   bool
	}{
		{"active and due", func(*subscription.Subscription) {}, true},
		{"past due and due", func(s *subscription.Subscription) { s.Status = subscription.StatusPastDue }, true},
		{"not yet due", func(s *subscription.Subscription) { s.NextBillingDate = future }, false},
		{"deleted", func(s *subscription.Subscription) { s.Deleted = true }, false},
		{"cancelled", func(s *subscription.Subscription) { s.Status = subscription.StatusCancelled }, false},
		{"expired", func(s *subscription.Subscription) { s.Status = subscription.StatusExpired }, false},
		{"paused", func(s *subscription.Subscription) { s.Status = subscription.StatusPaused }, false},
		{"attempted recently", func(s *subscription.Subscription) {
			at := now.Add(-10 * time.Minute)
			s.LastAttemptAt = &at
		}, false},
		{"retry interval elapsed", func(s *subscription.Subscription) {
			at := now.Add(-time.Hour)
			s.LastAttemptAt = &at
		}, true},
		{"running trial with payment method", func(s *subscription.Subscription) {
			s.Status = subscription.StatusTrialActive
			s.IsTrial = true
			s.TrialEndDate = &future
		}, true},
		{"running trial without payment method", func(s *subscription.Subscription) {
			s.Status = subscription.StatusTrialActive
			s.IsTrial = true
			s.TrialEndDate = &future
			s.PaymentMethodRef = ""
		}, false},
		{"ended trial", func(s *subscription.Subscription) {
			s.Status = subscription.StatusTrialActive
			s.IsTrial = true
			s.TrialEndDate = &past
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := newActive(now)
			tt.mutate(sub)
			assert.Equal(t, tt.want, sub.Billable(now, retry))
		})
	}
}

func TestSubscription_Clone(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	sub := newActive(now)
	end := now.Add(time.Hour)
	sub.IsTrial = true
	sub.TrialEndDate = &end

	c := sub.Clone()
	*c.TrialEndDate = now
	c.Status = subscription.StatusExpired

	assert.Equal(t, end, *sub.TrialEndDate)
	assert.Equal(t, subscription.StatusActive, sub.Status)
}

func TestBillingRecord_Refundable(t *testing.T) {
	t.Parallel()

	rec := subscription.BillingRecord{
		Outcome: subscription.OutcomeSuccess,
		Amount:  subscription.Money{Amount: 5000, Currency: "USD"},
		Refunds: []subscription.Refund{{Amount: subscription.Money{Amount: 1200, Currency: "USD"}}},
	}
	assert.Equal(t, int64(1200), rec.Refunded())
	assert.Equal(t, subscription.Money{Amount: 3800, Currency: "USD"}, rec.Refundable())

	rec.Outcome = subscription.OutcomeFailure
	assert.Equal(t, int64(0), rec.Refundable().Amount)
}
