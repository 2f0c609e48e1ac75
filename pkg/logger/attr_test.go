package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/telebill/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attr slog.Attr
		key  string
		want any
	}{
		{logger.UserID("u1"), "user_id", "u1"},
		{logger.SubscriptionID("s1"), "subscription_id", "s1"},
		{logger.CycleID("c1"), "cycle_id", "c1"},
		{logger.Pass("billing"), "pass", "billing"},
		{logger.Status("active"), "status", "active"},
		{logger.Amount("10.00 USD"), "amount", "10.00 USD"},
		{logger.TransactionRef("txn_1"), "transaction_ref", "txn_1"},
		{logger.Outcome("success"), "outcome", "success"},
		{logger.Count("expired", 3), "expired", int64(3)},
		{logger.RetryCount(2), "retry_count", int64(2)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.key, tt.attr.Key)
		assert.Equal(t, tt.want, tt.attr.Value.Any())
	}

	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.SubscriptionID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.TransactionRef("").Equal(slog.Attr{}))
}

func TestTransition(t *testing.T) {
	t.Parallel()
	attr := logger.Transition("active", "past_due")
	require.Equal(t, "transition", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "active", g[0].Value.String())
	assert.Equal(t, "past_due", g[1].Value.String())
}
