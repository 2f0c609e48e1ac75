package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/telebill/pkg/scheduler"
)

func TestEvery(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	s := scheduler.Every(6 * time.Hour)
	assert.Equal(t, from.Add(6*time.Hour), s.Next(from))
	assert.Equal(t, "every 6h0m0s", s.String())

	assert.Panics(t, func() { scheduler.Every(0) })
	assert.Panics(t, func() { scheduler.Every(-time.Second) })
}

func TestCron(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	s, err := scheduler.Cron("0 */6 * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), s.Next(from))
	assert.Equal(t, "cron 0 */6 * * *", s.String())

	daily, err := scheduler.Cron("@daily")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), daily.Next(from))

	_, err = scheduler.Cron("not a cron")
	assert.ErrorIs(t, err, scheduler.ErrInvalidSchedule)
	assert.Panics(t, func() { scheduler.MustCron("61 * * * *") })
}
