package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// DefaultTTL bounds how long a crashed holder can block a key.
const DefaultTTL = 2 * time.Minute

// Redis is a distributed subscription.Locker backed by redsync.
type Redis struct {
	rs  *redsync.Redsync
	ttl time.Duration
}

var _ subscription.Locker = (*Redis)(nil)

// NewRedis creates a locker on top of client. A non-positive ttl falls back to DefaultTTL.
func NewRedis(client goredislib.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		rs:  redsync.New(goredis.NewPool(client)),
		ttl: ttl,
	}
}

// Lock acquires key with a single attempt.
func (l *Redis) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, fmt.Errorf("%w: %s", subscription.ErrLockNotAcquired, key)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// Noop grants every lock immediately.
type Noop struct{}

var _ subscription.Locker = Noop{}

func (Noop) Lock(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
