package lifecycle

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Option configures the lifecycle pass.
type Option func(*Pass)

// WithConfig applies every valid field of cfg.
func WithConfig(cfg Config) Option {
	return func(p *Pass) {
		WithExpiryGrace(cfg.ExpiryGrace)(p)
		WithBatchSize(cfg.BatchSize)(p)
	}
}

// WithExpiryGrace sets how long past its billing date an Active subscription survives.
func WithExpiryGrace(d time.Duration) Option {
	return func(p *Pass) {
		if d >= 0 {
			p.cfg.ExpiryGrace = d
		}
	}
}

// WithBatchSize caps the number of candidates read per scan.
func WithBatchSize(n int) Option {
	return func(p *Pass) {
		if n > 0 {
			p.cfg.BatchSize = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Pass) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pass) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocker serialises each transition with other scheduler instances.
func WithLocker(l subscription.Locker) Option {
	return func(p *Pass) {
		if l != nil {
			p.locker = l
		}
	}
}
