package billing

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Option configures the billing pass.
type Option func(*Pass)

// WithConfig applies every non-zero field of cfg.
func WithConfig(cfg Config) Option {
	return func(p *Pass) {
		WithFailureThreshold(cfg.FailureThreshold)(p)
		WithRetryInterval(cfg.RetryInterval)(p)
		WithBatchSize(cfg.BatchSize)(p)
		WithConcurrency(cfg.Concurrency)(p)
		WithNotifyTimeout(cfg.NotifyTimeout)(p)
	}
}

// WithFailureThreshold sets how many consecutive declines move a subscription to PastDue.
func WithFailureThreshold(n int) Option {
	return func(p *Pass) {
		if n > 0 {
			p.cfg.FailureThreshold = n
		}
	}
}

// WithRetryInterval sets the minimum spacing between attempts on one subscription.
func WithRetryInterval(d time.Duration) Option {
	return func(p *Pass) {
		if d >= 0 {
			p.cfg.RetryInterval = d
		}
	}
}

// WithBatchSize caps the number of candidates read per pass.
func WithBatchSize(n int) Option {
	return func(p *Pass) {
		if n > 0 {
			p.cfg.BatchSize = n
		}
	}
}

// WithConcurrency sets how many candidates are charged in parallel.
func WithConcurrency(n int) Option {
	return func(p *Pass) {
		if n > 0 {
			p.cfg.Concurrency = n
		}
	}
}

// WithNotifyTimeout bounds each notification delivery.
func WithNotifyTimeout(d time.Duration) Option {
	return func(p *Pass) {
		if d > 0 {
			p.cfg.NotifyTimeout = d
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

// WithLocker enables a per-subscription lock around each charge.
func WithLocker(l subscription.Locker) Option {
	return func(p *Pass) {
		if l != nil {
			p.locker = l
		}
	}
}
