package scheduler

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a scheduler.
type Option func(*Scheduler)

// WithBackoff sets how long a job waits after a failed run before it is retried.
func WithBackoff(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithLogger sets the logger for the scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithoutImmediateRun makes every job wait for its first scheduled time
// instead of running as soon as Run starts.
func WithoutImmediateRun() Option {
	return func(s *Scheduler) {
		s.runOnStart = false
	}
}
