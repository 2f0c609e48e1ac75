package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a job should run next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at fixed intervals
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// cronSchedule wraps a parsed cron expression.
type cronSchedule struct {
	expr  string
	sched cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.sched.Next(from)
}

func (s cronSchedule) String() string {
	return "cron " + s.expr
}

// Every creates a schedule that runs at fixed intervals.
// Panics if d is not positive.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic("scheduler: interval must be positive")
	}
	return intervalSchedule{every: d}
}

// Hourly creates a schedule that runs every hour.
func Hourly() Schedule {
	return intervalSchedule{every: time.Hour}
}

// Cron parses a standard five-field cron expression or a descriptor such as
// "@every 6h" or "@daily".
func Cron(expr string) (Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return cronSchedule{expr: expr, sched: sched}, nil
}

// MustCron is like Cron but panics on an invalid expression.
func MustCron(expr string) Schedule {
	s, err := Cron(expr)
	if err != nil {
		panic(err)
	}
	return s
}
