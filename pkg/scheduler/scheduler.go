package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/logger"
)

// JobFunc is one run of a periodic job. The context it receives is not
// cancelled when the scheduler stops, so work already started can finish.
type JobFunc func(ctx context.Context) error

// State is the scheduler's run state.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// JobStats is a snapshot of a job's run history.
type JobStats struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastCycleID  string        `json:"last_cycle_id,omitempty"`
	LastRun      time.Time     `json:"last_run"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run"`
}

// Scheduler runs registered jobs on their own schedules from a single loop.
// Jobs never overlap: a due job starts only after the previous one returned,
// in registration order.
type Scheduler struct {
	mu         sync.RWMutex
	jobs       []*job
	state      atomic.Int32
	backoff    time.Duration
	runOnStart bool
	logger     *slog.Logger
	now        func() time.Time
}

type job struct {
	name     string
	schedule Schedule
	fn       JobFunc
	stats    JobStats
}

// New creates a scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		backoff:    5 * time.Minute,
		runOnStart: true,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("scheduler"))
	return s
}

// Add registers a job. Jobs cannot be added while the scheduler is running.
func (s *Scheduler) Add(name string, schedule Schedule, fn JobFunc) error {
	if name == "" || schedule == nil || fn == nil {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == Running {
		return ErrAlreadyRunning
	}
	for _, j := range s.jobs {
		if j.name == name {
			return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
		}
	}

	s.jobs = append(s.jobs, &job{
		name:     name,
		schedule: schedule,
		fn:       fn,
		stats:    JobStats{Name: name, Schedule: schedule.String()},
	})

	s.logger.Info("registered periodic job",
		slog.String("job", name),
		slog.String("schedule", schedule.String()))
	return nil
}

// Run executes jobs until ctx is cancelled and returns nil on a clean stop.
// Cancellation is observed between jobs and while waiting; a job already
// running is allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()
	if count == 0 {
		return ErrNotConfigured
	}
	if !s.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return ErrAlreadyRunning
	}
	defer s.state.Store(int32(Stopped))

	start := s.now()
	s.mu.Lock()
	for _, j := range s.jobs {
		if s.runOnStart {
			j.stats.NextRun = start
		} else {
			j.stats.NextRun = j.schedule.Next(start)
		}
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scheduler started", logger.Count("jobs", count))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		for _, j := range s.snapshot() {
			if ctx.Err() != nil {
				break
			}
			if !s.due(j, s.now()) {
				continue
			}
			s.runJob(ctx, j)
		}

		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "scheduler shutting down")
			return nil
		}

		wait := max(time.Until(s.nextRun()), 0)
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler shutting down")
			return nil
		case <-timer.C:
		}
	}
}

// State reports whether Run is active.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of every job in registration order.
func (s *Scheduler) Stats() []JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStats, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.stats)
	}
	return out
}

func (s *Scheduler) snapshot() []*job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*job(nil), s.jobs...)
}

func (s *Scheduler) due(j *job, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !j.stats.NextRun.After(now)
}

func (s *Scheduler) nextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next time.Time
	for _, j := range s.jobs {
		if next.IsZero() || j.stats.NextRun.Before(next) {
			next = j.stats.NextRun
		}
	}
	return next
}

// runJob executes one job run. Errors and panics are logged and delay only
// this job by the back-off interval.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	cycleID := uuid.NewString()
	jctx := withJob(context.WithoutCancel(ctx), j.name, cycleID)
	log := s.logger.With(slog.String("job", j.name), logger.CycleID(cycleID))

	started := s.now()
	log.InfoContext(jctx, "job cycle started")

	err := s.call(jctx, j.fn)
	finished := s.now()
	elapsed := finished.Sub(started)

	s.mu.Lock()
	j.stats.Runs++
	j.stats.LastCycleID = cycleID
	j.stats.LastRun = started
	j.stats.LastDuration = elapsed
	if err != nil {
		j.stats.Failures++
		j.stats.LastError = err.Error()
		j.stats.NextRun = finished.Add(s.backoff)
	} else {
		j.stats.LastError = ""
		next := j.schedule.Next(started)
		if !next.After(finished) {
			next = j.schedule.Next(finished)
		}
		j.stats.NextRun = next
	}
	next := j.stats.NextRun
	s.mu.Unlock()

	if err != nil {
		log.ErrorContext(jctx, "job cycle failed, backing off",
			logger.Error(err),
			logger.Duration(elapsed),
			slog.Duration("backoff", s.backoff),
			slog.Time("next_run", next))
		return
	}
	log.InfoContext(jctx, "job cycle completed", logger.Duration(elapsed), slog.Time("next_run", next))
}

func (s *Scheduler) call(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn(ctx)
}
