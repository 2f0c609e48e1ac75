package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Result summarises one lifecycle pass.
type Result struct {
	Expired       int // Active subscriptions whose billing date elapsed
	TrialsExpired int
	Cancelled     int // subscriptions flagged to cancel at period end
	Skipped       int
	Failed        int // persistence faults, inconsistencies, panics
}

type outcome int

const (
	outcomeTransitioned outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Pass expires Active subscriptions past their billing date and trials past their
// end date, and cancels subscriptions that asked to stop at the end of their period.
type Pass struct {
	repo    subscription.Repository
	machine *subscription.Machine
	locker  subscription.Locker
	log     *slog.Logger
	now     func() time.Time
	cfg     Config
}

// New creates a lifecycle pass. Panics if repo is nil.
func New(repo subscription.Repository, opts ...Option) *Pass {
	if repo == nil {
		panic("lifecycle: repository is required")
	}

	p := &Pass{
		repo:    repo,
		machine: subscription.NewMachine(),
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.Component("lifecycle"))
	return p
}

// Run executes one lifecycle pass. Every scan always runs; the returned error
// joins listing failures, while per-candidate failures are only counted.
func (p *Pass) Run(ctx context.Context) (Result, error) {
	start := p.now()
	var res Result

	scans := []struct {
		name   string
		event  subscription.Event
		reason string
		list   func() ([]subscription.Subscription, error)
		done   *int
	}{
		{
			name: "pending cancellations", event: subscription.EventCancel, reason: subscription.ReasonPeriodEnded,
			list: func() ([]subscription.Subscription, error) {
				return p.repo.ListPendingCancellations(ctx, start, p.cfg.BatchSize)
			},
			done: &res.Cancelled,
		},
		{
			name: "overdue subscriptions", event: subscription.EventBillingElapsed, reason: subscription.ReasonBillingElapsed,
			list: func() ([]subscription.Subscription, error) {
				return p.repo.ListOverdue(ctx, start.Add(-p.cfg.ExpiryGrace), p.cfg.BatchSize)
			},
			done: &res.Expired,
		},
		{
			name: "ended trials", event: subscription.EventTrialEnded, reason: subscription.ReasonTrialEnded,
			list: func() ([]subscription.Subscription, error) {
				return p.repo.ListEndedTrials(ctx, start, p.cfg.BatchSize)
			},
			done: &res.TrialsExpired,
		},
	}

	var errs []error
	for _, scan := range scans {
		candidates, err := scan.list()
		if err != nil {
			err = errors.Join(ErrListCandidates, err)
			p.log.ErrorContext(ctx, "failed to list "+scan.name, logger.Error(err))
			errs = append(errs, err)
			continue
		}
		for i := range candidates {
			if ctx.Err() != nil {
				res.Skipped++
				continue
			}
			switch p.transition(ctx, &candidates[i], scan.event, scan.reason) {
			case outcomeTransitioned:
				*scan.done++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Failed++
			}
		}
	}

	p.log.InfoContext(ctx, "lifecycle pass completed",
		logger.Count("expired", res.Expired),
		logger.Count("trials_expired", res.TrialsExpired),
		logger.Count("cancelled", res.Cancelled),
		logger.Count("skipped", res.Skipped),
		logger.Count("failed", res.Failed),
		logger.Duration(p.now().Sub(start)),
	)
	return res, errors.Join(errs...)
}

func (p *Pass) transition(ctx context.Context, candidate *subscription.Subscription, event subscription.Event, reason string) (o outcome) {
	log := p.log.With(logger.SubscriptionID(candidate.ID), logger.UserID(candidate.UserID), logger.Event(string(event)))

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "lifecycle candidate panicked", slog.Any("panic", r))
			o = outcomeFailed
		}
	}()

	sub := candidate
	if p.locker != nil {
		unlock, err := p.locker.Lock(ctx, subscription.LockKey(candidate.ID))
		if errors.Is(err, subscription.ErrLockNotAcquired) {
			log.DebugContext(ctx, "subscription locked by another instance")
			return outcomeSkipped
		}
		if err != nil {
			log.ErrorContext(ctx, "failed to acquire subscription lock", logger.Error(err))
			return outcomeFailed
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				log.WarnContext(ctx, "failed to release subscription lock", logger.Error(err))
			}
		}()

		fresh, err := p.repo.Get(ctx, candidate.ID)
		if err != nil {
			log.ErrorContext(ctx, "failed to reload subscription", logger.Error(err))
			return outcomeFailed
		}
		sub = fresh
	}

	now := p.now()
	if !p.stillDue(sub, event, now) {
		log.DebugContext(ctx, "subscription no longer due for transition", logger.Status(string(sub.Status)))
		return outcomeSkipped
	}

	change, err := p.machine.Apply(ctx, sub, event, reason, now)
	if err != nil {
		log.ErrorContext(ctx, "subscription state inconsistency", logger.Status(string(sub.Status)), logger.Error(err))
		return outcomeFailed
	}
	if change == nil {
		return outcomeSkipped
	}

	if err := p.repo.SaveTransition(context.WithoutCancel(ctx), sub, *change); err != nil {
		log.ErrorContext(ctx, "failed to record transition", logger.Error(err))
		return outcomeFailed
	}

	log.InfoContext(ctx, "subscription transitioned",
		logger.Transition(string(change.From), string(change.To)),
		slog.String("reason", reason))
	return outcomeTransitioned
}

// stillDue rechecks the selection predicate on a possibly reloaded row.
// Rows that left the candidate status fall through to the machine so that a
// terminal row is reported as an inconsistency.
func (p *Pass) stillDue(sub *subscription.Subscription, event subscription.Event, now time.Time) bool {
	switch {
	case event == subscription.EventCancel && (sub.Status == subscription.StatusActive || sub.Status == subscription.StatusPastDue):
		return sub.PeriodEnded(now)
	case event == subscription.EventBillingElapsed && sub.Status == subscription.StatusActive:
		return sub.IsDue(now.Add(-p.cfg.ExpiryGrace))
	case event == subscription.EventTrialEnded && sub.Status == subscription.StatusTrialActive:
		return sub.TrialEnded(now)
	case sub.Status.IsTerminal():
		return true
	}
	return false
}
