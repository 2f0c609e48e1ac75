package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Result summarises one billing pass.
type Result struct {
	Candidates int
	Succeeded  int
	Declined   int
	Transient  int
	PastDue    int // subscriptions moved to PastDue in this pass
	Skipped    int
	Failed     int // persistence faults, inconsistencies, panics
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeDeclined
	outcomeDeclinedPastDue
	outcomeTransient
	outcomeSkipped
	outcomeFailed
)

func (r *Result) add(o outcome) {
	switch o {
	case outcomeSucceeded:
		r.Succeeded++
	case outcomeDeclined:
		r.Declined++
	case outcomeDeclinedPastDue:
		r.Declined++
		r.PastDue++
	case outcomeTransient:
		r.Transient++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

// Pass charges subscriptions whose billing date has arrived and records the outcome.
type Pass struct {
	repo     subscription.Repository
	gateway  subscription.PaymentGateway
	notifier subscription.Notifier
	catalog  *subscription.Catalog
	machine  *subscription.Machine
	locker   subscription.Locker
	log      *slog.Logger
	now      func() time.Time
	cfg      Config

	notifications sync.WaitGroup
}

// New creates a billing pass. Panics if a required dependency is nil.
func New(repo subscription.Repository, gateway subscription.PaymentGateway, notifier subscription.Notifier, catalog *subscription.Catalog, opts ...Option) *Pass {
	if repo == nil {
		panic("billing: repository is required")
	}
	if gateway == nil {
		panic("billing: payment gateway is required")
	}
	if notifier == nil {
		panic("billing: notifier is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}

	p := &Pass{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		catalog:  catalog,
		machine:  subscription.NewMachine(),
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.Component("billing"))
	return p
}

// Run executes one billing pass. It returns an error only when candidates cannot be listed;
// per-candidate failures are logged and counted in Result.
// Cancelling ctx stops new charges from starting; charges already sent to the
// gateway are completed and recorded.
func (p *Pass) Run(ctx context.Context) (Result, error) {
	start := p.now()
	candidates, err := p.repo.ListBillable(ctx, subscription.BillableQuery{
		Now:        start,
		RetryAfter: p.cfg.RetryInterval,
		Limit:      p.cfg.BatchSize,
	})
	if err != nil {
		return Result{}, errors.Join(ErrListCandidates, err)
	}

	res := Result{Candidates: len(candidates)}
	p.log.InfoContext(ctx, "billing pass started", logger.Count("candidates", len(candidates)))

	var mu sync.Mutex
	record := func(o outcome) {
		mu.Lock()
		res.add(o)
		mu.Unlock()
	}

	g := &errgroup.Group{}
	g.SetLimit(p.cfg.Concurrency)
	for i := range candidates {
		if ctx.Err() != nil {
			record(outcomeSkipped)
			continue
		}
		sub := &candidates[i]
		g.Go(func() error {
			record(p.process(ctx, sub, start))
			return nil
		})
	}
	_ = g.Wait()

	p.log.InfoContext(ctx, "billing pass completed",
		logger.Count("candidates", res.Candidates),
		logger.Count("succeeded", res.Succeeded),
		logger.Count("declined", res.Declined),
		logger.Count("transient", res.Transient),
		logger.Count("past_due", res.PastDue),
		logger.Count("skipped", res.Skipped),
		logger.Count("failed", res.Failed),
		logger.Duration(p.now().Sub(start)),
	)
	return res, nil
}

// Wait blocks until in-flight notifications are delivered or abandoned.
func (p *Pass) Wait() {
	p.notifications.Wait()
}

// process charges one candidate. Attempts are stamped with the pass start so
// retry spacing lines up with the scheduler cadence however long the capture takes.
func (p *Pass) process(ctx context.Context, candidate *subscription.Subscription, start time.Time) (o outcome) {
	log := p.log.With(logger.SubscriptionID(candidate.ID), logger.UserID(candidate.UserID))

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "billing candidate panicked", slog.Any("panic", r))
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

		// another instance may have billed it between listing and locking
		fresh, err := p.repo.Get(ctx, candidate.ID)
		if err != nil {
			log.ErrorContext(ctx, "failed to reload subscription", logger.Error(err))
			return outcomeFailed
		}
		sub = fresh
	}

	if !p.machine.Can(ctx, sub, subscription.EventPaymentSucceeded) {
		log.ErrorContext(ctx, "subscription state inconsistency: billing candidate cannot be charged",
			logger.Status(string(sub.Status)), slog.Bool("deleted", sub.Deleted))
		return outcomeFailed
	}
	if !sub.Billable(start, p.cfg.RetryInterval) {
		log.DebugContext(ctx, "subscription no longer billable", logger.Status(string(sub.Status)))
		return outcomeSkipped
	}

	plan, err := p.catalog.Plan(sub.PlanID)
	if err != nil {
		log.ErrorContext(ctx, "subscription plan not found", logger.Error(err))
		return outcomeFailed
	}
	if !sub.Price.IsPositive() {
		log.ErrorContext(ctx, "subscription has no chargeable price", logger.Amount(sub.Price.String()))
		return outcomeFailed
	}

	// the capture and its record must complete even if the scheduler is stopping
	work := context.WithoutCancel(ctx)
	result, err := p.gateway.Capture(work, subscription.CaptureRequest{
		SubscriptionID:         sub.ID,
		PeriodStart:            sub.NextBillingDate,
		GatewaySubscriptionRef: sub.GatewaySubscriptionRef,
		CustomerRef:            sub.CustomerRef,
		PaymentMethodRef:       sub.PaymentMethodRef,
		PriceRef:               plan.GatewayPriceRef,
		Amount:                 sub.Price,
		Description:            plan.Name,
	})
	sub.LastAttemptAt = &start
	now := p.now()

	switch {
	case err != nil:
		return p.onTransient(work, log, sub, now, err)
	case result == nil:
		return p.onTransient(work, log, sub, now, errors.New("gateway returned no capture result"))
	case result.Status == subscription.CaptureSucceeded:
		return p.onSuccess(work, log, sub, plan, result, now)
	default:
		return p.onDecline(work, log, sub, plan, result, now)
	}
}

func (p *Pass) onSuccess(ctx context.Context, log *slog.Logger, sub *subscription.Subscription, plan subscription.Plan, res *subscription.CaptureResult, now time.Time) outcome {
	reason := subscription.ReasonPaymentSucceeded
	if sub.Status == subscription.StatusTrialActive {
		reason = subscription.ReasonTrialConverted
	}
	change, err := p.machine.Apply(ctx, sub, subscription.EventPaymentSucceeded, reason, now)
	if err != nil {
		// money was taken; keep the record even though the status cannot move
		log.ErrorContext(ctx, "subscription state inconsistency after successful charge", logger.Error(err))
	}

	sub.NextBillingDate = plan.Interval.Next(sub.BillingAnchor, sub.NextBillingDate)
	sub.FailedPaymentAttempts = 0
	sub.TransientFailures = 0
	sub.UpdatedAt = now

	rec := subscription.BillingRecord{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Amount:         sub.Price,
		Outcome:        subscription.OutcomeSuccess,
		TransactionRef: res.TransactionRef,
		LineItemRef:    res.LineItemRef,
		CreatedAt:      now,
	}
	if err := p.repo.SaveBilling(ctx, sub, rec, change); err != nil {
		log.ErrorContext(ctx, "failed to record successful charge",
			logger.TransactionRef(res.TransactionRef), logger.Amount(sub.Price.String()), logger.Error(err))
		return outcomeFailed
	}

	attrs := []any{
		logger.Outcome(string(subscription.OutcomeSuccess)),
		logger.Amount(sub.Price.String()),
		logger.TransactionRef(res.TransactionRef),
		slog.Time("next_billing_date", sub.NextBillingDate),
	}
	if change != nil {
		attrs = append(attrs, logger.Transition(string(change.From), string(change.To)))
	}
	log.InfoContext(ctx, "charge succeeded", attrs...)

	receipt := subscription.Receipt{
		SubscriptionID:  sub.ID,
		UserID:          sub.UserID,
		PlanName:        plan.Name,
		Amount:          sub.Price,
		TransactionRef:  res.TransactionRef,
		PaidAt:          now,
		NextBillingDate: sub.NextBillingDate,
	}
	p.notify(ctx, log, "payment receipt", func(ctx context.Context) error {
		return p.notifier.SendPaymentReceipt(ctx, receipt)
	})
	return outcomeSucceeded
}

func (p *Pass) onDecline(ctx context.Context, log *slog.Logger, sub *subscription.Subscription, plan subscription.Plan, res *subscription.CaptureResult, now time.Time) outcome {
	sub.FailedPaymentAttempts++
	sub.UpdatedAt = now

	var change *subscription.StatusChange
	if sub.FailedPaymentAttempts >= p.cfg.FailureThreshold {
		var err error
		change, err = p.machine.Apply(ctx, sub, subscription.EventPaymentFailed, subscription.ReasonFailureThreshold, now)
		if err != nil {
			log.ErrorContext(ctx, "subscription state inconsistency after declined charge", logger.Error(err))
		}
	}

	detail := res.Detail
	if res.DeclineCode != "" {
		detail = fmt.Sprintf("%s: %s", res.DeclineCode, res.Detail)
	}
	rec := subscription.BillingRecord{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Amount:         sub.Price,
		Outcome:        subscription.OutcomeFailure,
		FailureKind:    subscription.FailureDeclined,
		Detail:         detail,
		TransactionRef: res.TransactionRef,
		Attempt:        sub.FailedPaymentAttempts,
		CreatedAt:      now,
	}
	if err := p.repo.SaveBilling(ctx, sub, rec, change); err != nil {
		log.ErrorContext(ctx, "failed to record declined charge", logger.Error(err))
		return outcomeFailed
	}

	attrs := []any{
		logger.Outcome(string(subscription.OutcomeFailure)),
		logger.RetryCount(sub.FailedPaymentAttempts),
		slog.String("detail", detail),
	}
	if change != nil {
		attrs = append(attrs, logger.Transition(string(change.From), string(change.To)))
	}
	log.WarnContext(ctx, "charge declined", attrs...)

	alert := subscription.FailureAlert{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanName:       plan.Name,
		Amount:         sub.Price,
		Attempt:        sub.FailedPaymentAttempts,
		Threshold:      p.cfg.FailureThreshold,
		Detail:         detail,
		PastDue:        sub.Status == subscription.StatusPastDue,
	}
	p.notify(ctx, log, "payment failure alert", func(ctx context.Context) error {
		return p.notifier.SendPaymentFailureAlert(ctx, alert)
	})

	if change != nil {
		return outcomeDeclinedPastDue
	}
	return outcomeDeclined
}

// onTransient records a gateway fault. It does not count toward the decline
// threshold and the user is not notified.
func (p *Pass) onTransient(ctx context.Context, log *slog.Logger, sub *subscription.Subscription, now time.Time, cause error) outcome {
	sub.TransientFailures++
	sub.UpdatedAt = now

	rec := subscription.BillingRecord{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Amount:         sub.Price,
		Outcome:        subscription.OutcomeFailure,
		FailureKind:    subscription.FailureTransient,
		Detail:         cause.Error(),
		CreatedAt:      now,
	}
	if err := p.repo.SaveBilling(ctx, sub, rec, nil); err != nil {
		log.ErrorContext(ctx, "failed to record gateway fault", logger.Errors(cause, err))
		return outcomeFailed
	}

	log.WarnContext(ctx, "payment gateway unavailable",
		logger.Error(cause), logger.Count("transient_failures", sub.TransientFailures))
	return outcomeTransient
}

func (p *Pass) notify(ctx context.Context, log *slog.Logger, kind string, send func(context.Context) error) {
	p.notifications.Add(1)
	go func() {
		defer p.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(ctx, "notification panicked", slog.String("kind", kind), slog.Any("panic", r))
			}
		}()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.NotifyTimeout)
		defer cancel()
		if err := send(nctx); err != nil {
			log.WarnContext(ctx, "failed to send notification", slog.String("kind", kind), logger.Error(err))
		}
	}()
}
