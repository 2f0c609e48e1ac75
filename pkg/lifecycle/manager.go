package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Manager applies cancel, pause and resume requests coming from users,
// administrators or the payment gateway.
type Manager struct {
	repo    subscription.Repository
	gateway subscription.PaymentGateway
	machine *subscription.Machine
	log     *slog.Logger
	now     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithManagerClock overrides time.Now.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithGateway mirrors local changes to the gateway-side subscription.
func WithGateway(gw subscription.PaymentGateway) ManagerOption {
	return func(m *Manager) {
		m.gateway = gw
	}
}

// NewManager creates a Manager. Panics if repo is nil.
func NewManager(repo subscription.Repository, opts ...ManagerOption) *Manager {
	if repo == nil {
		panic("lifecycle: repository is required")
	}
	m := &Manager{
		repo:    repo,
		machine: subscription.NewMachine(),
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("lifecycle_manager"))
	return m
}

// Cancel stops a subscription. With atPeriodEnd an Active or PastDue
// subscription keeps its status until NextBillingDate and is then cancelled by
// the lifecycle pass instead of being renewed; other statuses cancel at once.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID, reason string, atPeriodEnd bool) (*subscription.Subscription, error) {
	sub, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if atPeriodEnd && (sub.Status == subscription.StatusActive || sub.Status == subscription.StatusPastDue) {
		if !m.machine.Can(ctx, sub, subscription.EventCancel) {
			return nil, &subscription.InconsistencyError{
				SubscriptionID: sub.ID, From: sub.Status, Event: subscription.EventCancel,
				Err: subscription.ErrInvalidSubscriptionState,
			}
		}
		if sub.CancelAtPeriodEnd {
			return sub, nil
		}
		if err := m.mirror(ctx, sub, func(ctx context.Context, ref string) error {
			return m.gateway.CancelSubscription(ctx, ref, true)
		}); err != nil {
			return nil, err
		}

		sub.CancelAtPeriodEnd = true
		sub.UpdatedAt = m.now()
		if err := m.repo.Save(ctx, sub); err != nil {
			return nil, err
		}
		m.log.InfoContext(ctx, "subscription set to cancel at period end",
			logger.SubscriptionID(sub.ID), slog.Time("period_end", sub.NextBillingDate), slog.String("reason", reason))
		return sub, nil
	}

	return m.apply(ctx, sub, subscription.EventCancel, reason, func(ctx context.Context, ref string) error {
		return m.gateway.CancelSubscription(ctx, ref, false)
	})
}

// Pause suspends billing for an Active subscription.
func (m *Manager) Pause(ctx context.Context, id uuid.UUID, reason string) (*subscription.Subscription, error) {
	sub, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, sub, subscription.EventPause, reason, func(ctx context.Context, ref string) error {
		return m.gateway.UpdateSubscription(ctx, subscription.GatewaySubscriptionUpdate{Ref: ref, Pause: true})
	})
}

// Resume reactivates a paused subscription. A billing date that passed while
// paused is moved to now so the next billing pass charges it.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID, reason string) (*subscription.Subscription, error) {
	sub, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, sub, subscription.EventResume, reason, func(ctx context.Context, ref string) error {
		return m.gateway.UpdateSubscription(ctx, subscription.GatewaySubscriptionUpdate{Ref: ref, Resume: true})
	})
}

// HandleGatewayEvent applies a verified webhook event to the matching subscription.
// Events already reflected locally are acknowledged without changes, so
// redelivered webhooks are harmless. Payment events are informational: charges
// are driven by the billing pass.
func (m *Manager) HandleGatewayEvent(ctx context.Context, ev subscription.GatewayEvent) error {
	var event subscription.Event
	switch ev.Type {
	case subscription.GatewayEventSubscriptionCancelled:
		event = subscription.EventCancel
	case subscription.GatewayEventSubscriptionPaused:
		event = subscription.EventPause
	case subscription.GatewayEventSubscriptionResumed:
		event = subscription.EventResume
	case subscription.GatewayEventSubscriptionUpdated,
		subscription.GatewayEventPaymentSucceeded,
		subscription.GatewayEventPaymentFailed:
		m.log.DebugContext(ctx, "gateway event acknowledged",
			logger.EventType(string(ev.Type)), slog.String("gateway_event_id", ev.ID))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev.ProviderEvent)
	}

	sub, err := m.repo.GetByGatewayRef(ctx, ev.GatewaySubscriptionRef)
	if err != nil {
		return err
	}

	if target := targetOf(event); sub.Status == target {
		m.log.DebugContext(ctx, "gateway event already applied",
			logger.SubscriptionID(sub.ID), logger.EventType(string(ev.Type)))
		return nil
	}

	_, err = m.apply(ctx, sub, event, subscription.ReasonGatewayEvent+": "+ev.ProviderEvent, nil)
	return err
}

// apply runs one transition through the machine, mirrors it to the gateway
// first when requested, then persists the change with its history entry.
func (m *Manager) apply(ctx context.Context, sub *subscription.Subscription, event subscription.Event, reason string, remote func(context.Context, string) error) (*subscription.Subscription, error) {
	log := m.log.With(logger.SubscriptionID(sub.ID), logger.Event(string(event)))

	if !m.machine.Can(ctx, sub, event) {
		_, err := m.machine.Apply(ctx, sub, event, reason, m.now())
		log.ErrorContext(ctx, "subscription state inconsistency", logger.Status(string(sub.Status)), logger.Error(err))
		return nil, err
	}

	if remote != nil {
		if err := m.mirror(ctx, sub, remote); err != nil {
			return nil, err
		}
	}

	now := m.now()
	from := sub.Status
	change, err := m.machine.Apply(ctx, sub, event, reason, now)
	if err != nil {
		log.ErrorContext(ctx, "subscription state inconsistency", logger.Status(string(from)), logger.Error(err))
		return nil, err
	}
	if change == nil {
		return sub, nil
	}
	if event == subscription.EventResume && sub.NextBillingDate.Before(now) {
		sub.NextBillingDate = now
	}

	if err := m.repo.SaveTransition(ctx, sub, *change); err != nil {
		log.ErrorContext(ctx, "failed to record transition", logger.Error(err))
		return nil, err
	}

	log.InfoContext(ctx, "subscription transitioned",
		logger.Transition(string(change.From), string(change.To)), slog.String("reason", reason))
	return sub, nil
}

func (m *Manager) mirror(ctx context.Context, sub *subscription.Subscription, remote func(context.Context, string) error) error {
	if m.gateway == nil || sub.GatewaySubscriptionRef == "" {
		return nil
	}
	if err := remote(ctx, sub.GatewaySubscriptionRef); err != nil {
		if errors.Is(err, subscription.ErrGatewayUnavailable) || errors.Is(err, subscription.ErrGatewayRejected) {
			return err
		}
		return errors.Join(subscription.ErrGatewayUnavailable, err)
	}
	return nil
}

func targetOf(event subscription.Event) subscription.SubscriptionStatus {
	switch event {
	case subscription.EventCancel:
		return subscription.StatusCancelled
	case subscription.EventPause:
		return subscription.StatusPaused
	case subscription.EventResume:
		return subscription.StatusActive
	}
	return ""
}
