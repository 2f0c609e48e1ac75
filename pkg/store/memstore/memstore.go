package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// Store implements subscription.Repository in memory for tests and local development.
// Every write is applied under one lock, which gives the same all-or-nothing
// behaviour as the Postgres store's transactions.
type Store struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]*subscription.Subscription
	records map[uuid.UUID]*subscription.BillingRecord
	// per-subscription record ids in insertion order
	bySub    map[uuid.UUID][]uuid.UUID
	history  map[uuid.UUID][]subscription.StatusChange
	contacts map[uuid.UUID]subscription.Contact
}

var _ subscription.Repository = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		subs:     make(map[uuid.UUID]*subscription.Subscription),
		records:  make(map[uuid.UUID]*subscription.BillingRecord),
		bySub:    make(map[uuid.UUID][]uuid.UUID),
		history:  make(map[uuid.UUID][]subscription.StatusChange),
		contacts: make(map[uuid.UUID]subscription.Contact),
	}
}

func (s *Store) Create(_ context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscription", subscription.ErrInvalidSubscription)
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; exists {
		return fmt.Errorf("%w: subscription %s already exists", subscription.ErrInvalidSubscription, sub.ID)
	}
	sub.Version = 1
	s.subs[sub.ID] = sub.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (s *Store) GetByGatewayRef(_ context.Context, ref string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if ref != "" && sub.GatewaySubscriptionRef == ref {
			return sub.Clone(), nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

func (s *Store) ListBillable(_ context.Context, q subscription.BillableQuery) ([]subscription.Subscription, error) {
	return s.list(q.Limit, func(sub *subscription.Subscription) bool {
		return sub.Billable(q.Now, q.RetryAfter)
	}), nil
}

func (s *Store) ListOverdue(_ context.Context, before time.Time, limit int) ([]subscription.Subscription, error) {
	return s.list(limit, func(sub *subscription.Subscription) bool {
		return sub.Status == subscription.StatusActive && sub.IsDue(before)
	}), nil
}

func (s *Store) ListEndedTrials(_ context.Context, now time.Time, limit int) ([]subscription.Subscription, error) {
	return s.list(limit, func(sub *subscription.Subscription) bool {
		return sub.Status == subscription.StatusTrialActive && sub.TrialEnded(now)
	}), nil
}

func (s *Store) ListPendingCancellations(_ context.Context, now time.Time, limit int) ([]subscription.Subscription, error) {
	return s.list(limit, func(sub *subscription.Subscription) bool {
		return (sub.Status == subscription.StatusActive || sub.Status == subscription.StatusPastDue) && sub.PeriodEnded(now)
	}), nil
}

func (s *Store) list(limit int, match func(*subscription.Subscription) bool) []subscription.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]subscription.Subscription, 0)
	for _, sub := range s.subs {
		if !sub.Deleted && match(sub) {
			out = append(out, *sub.Clone())
		}
	}

	slices.SortFunc(out, func(a, b subscription.Subscription) int {
		if c := a.NextBillingDate.Compare(b.NextBillingDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) SaveBilling(_ context.Context, sub *subscription.Subscription, record subscription.BillingRecord, change *subscription.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(sub); err != nil {
		return err
	}
	if record.ID == uuid.Nil || record.SubscriptionID != sub.ID {
		return fmt.Errorf("%w: billing record does not belong to subscription", subscription.ErrInvalidSubscription)
	}
	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("%w: billing record %s already exists", subscription.ErrInvalidSubscription, record.ID)
	}

	s.commit(sub)
	rec := record
	rec.Refunds = slices.Clone(record.Refunds)
	s.records[rec.ID] = &rec
	s.bySub[sub.ID] = append(s.bySub[sub.ID], rec.ID)
	if change != nil {
		s.history[sub.ID] = append(s.history[sub.ID], *change)
	}
	return nil
}

func (s *Store) Save(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(sub); err != nil {
		return err
	}
	if stored := s.subs[sub.ID]; stored.Status != sub.Status {
		return fmt.Errorf("%w: status changes must be saved with a history entry", subscription.ErrInvalidSubscriptionState)
	}

	s.commit(sub)
	return nil
}

func (s *Store) SaveTransition(_ context.Context, sub *subscription.Subscription, change subscription.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(sub); err != nil {
		return err
	}
	if change.SubscriptionID != sub.ID {
		return fmt.Errorf("%w: status change does not belong to subscription", subscription.ErrInvalidSubscription)
	}

	s.commit(sub)
	s.history[sub.ID] = append(s.history[sub.ID], change)
	return nil
}

func (s *Store) checkVersion(sub *subscription.Subscription) error {
	stored, ok := s.subs[sub.ID]
	if !ok {
		return subscription.ErrSubscriptionNotFound
	}
	if stored.Version != sub.Version {
		return subscription.ErrConcurrentUpdate
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	return nil
}

func (s *Store) commit(sub *subscription.Subscription) {
	sub.Version++
	s.subs[sub.ID] = sub.Clone()
}

func (s *Store) BillingRecord(_ context.Context, id uuid.UUID) (*subscription.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, subscription.ErrBillingRecordNotFound
	}
	out := *rec
	out.Refunds = slices.Clone(rec.Refunds)
	return &out, nil
}

func (s *Store) BillingRecords(_ context.Context, subscriptionID uuid.UUID) ([]subscription.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySub[subscriptionID]
	out := make([]subscription.BillingRecord, 0, len(ids))
	for _, id := range ids {
		rec := *s.records[id]
		rec.Refunds = slices.Clone(rec.Refunds)
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) AttachRefund(_ context.Context, recordID uuid.UUID, refund subscription.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return subscription.ErrBillingRecordNotFound
	}
	if refund.Amount.Amount > rec.Refundable().Amount {
		return subscription.ErrRefundExceedsCaptured
	}
	rec.Refunds = append(rec.Refunds, refund)
	return nil
}

func (s *Store) History(_ context.Context, subscriptionID uuid.UUID) ([]subscription.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.history[subscriptionID]), nil
}

// SoftDelete flags a subscription as deleted. Deleted rows are hidden from every scan.
func (s *Store) SoftDelete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return subscription.ErrSubscriptionNotFound
	}
	sub.Deleted = true
	sub.Version++
	return nil
}
