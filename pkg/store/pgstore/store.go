package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/telebill/pkg/pg"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// DB is the part of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements subscription.Repository on PostgreSQL. Every Save* call
// runs in one transaction that locks the subscription row, checks its version
// and writes the row together with its billing record and history entry.
type Store struct {
	db DB
}

var _ subscription.Repository = (*Store)(nil)

// New creates a store. Panics if db is nil.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Store{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, status, price_amount, price_currency,
	billing_anchor, next_billing_date, is_trial, trial_start_date, trial_end_date,
	payment_method_ref, customer_ref, gateway_subscription_ref,
	failed_payment_attempts, transient_failures, last_attempt_at,
	cancel_at_period_end, cancelled_at, paused_at, deleted, version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscription", subscription.ErrInvalidSubscription)
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	_, err := s.db.Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, 1, $22, $23)`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Status), sub.Price.Amount, sub.Price.Currency,
		nullTime(sub.BillingAnchor), nullTime(sub.NextBillingDate), sub.IsTrial, sub.TrialStartDate, sub.TrialEndDate,
		sub.PaymentMethodRef, sub.CustomerRef, sub.GatewaySubscriptionRef,
		sub.FailedPaymentAttempts, sub.TransientFailures, sub.LastAttemptAt,
		sub.CancelAtPeriodEnd, sub.CancelledAt, sub.PausedAt, sub.Deleted, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: subscription %s already exists", subscription.ErrInvalidSubscription, sub.ID)
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	sub.Version = 1
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub, err
}

func (s *Store) GetByGatewayRef(ctx context.Context, ref string) (*subscription.Subscription, error) {
	if ref == "" {
		return nil, subscription.ErrSubscriptionNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE gateway_subscription_ref = $1`, ref)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub, err
}

func (s *Store) ListBillable(ctx context.Context, q subscription.BillableQuery) ([]subscription.Subscription, error) {
	return s.list(ctx, `NOT cancel_at_period_end
		AND next_billing_date <= $1
		AND (last_attempt_at IS NULL OR last_attempt_at <= $2)
		AND (status IN ('active', 'past_due')
			OR (status = 'trial_active' AND payment_method_ref <> '' AND (trial_end_date IS NULL OR trial_end_date >= $1)))`,
		q.Limit, q.Now, q.Now.Add(-q.RetryAfter))
}

func (s *Store) ListOverdue(ctx context.Context, before time.Time, limit int) ([]subscription.Subscription, error) {
	return s.list(ctx, `status = 'active' AND next_billing_date <= $1`, limit, before)
}

func (s *Store) ListEndedTrials(ctx context.Context, now time.Time, limit int) ([]subscription.Subscription, error) {
	return s.list(ctx, `status = 'trial_active' AND trial_end_date < $1`, limit, now)
}

func (s *Store) ListPendingCancellations(ctx context.Context, now time.Time, limit int) ([]subscription.Subscription, error) {
	return s.list(ctx, `status IN ('active', 'past_due') AND cancel_at_period_end AND next_billing_date <= $1`, limit, now)
}

// list runs a candidate scan. The limit is always the last placeholder.
func (s *Store) list(ctx context.Context, where string, limit int, args ...any) ([]subscription.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions
		WHERE NOT deleted AND %s
		ORDER BY next_billing_date, id
		LIMIT NULLIF($%d::int, 0)`, subscriptionColumns, where, len(args)+1)

	rows, err := s.db.Query(ctx, query, append(args, max(limit, 0))...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	out := make([]subscription.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, sub *subscription.Subscription) error {
	return s.write(ctx, sub, func(ctx context.Context, tx pgx.Tx, stored subscription.SubscriptionStatus) error {
		if stored != sub.Status {
			return fmt.Errorf("%w: status changes must be saved with a history entry", subscription.ErrInvalidSubscriptionState)
		}
		return nil
	})
}

func (s *Store) SaveTransition(ctx context.Context, sub *subscription.Subscription, change subscription.StatusChange) error {
	if change.SubscriptionID != sub.ID {
		return fmt.Errorf("%w: status change does not belong to subscription", subscription.ErrInvalidSubscription)
	}
	return s.write(ctx, sub, func(ctx context.Context, tx pgx.Tx, _ subscription.SubscriptionStatus) error {
		return insertChange(ctx, tx, change)
	})
}

func (s *Store) SaveBilling(ctx context.Context, sub *subscription.Subscription, record subscription.BillingRecord, change *subscription.StatusChange) error {
	if record.ID == uuid.Nil || record.SubscriptionID != sub.ID {
		return fmt.Errorf("%w: billing record does not belong to subscription", subscription.ErrInvalidSubscription)
	}
	return s.write(ctx, sub, func(ctx context.Context, tx pgx.Tx, _ subscription.SubscriptionStatus) error {
		_, err := tx.Exec(ctx, `INSERT INTO billing_records
			(id, subscription_id, amount, currency, outcome, failure_kind, detail, transaction_ref, line_item_ref, attempt, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			record.ID, record.SubscriptionID, record.Amount.Amount, record.Amount.Currency,
			string(record.Outcome), string(record.FailureKind), record.Detail,
			record.TransactionRef, record.LineItemRef, record.Attempt, record.CreatedAt,
		)
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: billing record %s already exists", subscription.ErrInvalidSubscription, record.ID)
		}
		if err != nil {
			return fmt.Errorf("insert billing record: %w", err)
		}
		if change != nil {
			return insertChange(ctx, tx, *change)
		}
		return nil
	})
}

// write locks the row, verifies sub.Version, runs extra and updates the row
// in one transaction. sub.Version is bumped only after a successful commit.
func (s *Store) write(ctx context.Context, sub *subscription.Subscription, extra func(context.Context, pgx.Tx, subscription.SubscriptionStatus) error) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var (
			status  string
			version int64
		)
		err := tx.QueryRow(ctx, `SELECT status, version FROM subscriptions WHERE id = $1 FOR UPDATE`, sub.ID).Scan(&status, &version)
		if pg.IsNotFoundError(err) {
			return subscription.ErrSubscriptionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}
		if version != sub.Version {
			return subscription.ErrConcurrentUpdate
		}

		if err := extra(ctx, tx, subscription.SubscriptionStatus(status)); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE subscriptions SET
			plan_id = $3, status = $4, price_amount = $5, price_currency = $6,
			billing_anchor = $7, next_billing_date = $8, is_trial = $9, trial_start_date = $10, trial_end_date = $11,
			payment_method_ref = $12, customer_ref = $13, gateway_subscription_ref = $14,
			failed_payment_attempts = $15, transient_failures = $16, last_attempt_at = $17,
			cancel_at_period_end = $18, cancelled_at = $19, paused_at = $20, updated_at = $21,
			version = version + 1
			WHERE id = $1 AND version = $2`,
			sub.ID, sub.Version, sub.PlanID, string(sub.Status), sub.Price.Amount, sub.Price.Currency,
			nullTime(sub.BillingAnchor), nullTime(sub.NextBillingDate), sub.IsTrial, sub.TrialStartDate, sub.TrialEndDate,
			sub.PaymentMethodRef, sub.CustomerRef, sub.GatewaySubscriptionRef,
			sub.FailedPaymentAttempts, sub.TransientFailures, sub.LastAttemptAt,
			sub.CancelAtPeriodEnd, sub.CancelledAt, sub.PausedAt, updatedAt(sub.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		return nil
	})
	if pg.IsSerializationError(err) {
		return errors.Join(subscription.ErrConcurrentUpdate, err)
	}
	if err != nil {
		return err
	}

	sub.Version++
	return nil
}

func insertChange(ctx context.Context, tx pgx.Tx, change subscription.StatusChange) error {
	_, err := tx.Exec(ctx, `INSERT INTO status_changes
		(id, subscription_id, from_status, to_status, event, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		change.ID, change.SubscriptionID, string(change.From), string(change.To),
		string(change.Event), change.Reason, change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

const recordColumns = `r.id, r.subscription_id, r.amount, r.currency, r.outcome, r.failure_kind, r.detail,
	r.transaction_ref, r.line_item_ref, r.attempt, r.created_at,
	f.id, f.ref, f.amount, f.currency, f.reason, f.created_at`

func (s *Store) BillingRecord(ctx context.Context, id uuid.UUID) (*subscription.BillingRecord, error) {
	records, err := s.records(ctx, `r.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, subscription.ErrBillingRecordNotFound
	}
	return &records[0], nil
}

func (s *Store) BillingRecords(ctx context.Context, subscriptionID uuid.UUID) ([]subscription.BillingRecord, error) {
	return s.records(ctx, `r.subscription_id = $1`, subscriptionID)
}

// records loads billing records with their refunds in insertion order.
func (s *Store) records(ctx context.Context, where string, args ...any) ([]subscription.BillingRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+`
		FROM billing_records r
		LEFT JOIN refunds f ON f.billing_record_id = r.id
		WHERE `+where+`
		ORDER BY r.seq, f.created_at, f.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query billing records: %w", err)
	}
	defer rows.Close()

	out := make([]subscription.BillingRecord, 0)
	for rows.Next() {
		var (
			rec          subscription.BillingRecord
			outcome      string
			failureKind  string
			refundID     *uuid.UUID
			refundRef    *string
			refundAmount *int64
			refundCur    *string
			refundReason *string
			refundAt     *time.Time
		)
		if err := rows.Scan(
			&rec.ID, &rec.SubscriptionID, &rec.Amount.Amount, &rec.Amount.Currency, &outcome, &failureKind, &rec.Detail,
			&rec.TransactionRef, &rec.LineItemRef, &rec.Attempt, &rec.CreatedAt,
			&refundID, &refundRef, &refundAmount, &refundCur, &refundReason, &refundAt,
		); err != nil {
			return nil, fmt.Errorf("scan billing record: %w", err)
		}
		rec.Outcome = subscription.Outcome(outcome)
		rec.FailureKind = subscription.FailureKind(failureKind)

		if n := len(out); n == 0 || out[n-1].ID != rec.ID {
			out = append(out, rec)
		}
		if refundID != nil {
			last := &out[len(out)-1]
			last.Refunds = append(last.Refunds, subscription.Refund{
				ID:        *refundID,
				Ref:       deref(refundRef),
				Amount:    subscription.Money{Amount: deref(refundAmount), Currency: deref(refundCur)},
				Reason:    deref(refundReason),
				CreatedAt: deref(refundAt),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query billing records: %w", err)
	}
	return out, nil
}

func (s *Store) AttachRefund(ctx context.Context, recordID uuid.UUID, refund subscription.Refund) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var (
			amount   int64
			outcome  string
			refunded int64
		)
		err := tx.QueryRow(ctx, `SELECT amount, outcome FROM billing_records WHERE id = $1 FOR UPDATE`, recordID).
			Scan(&amount, &outcome)
		if pg.IsNotFoundError(err) {
			return subscription.ErrBillingRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("lock billing record: %w", err)
		}
		if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE billing_record_id = $1`, recordID).
			Scan(&refunded); err != nil {
			return fmt.Errorf("sum refunds: %w", err)
		}

		refundable := amount - refunded
		if subscription.Outcome(outcome) != subscription.OutcomeSuccess {
			refundable = 0
		}
		if refund.Amount.Amount > refundable {
			return subscription.ErrRefundExceedsCaptured
		}

		_, err = tx.Exec(ctx, `INSERT INTO refunds (id, billing_record_id, ref, amount, currency, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			refund.ID, recordID, refund.Ref, refund.Amount.Amount, refund.Amount.Currency, refund.Reason, refund.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}
		return nil
	})
}

func (s *Store) History(ctx context.Context, subscriptionID uuid.UUID) ([]subscription.StatusChange, error) {
	rows, err := s.db.Query(ctx, `SELECT id, subscription_id, from_status, to_status, event, reason, created_at
		FROM status_changes WHERE subscription_id = $1 ORDER BY seq`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]subscription.StatusChange, 0)
	for rows.Next() {
		var (
			c               subscription.StatusChange
			from, to, event string
		)
		if err := rows.Scan(&c.ID, &c.SubscriptionID, &from, &to, &event, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.From = subscription.SubscriptionStatus(from)
		c.To = subscription.SubscriptionStatus(to)
		c.Event = subscription.Event(event)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return out, nil
}

// SoftDelete flags a subscription as deleted. Deleted rows are hidden from every scan.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE subscriptions SET deleted = TRUE, version = version + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub     subscription.Subscription
		status  string
		anchor  *time.Time
		nextDue *time.Time
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &status, &sub.Price.Amount, &sub.Price.Currency,
		&anchor, &nextDue, &sub.IsTrial, &sub.TrialStartDate, &sub.TrialEndDate,
		&sub.PaymentMethodRef, &sub.CustomerRef, &sub.GatewaySubscriptionRef,
		&sub.FailedPaymentAttempts, &sub.TransientFailures, &sub.LastAttemptAt,
		&sub.CancelAtPeriodEnd, &sub.CancelledAt, &sub.PausedAt, &sub.Deleted, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Status = subscription.SubscriptionStatus(status)
	sub.BillingAnchor = deref(anchor)
	sub.NextBillingDate = deref(nextDue)
	return &sub, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
