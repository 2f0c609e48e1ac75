package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

var _ subscription.ContactDirectory = (*Store)(nil)

func (s *Store) UpsertContact(ctx context.Context, c subscription.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `INSERT INTO billing_contacts (user_id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, updated_at = NOW()`,
		c.UserID, c.Email, c.Name)
	if err != nil {
		return fmt.Errorf("upsert billing contact: %w", err)
	}
	return nil
}

func (s *Store) Contact(ctx context.Context, userID uuid.UUID) (*subscription.Contact, error) {
	c := subscription.Contact{UserID: userID}
	err := s.db.QueryRow(ctx, `SELECT email, name FROM billing_contacts WHERE user_id = $1`, userID).
		Scan(&c.Email, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", subscription.ErrContactNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get billing contact: %w", err)
	}
	return &c, nil
}
