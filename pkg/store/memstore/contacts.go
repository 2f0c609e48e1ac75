package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

var _ subscription.ContactDirectory = (*Store)(nil)

func (s *Store) UpsertContact(_ context.Context, c subscription.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.UserID] = c
	return nil
}

func (s *Store) Contact(_ context.Context, userID uuid.UUID) (*subscription.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", subscription.ErrContactNotFound, userID)
	}
	return &c, nil
}
