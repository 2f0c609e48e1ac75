package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrContactNotFound = errors.New("billing contact not found")
	ErrInvalidContact  = errors.New("invalid billing contact")
)

// Contact is the billing address of a user.
type Contact struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Validate checks that the contact can receive mail.
func (c Contact) Validate() error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrInvalidContact)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContact, err)
	}
	return nil
}

// ContactDirectory stores billing contacts keyed by user.
type ContactDirectory interface {
	UpsertContact(ctx context.Context, c Contact) error
	Contact(ctx context.Context, userID uuid.UUID) (*Contact, error)
}
