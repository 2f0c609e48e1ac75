package subscription_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

func TestContact_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		contact subscription.Contact
		wantErr bool
	}{
		{"valid", subscription.Contact{UserID: uuid.New(), Email: "ada@example.com"}, false},
		{"display name form", subscription.Contact{UserID: uuid.New(), Email: "Ada <ada@example.com>"}, false},
		{"missing user", subscription.Contact{Email: "ada@example.com"}, true},
		{"missing email", subscription.Contact{UserID: uuid.New()}, true},
		{"malformed email", subscription.Contact{UserID: uuid.New(), Email: "ada.example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.contact.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, subscription.ErrInvalidContact)
				return
			}
			assert.NoError(t, err)
		})
	}
}
