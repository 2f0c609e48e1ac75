package notify

import "errors"

var (
	ErrRecipientNotFound = errors.New("notify: recipient not found")
	ErrRenderFailed      = errors.New("notify: failed to render message")
	ErrDeliveryFailed    = errors.New("notify: failed to deliver message")
)
