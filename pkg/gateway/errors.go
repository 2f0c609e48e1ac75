package gateway

import "errors"

var (
	ErrMissingAPIKey        = errors.New("paddle API key is required")
	ErrMissingWebhookSecret = errors.New("paddle webhook secret is required")
	ErrInvalidEnvironment   = errors.New("invalid paddle environment")
	ErrInvalidSignature     = errors.New("webhook signature verification failed")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrUnsupported          = errors.New("operation not supported by gateway")
	ErrInvalidRequest       = errors.New("invalid gateway request")
	ErrRenewalPending       = errors.New("renewal payment not collected yet")
)
