package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// SignatureHeader carries the Paddle webhook signature.
const SignatureHeader = "Paddle-Signature"

const maxWebhookBody = 1 << 20

// WebhookParser verifies and normalizes Paddle webhook notifications.
type WebhookParser struct {
	verifier *paddle.WebhookVerifier
}

// NewWebhookParser creates a parser for the endpoint secret key.
func NewWebhookParser(secret string) (*WebhookParser, error) {
	if secret == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &WebhookParser{verifier: paddle.NewWebhookVerifier(secret)}, nil
}

type webhookPayload struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// Parse verifies the request signature and returns the normalized event.
// Event types with no mapping keep the provider's name as their Type.
func (w *WebhookParser) Parse(r *http.Request) (*subscription.GatewayEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	vreq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, r.URL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	vreq.Header.Set(SignatureHeader, r.Header.Get(SignatureHeader))

	valid, err := w.verifier.Verify(vreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if payload.EventID == "" || payload.EventType == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrInvalidPayload)
	}
	return normalize(payload), nil
}

func normalize(p webhookPayload) *subscription.GatewayEvent {
	ev := &subscription.GatewayEvent{
		ID:            p.EventID,
		Type:          eventType(p.EventType),
		ProviderEvent: p.EventType,
		Raw:           p.Data,
	}
	if t, err := time.Parse(time.RFC3339Nano, p.OccurredAt); err == nil {
		ev.OccurredAt = t
	}
	ev.Status, _ = p.Data["status"].(string)

	switch {
	case strings.HasPrefix(p.EventType, "subscription."):
		ev.GatewaySubscriptionRef, _ = p.Data["id"].(string)
	case strings.HasPrefix(p.EventType, "transaction."):
		ev.GatewaySubscriptionRef, _ = p.Data["subscription_id"].(string)
	}
	return ev
}

func eventType(providerEvent string) subscription.GatewayEventType {
	switch providerEvent {
	case "subscription.canceled":
		return subscription.GatewayEventSubscriptionCancelled
	case "subscription.paused":
		return subscription.GatewayEventSubscriptionPaused
	case "subscription.resumed":
		return subscription.GatewayEventSubscriptionResumed
	case "subscription.created", "subscription.updated", "subscription.activated",
		"subscription.past_due", "subscription.trialing":
		return subscription.GatewayEventSubscriptionUpdated
	case "transaction.completed", "transaction.paid":
		return subscription.GatewayEventPaymentSucceeded
	case "transaction.payment_failed":
		return subscription.GatewayEventPaymentFailed
	}
	return subscription.GatewayEventType(providerEvent)
}
