package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentGateway is the contract consumed from the payment provider.
// An error from Capture means the gateway could not be reached or failed internally;
// a decline is reported through CaptureResult and is not an error.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateProduct(ctx context.Context, req ProductRequest) (string, error)
	CreatePrice(ctx context.Context, req PriceRequest) (string, error)

	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)

	CreateSubscription(ctx context.Context, req GatewaySubscriptionRequest) (string, error)
	UpdateSubscription(ctx context.Context, req GatewaySubscriptionUpdate) error
	CancelSubscription(ctx context.Context, ref string, atPeriodEnd bool) error

	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

type CustomerRequest struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

type ProductRequest struct {
	Name        string
	Description string
}

type PriceRequest struct {
	ProductRef  string
	Description string
	Amount      Money
	Interval    BillingInterval
}

// CaptureRequest collects payment for the billing period starting at PeriodStart.
type CaptureRequest struct {
	SubscriptionID         uuid.UUID
	PeriodStart            time.Time
	GatewaySubscriptionRef string
	CustomerRef            string
	PaymentMethodRef       string
	PriceRef               string
	Amount                 Money
	Description            string
}

// CaptureStatus is the typed outcome of a capture that reached the gateway.
type CaptureStatus string

const (
	CaptureSucceeded CaptureStatus = "succeeded"
	CaptureDeclined  CaptureStatus = "declined"
)

type CaptureResult struct {
	Status         CaptureStatus
	TransactionRef string
	LineItemRef    string
	DeclineCode    string
	Detail         string
}

type GatewaySubscriptionRequest struct {
	SubscriptionID   uuid.UUID
	CustomerRef      string
	PaymentMethodRef string
	PriceRef         string
}

// GatewaySubscriptionUpdate changes the gateway-side mirror. Zero fields are left as is.
type GatewaySubscriptionUpdate struct {
	Ref      string
	PriceRef string
	Pause    bool
	Resume   bool
}

type RefundRequest struct {
	TransactionRef string
	LineItemRef    string
	Amount         Money
	Full           bool
	Reason         string
}

type RefundResult struct {
	Ref    string
	Status string
}

// GatewayEventType is a normalized webhook event kind.
type GatewayEventType string

const (
	GatewayEventSubscriptionCancelled GatewayEventType = "subscription_cancelled"
	GatewayEventSubscriptionPaused    GatewayEventType = "subscription_paused"
	GatewayEventSubscriptionResumed   GatewayEventType = "subscription_resumed"
	GatewayEventSubscriptionUpdated   GatewayEventType = "subscription_updated"
	GatewayEventPaymentSucceeded      GatewayEventType = "payment_succeeded"
	GatewayEventPaymentFailed         GatewayEventType = "payment_failed"
)

// GatewayEvent is a verified webhook notification from the gateway.
type GatewayEvent struct {
	ID                     string
	Type                   GatewayEventType
	ProviderEvent          string
	GatewaySubscriptionRef string
	Status                 string
	OccurredAt             time.Time
	Raw                    map[string]any
}
