package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/PaddleHQ/paddle-go-sdk/v4/pkg/paddleerr"

	"github.com/dmitrymomot/telebill/pkg/subscription"
)

// renewalLookback is how many recent renewal transactions are searched for
// the billing period being collected.
const renewalLookback = 5

// periodSkew tolerates Paddle anchoring a renewal period slightly off the
// local billing date.
const periodSkew = 24 * time.Hour

// paddleAPI is the subset of the Paddle SDK used by the adapter.
type paddleAPI interface {
	CreateCustomer(ctx context.Context, req *paddle.CreateCustomerRequest) (*paddle.Customer, error)
	CreateProduct(ctx context.Context, req *paddle.CreateProductRequest) (*paddle.Product, error)
	CreatePrice(ctx context.Context, req *paddle.CreatePriceRequest) (*paddle.Price, error)
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
	RenewalTransactions(ctx context.Context, subscriptionRef string, limit int) ([]*paddle.Transaction, error)
	PauseSubscription(ctx context.Context, req *paddle.PauseSubscriptionRequest) (*paddle.Subscription, error)
	ResumeSubscription(ctx context.Context, req *paddle.ResumeSubscriptionRequest) (*paddle.Subscription, error)
	CancelSubscription(ctx context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error)
	CreateAdjustment(ctx context.Context, req *paddle.CreateAdjustmentRequest) (*paddle.Adjustment, error)
}

// Paddle implements subscription.PaymentGateway for Paddle Billing.
type Paddle struct {
	api      paddleAPI
	webhooks *WebhookParser
}

var _ subscription.PaymentGateway = (*Paddle)(nil)

// NewPaddle creates a Paddle gateway for the configured environment.
func NewPaddle(cfg PaddleConfig) (*Paddle, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox", "":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	p := &Paddle{api: sdkAPI{client}}
	if cfg.WebhookSecret != "" {
		p.webhooks, err = NewWebhookParser(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CreateCustomer registers the subscriber as a Paddle customer.
func (p *Paddle) CreateCustomer(ctx context.Context, req subscription.CustomerRequest) (string, error) {
	if req.Email == "" {
		return "", fmt.Errorf("%w: customer email is required", ErrInvalidRequest)
	}
	in := &paddle.CreateCustomerRequest{
		Email:      req.Email,
		CustomData: paddle.CustomData{"user_id": req.UserID.String()},
	}
	if req.Name != "" {
		in.Name = paddle.PtrTo(req.Name)
	}

	customer, err := p.api.CreateCustomer(ctx, in)
	if err != nil {
		return "", classify("create customer", err)
	}
	return customer.ID, nil
}

// CreateProduct creates a catalog product for a plan.
func (p *Paddle) CreateProduct(ctx context.Context, req subscription.ProductRequest) (string, error) {
	if req.Name == "" {
		return "", fmt.Errorf("%w: product name is required", ErrInvalidRequest)
	}
	in := &paddle.CreateProductRequest{
		Name:        req.Name,
		TaxCategory: paddle.TaxCategoryStandard,
	}
	if req.Description != "" {
		in.Description = paddle.PtrTo(req.Description)
	}

	product, err := p.api.CreateProduct(ctx, in)
	if err != nil {
		return "", classify("create product", err)
	}
	return product.ID, nil
}

// CreatePrice creates a recurring price for a product. Paddle renews
// subscriptions on this price and collects each period automatically.
func (p *Paddle) CreatePrice(ctx context.Context, req subscription.PriceRequest) (string, error) {
	if req.ProductRef == "" || !req.Amount.IsPositive() {
		return "", fmt.Errorf("%w: product and positive amount are required", ErrInvalidRequest)
	}
	cycle, err := billingCycle(req.Interval)
	if err != nil {
		return "", err
	}

	price, err := p.api.CreatePrice(ctx, &paddle.CreatePriceRequest{
		Description:  req.Description,
		ProductID:    req.ProductRef,
		UnitPrice:    toPaddleMoney(req.Amount),
		BillingCycle: &cycle,
	})
	if err != nil {
		return "", classify("create price", err)
	}
	return price.ID, nil
}

// Capture reports the outcome of Paddle's automatic collection for the period
// starting at req.PeriodStart. Paddle renews the subscription on its recurring
// price, so no charge is created here and a failed lookup never means money was
// taken. A renewal that is not collected yet is reported as ErrRenewalPending,
// wrapped in ErrGatewayUnavailable, and picked up again on the next pass.
func (p *Paddle) Capture(ctx context.Context, req subscription.CaptureRequest) (*subscription.CaptureResult, error) {
	if req.GatewaySubscriptionRef == "" {
		return &subscription.CaptureResult{
			Status:      subscription.CaptureDeclined,
			DeclineCode: "missing_subscription_ref",
			Detail:      "subscription is not linked to a paddle subscription",
		}, nil
	}

	txns, err := p.api.RenewalTransactions(ctx, req.GatewaySubscriptionRef, renewalLookback)
	if err != nil {
		return nil, classify("load renewal transactions", err)
	}

	txn := renewalFor(txns, req.PeriodStart)
	if txn == nil {
		return nil, fmt.Errorf("paddle capture: %w: %w", subscription.ErrGatewayUnavailable, ErrRenewalPending)
	}

	switch txn.Status {
	case paddle.TransactionStatusCompleted, paddle.TransactionStatusPaid:
		result := &subscription.CaptureResult{
			Status:         subscription.CaptureSucceeded,
			TransactionRef: txn.ID,
		}
		if len(txn.Details.LineItems) > 0 {
			result.LineItemRef = txn.Details.LineItems[0].ID
		}
		return result, nil
	case paddle.TransactionStatusPastDue, paddle.TransactionStatusCanceled:
		return &subscription.CaptureResult{
			Status:         subscription.CaptureDeclined,
			TransactionRef: txn.ID,
			DeclineCode:    declineCode(txn),
			Detail:         "renewal transaction " + string(txn.Status),
		}, nil
	}
	return nil, fmt.Errorf("paddle capture: %w: %w: transaction %s is %s",
		subscription.ErrGatewayUnavailable, ErrRenewalPending, txn.ID, txn.Status)
}

// CreateSubscription opens an automatically collected transaction for the
// price. Paddle creates the subscription once that transaction completes, so
// the returned reference is the transaction ID and the subscription ID arrives
// with the subscription.created webhook.
func (p *Paddle) CreateSubscription(ctx context.Context, req subscription.GatewaySubscriptionRequest) (string, error) {
	if req.CustomerRef == "" || req.PriceRef == "" {
		return "", fmt.Errorf("%w: customer and price references are required", ErrInvalidRequest)
	}
	mode := paddle.CollectionModeAutomatic
	txn, err := p.api.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
				PriceID:  req.PriceRef,
				Quantity: 1,
			}),
		},
		CustomerID:     paddle.PtrTo(req.CustomerRef),
		CollectionMode: &mode,
		CustomData:     paddle.CustomData{"subscription_id": req.SubscriptionID.String()},
	})
	if err != nil {
		return "", classify("create subscription", err)
	}
	return txn.ID, nil
}

// UpdateSubscription pauses or resumes the gateway-side subscription.
// Price changes are managed in the Paddle dashboard.
func (p *Paddle) UpdateSubscription(ctx context.Context, req subscription.GatewaySubscriptionUpdate) error {
	switch {
	case req.Ref == "":
		return fmt.Errorf("%w: subscription reference is required", ErrInvalidRequest)
	case req.PriceRef != "":
		return fmt.Errorf("%w: price change", ErrUnsupported)
	case req.Pause:
		effective := paddle.EffectiveFromImmediately
		if _, err := p.api.PauseSubscription(ctx, &paddle.PauseSubscriptionRequest{
			SubscriptionID: req.Ref,
			EffectiveFrom:  &effective,
		}); err != nil {
			return classify("pause subscription", err)
		}
	case req.Resume:
		if _, err := p.api.ResumeSubscription(ctx, &paddle.ResumeSubscriptionRequest{
			SubscriptionID: req.Ref,
		}); err != nil {
			return classify("resume subscription", err)
		}
	}
	return nil
}

// CancelSubscription cancels the gateway-side subscription immediately or at
// the end of the current billing period.
func (p *Paddle) CancelSubscription(ctx context.Context, ref string, atPeriodEnd bool) error {
	if ref == "" {
		return fmt.Errorf("%w: subscription reference is required", ErrInvalidRequest)
	}
	effective := paddle.EffectiveFromImmediately
	if atPeriodEnd {
		effective = paddle.EffectiveFromNextBillingPeriod
	}
	if _, err := p.api.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: ref,
		EffectiveFrom:  &effective,
	}); err != nil {
		return classify("cancel subscription", err)
	}
	return nil
}

// Refund creates a refund adjustment against a captured transaction.
func (p *Paddle) Refund(ctx context.Context, req subscription.RefundRequest) (*subscription.RefundResult, error) {
	if req.TransactionRef == "" {
		return nil, fmt.Errorf("%w: transaction reference is required", ErrInvalidRequest)
	}

	in := &paddle.CreateAdjustmentRequest{
		Action:        paddle.AdjustmentActionRefund,
		TransactionID: req.TransactionRef,
		Reason:        req.Reason,
	}
	if req.Full {
		full := paddle.AdjustmentTypeFull
		in.Type = &full
	} else {
		if req.LineItemRef == "" {
			return nil, fmt.Errorf("%w: line item reference is required for partial refunds", ErrInvalidRequest)
		}
		partial := paddle.AdjustmentTypePartial
		in.Type = &partial
		in.Items = []paddle.AdjustmentItem{{
			ItemID: req.LineItemRef,
			Type:   paddle.AdjustmentItemTypePartial,
			Amount: paddle.PtrTo(strconv.FormatInt(req.Amount.Amount, 10)),
		}}
	}

	adj, err := p.api.CreateAdjustment(ctx, in)
	if err != nil {
		return nil, classify("refund", err)
	}
	return &subscription.RefundResult{Ref: adj.ID, Status: string(adj.Status)}, nil
}

// ParseWebhook verifies and normalizes a Paddle webhook request.
func (p *Paddle) ParseWebhook(r *http.Request) (*subscription.GatewayEvent, error) {
	if p.webhooks == nil {
		return nil, ErrMissingWebhookSecret
	}
	return p.webhooks.Parse(r)
}

func billingCycle(interval subscription.BillingInterval) (paddle.Duration, error) {
	switch interval {
	case subscription.BillingIntervalWeekly:
		return paddle.Duration{Interval: paddle.IntervalWeek, Frequency: 1}, nil
	case subscription.BillingIntervalMonthly:
		return paddle.Duration{Interval: paddle.IntervalMonth, Frequency: 1}, nil
	case subscription.BillingIntervalQuarterly:
		return paddle.Duration{Interval: paddle.IntervalMonth, Frequency: 3}, nil
	case subscription.BillingIntervalAnnual:
		return paddle.Duration{Interval: paddle.IntervalYear, Frequency: 1}, nil
	}
	return paddle.Duration{}, fmt.Errorf("%w: billing interval %q", ErrInvalidRequest, interval)
}

func toPaddleMoney(m subscription.Money) paddle.Money {
	return paddle.Money{
		Amount:       strconv.FormatInt(m.Amount, 10),
		CurrencyCode: paddle.CurrencyCode(strings.ToUpper(m.Currency)),
	}
}

// renewalFor picks the renewal transaction whose billing period starts at
// periodStart, give or take periodSkew.
func renewalFor(txns []*paddle.Transaction, periodStart time.Time) *paddle.Transaction {
	for _, txn := range txns {
		if txn == nil || txn.BillingPeriod == nil {
			continue
		}
		starts, err := time.Parse(time.RFC3339, txn.BillingPeriod.StartsAt)
		if err != nil {
			continue
		}
		if d := starts.Sub(periodStart).Abs(); d <= periodSkew {
			return txn
		}
	}
	return nil
}

func declineCode(txn *paddle.Transaction) string {
	for _, attempt := range txn.Payments {
		if attempt.ErrorCode != nil {
			return string(*attempt.ErrorCode)
		}
	}
	return "renewal_" + string(txn.Status)
}

// classify maps a Paddle failure onto the gateway sentinels. Client errors
// are rejections that retrying will not fix; everything else is treated as
// the gateway being unavailable.
func classify(op string, err error) error {
	var perr *paddleerr.Error
	if errors.As(err, &perr) && perr.Status >= 400 && perr.Status < 500 && perr.Status != http.StatusTooManyRequests {
		return fmt.Errorf("paddle %s: %w: %w", op, subscription.ErrGatewayRejected, err)
	}
	return fmt.Errorf("paddle %s: %w: %w", op, subscription.ErrGatewayUnavailable, err)
}
