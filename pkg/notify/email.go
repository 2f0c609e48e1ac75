package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/dmitrymomot/telebill/pkg/email"
	"github.com/dmitrymomot/telebill/pkg/email/templates"
	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/subscription"
)

const (
	TagPaymentReceipt = "payment-receipt"
	TagPaymentFailed  = "payment-failed"
)

// Recipient is where a user's billing mail goes.
type Recipient struct {
	Email string
	Name  string
}

// RecipientResolver maps a subscription owner to a mail address.
type RecipientResolver func(ctx context.Context, userID uuid.UUID) (Recipient, error)

// EmailNotifier sends receipts and failure alerts by email.
type EmailNotifier struct {
	sender      email.EmailSender
	resolve     RecipientResolver
	productName string
	billingURL  string
	logger      *slog.Logger
}

// Option configures an EmailNotifier.
type Option func(*EmailNotifier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *EmailNotifier) {
		n.logger = l
	}
}

// WithProductName sets the product name used in subjects and greetings.
func WithProductName(name string) Option {
	return func(n *EmailNotifier) {
		if name != "" {
			n.productName = name
		}
	}
}

// WithBillingURL sets the link where users update their payment method.
func WithBillingURL(url string) Option {
	return func(n *EmailNotifier) {
		n.billingURL = url
	}
}

// NewEmailNotifier creates an email notifier. It panics if sender or resolve is nil.
func NewEmailNotifier(sender email.EmailSender, resolve RecipientResolver, opts ...Option) *EmailNotifier {
	if sender == nil {
		panic("notify: email sender is required")
	}
	if resolve == nil {
		panic("notify: recipient resolver is required")
	}
	n := &EmailNotifier{
		sender:      sender,
		resolve:     resolve,
		productName: "Telebill",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(logger.Component("notify"))
	return n
}

// SendPaymentReceipt emails a receipt for a successful charge.
func (n *EmailNotifier) SendPaymentReceipt(ctx context.Context, r subscription.Receipt) error {
	to, err := n.recipient(ctx, r.UserID)
	if err != nil {
		return err
	}
	return n.send(ctx, to, TagPaymentReceipt,
		fmt.Sprintf("Your %s receipt", n.productName),
		receiptEmail(receiptData{
			Name:        to.Name,
			ProductName: n.productName,
			Receipt:     r,
		}),
		logger.SubscriptionID(r.SubscriptionID),
		logger.TransactionRef(r.TransactionRef),
	)
}

// SendPaymentFailureAlert emails the user about a declined charge.
func (n *EmailNotifier) SendPaymentFailureAlert(ctx context.Context, a subscription.FailureAlert) error {
	to, err := n.recipient(ctx, a.UserID)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("We couldn't process your %s payment", n.productName)
	if a.PastDue {
		subject = fmt.Sprintf("Action required: your %s subscription is past due", n.productName)
	}
	return n.send(ctx, to, TagPaymentFailed, subject,
		failureEmail(failureData{
			Name:        to.Name,
			ProductName: n.productName,
			BillingURL:  n.billingURL,
			Alert:       a,
		}),
		logger.SubscriptionID(a.SubscriptionID),
		logger.RetryCount(a.Attempt),
	)
}

func (n *EmailNotifier) recipient(ctx context.Context, userID uuid.UUID) (Recipient, error) {
	to, err := n.resolve(ctx, userID)
	if err != nil {
		return Recipient{}, errors.Join(ErrRecipientNotFound, err)
	}
	if to.Email == "" {
		return Recipient{}, fmt.Errorf("%w: user %s has no email address", ErrRecipientNotFound, userID)
	}
	return to, nil
}

func (n *EmailNotifier) send(ctx context.Context, to Recipient, tag, subject string, body templ.Component, attrs ...slog.Attr) error {
	html, err := templates.Render(ctx, subject, body)
	if err != nil {
		return errors.Join(ErrRenderFailed, err)
	}
	if err := n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to.Email,
		Subject:  subject,
		BodyHTML: html,
		Tag:      tag,
	}); err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}

	n.logger.LogAttrs(ctx, slog.LevelInfo, "billing email sent",
		append(attrs, slog.String("tag", tag))...)
	return nil
}
