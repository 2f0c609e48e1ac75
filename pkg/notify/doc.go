// Package notify delivers billing notifications to subscribers.
//
// EmailNotifier implements subscription.Notifier on top of an email.EmailSender.
// Message bodies are templ components rendered with email/templates.Render, and
// the recipient address is looked up through a RecipientResolver because
// subscriptions only carry a user id.
//
//	n := notify.NewEmailNotifier(sender, func(ctx context.Context, userID uuid.UUID) (notify.Recipient, error) {
//		u, err := users.Get(ctx, userID)
//		if err != nil {
//			return notify.Recipient{}, err
//		}
//		return notify.Recipient{Email: u.Email, Name: u.Name}, nil
//	}, notify.WithLogger(log))
//
// Multi fans one notification out to several notifiers. Delivery is best effort:
// a failing notifier is logged and the rest still run.
package notify
