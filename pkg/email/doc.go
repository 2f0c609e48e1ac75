// Package email delivers transactional email through a provider-agnostic
// EmailSender.
//
// Two senders are provided:
//   - NewPostmarkClient sends through Postmark with open tracking
//     and the support address as Reply-To.
//   - NewDevSender writes each message to disk as an HTML file plus a JSON
//     metadata file, for local runs without a provider account.
//
// Both validate SendEmailParams before doing any work and report failures
// with the ErrInvalidConfig, ErrInvalidParams and ErrFailedToSendEmail
// sentinels.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//		return err
//	}
//	html, err := templates.Render(ctx, subject, component)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Payment receipt",
//		BodyHTML: html,
//		Tag:      "payment-receipt",
//	})
package email
