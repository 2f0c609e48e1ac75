package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkClient struct {
	api     *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkClient returns a sender backed by Postmark's transactional API.
// Replies to every message go to cfg.SupportEmail.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if err := cfg.validatePostmark(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &postmarkClient{
		api:     postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    cfg.SenderEmail,
		replyTo: cfg.SupportEmail,
	}, nil
}

func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.api.SendEmail(ctx, postmark.Email{
		From:       c.from,
		ReplyTo:    c.replyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
	})
	switch {
	case err != nil:
		return errors.Join(ErrFailedToSendEmail, err)
	case resp.ErrorCode != 0:
		return fmt.Errorf("%w: postmark code %d: %s", ErrFailedToSendEmail, resp.ErrorCode, resp.Message)
	}
	return nil
}
