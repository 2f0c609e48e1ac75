package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// EmailSender delivers one message.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams is a rendered message. Tag groups messages in the
// provider's dashboard and names files written by DevSender.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validAddress(s string) bool {
	return addressPattern.MatchString(s)
}

func (p SendEmailParams) Validate() error {
	if problem := p.problem(); problem != "" {
		return fmt.Errorf("%w: %s", ErrInvalidParams, problem)
	}
	return nil
}

func (p SendEmailParams) problem() string {
	to := strings.TrimSpace(p.SendTo)
	if to == "" {
		return "recipient is empty"
	}
	if !validAddress(to) {
		return fmt.Sprintf("recipient %q is not an email address", to)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return "subject is empty"
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return "body is empty"
	}
	return ""
}
