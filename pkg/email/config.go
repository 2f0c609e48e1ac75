package email

import (
	"errors"
	"fmt"
)

// Config holds email delivery settings. Without Postmark tokens the
// scheduler falls back to DevSender, which writes into DevOutputDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"billing@example.com"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@example.com"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
}

func (c Config) PostmarkEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}

func (c Config) validatePostmark() error {
	if !c.PostmarkEnabled() {
		return errors.New("POSTMARK_SERVER_TOKEN and POSTMARK_ACCOUNT_TOKEN are required")
	}
	for name, addr := range map[string]string{"SENDER_EMAIL": c.SenderEmail, "SUPPORT_EMAIL": c.SupportEmail} {
		if !validAddress(addr) {
			return fmt.Errorf("%s %q is not an email address", name, addr)
		}
	}
	return nil
}
