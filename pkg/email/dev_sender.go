package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes each message to dir instead of delivering it: the body
// as <name>.html and the envelope as <name>.json.
type DevSender struct {
	dir string
}

func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir}
}

type envelope struct {
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
}

func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	now := time.Now()
	meta, err := json.MarshalIndent(envelope{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    params.SendTo,
		Subject:   params.Subject,
		Tag:       params.Tag,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}

	label := params.Tag
	if label == "" {
		label = params.Subject
	}
	// the random suffix keeps messages sent in the same second apart
	base := filepath.Join(d.dir, strings.Join([]string{
		now.Format("2006_01_02_150405"), fileLabel(label), uuid.NewString()[:8],
	}, "_"))

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
	}
	for ext, data := range map[string][]byte{".html": []byte(params.BodyHTML), ".json": meta} {
		if err := os.WriteFile(base+ext, data, 0o644); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToSendEmail, err)
		}
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9._-]`)

// fileLabel turns s into a lowercase file name fragment of at most 100 bytes.
func fileLabel(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), " ", "_")
	s = unsafeFileChars.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "email"
	}
	return s
}
