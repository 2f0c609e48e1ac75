// Package templates renders templ components into complete email documents.
package templates

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps body in the HTML document shared by every email.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title></head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Render renders body inside Layout and returns the document.
func Render(ctx context.Context, title string, body templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := Layout(title, body).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
