package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrymomot/telebill/pkg/environment"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Option func(*config)

type config struct {
	level       slog.Level
	levelPinned bool
	format      Format
	output      io.Writer
	attrs       []slog.Attr
	extractors  []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(c *config) {
		c.level = l
		c.levelPinned = true
	}
}

// WithLevelName sets the level by name (debug, info, warn, error).
// Empty or unknown names are ignored.
func WithLevelName(name string) Option {
	l, ok := ParseLevel(name)
	if !ok {
		return func(*config) {}
	}
	return WithLevel(l)
}

func ParseLevel(name string) (slog.Level, bool) {
	var l slog.Level
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "warning":
		return slog.LevelWarn, true
	case "":
		return l, false
	default:
		if err := l.UnmarshalText([]byte(n)); err != nil || strings.ContainsAny(n, "+-") {
			return slog.LevelInfo, false
		}
		return l, true
	}
}

// WithFormat panics on anything but FormatJSON or FormatText.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(c *config) { c.format = f }
}

// WithOutput redirects records to w. Nil is ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// WithContextExtractors adds attributes pulled from the context of each call.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		for _, ex := range extractors {
			if ex != nil {
				c.extractors = append(c.extractors, ex)
			}
		}
	}
}

// WithEnvironment tags records with service and env. Development logs text
// at debug level, every other environment JSON at info. A level set with
// WithLevel or WithLevelName is kept regardless of option order.
func WithEnvironment(env environment.Environment, service string) Option {
	return func(c *config) {
		c.format, c.level = FormatJSON, pick(c, slog.LevelInfo)
		if env == environment.Development {
			c.format, c.level = FormatText, pick(c, slog.LevelDebug)
		}
		if service != "" {
			c.attrs = append(c.attrs, slog.String("service", service))
		}
		c.attrs = append(c.attrs, slog.String("env", string(env)))
	}
}

func pick(c *config, l slog.Level) slog.Level {
	if c.levelPinned {
		return c.level
	}
	return l
}

// New builds a logger writing JSON at info level to stdout unless options
// say otherwise.
func New(opts ...Option) *slog.Logger {
	cfg := &config{level: slog.LevelInfo, format: FormatJSON, output: os.Stdout}
	for _, opt := range opts {
		opt(cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level}
	var h slog.Handler = slog.NewJSONHandler(cfg.output, hopts)
	if cfg.format == FormatText {
		h = slog.NewTextHandler(cfg.output, hopts)
	}
	if len(cfg.attrs) > 0 {
		h = h.WithAttrs(cfg.attrs)
	}
	return slog.New(withExtractors(h, cfg.extractors))
}

func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// Noop discards everything.
func Noop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
