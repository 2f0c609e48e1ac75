package httpserver

import (
	"fmt"
	"log/slog"
	"time"
)

// Option configures a Server. Invalid arguments panic at construction time.
type Option func(*config)

// Hook is called with the server's logger on start or stop.
type Hook func(*slog.Logger)

func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty listen address")
	}
	return func(c *config) { c.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	mustBePositive("read timeout", d)
	return func(c *config) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	mustBePositive("write timeout", d)
	return func(c *config) { c.writeTimeout = d }
}

// WithIdleTimeout limits how long a keep-alive connection may wait for the next request.
func WithIdleTimeout(d time.Duration) Option {
	mustBePositive("idle timeout", d)
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds the drain of in-flight requests once Run's context is done.
func WithShutdownTimeout(d time.Duration) Option {
	mustBePositive("shutdown timeout", d)
	return func(c *config) { c.shutdownTimeout = d }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithStartHook(h Hook) Option {
	mustHaveHook(h)
	return func(c *config) { c.startHooks = append(c.startHooks, h) }
}

func WithStopHook(h Hook) Option {
	mustHaveHook(h)
	return func(c *config) { c.stopHooks = append(c.stopHooks, h) }
}

func mustBePositive(name string, d time.Duration) {
	if d <= 0 {
		panic(fmt.Sprintf("httpserver: %s must be positive, got %s", name, d))
	}
}

func mustHaveHook(h Hook) {
	if h == nil {
		panic("httpserver: nil hook")
	}
}
