package main

import (
	"time"

	"github.com/dmitrymomot/telebill/pkg/billing"
	"github.com/dmitrymomot/telebill/pkg/email"
	"github.com/dmitrymomot/telebill/pkg/environment"
	"github.com/dmitrymomot/telebill/pkg/gateway"
	"github.com/dmitrymomot/telebill/pkg/httpserver"
	"github.com/dmitrymomot/telebill/pkg/lifecycle"
	"github.com/dmitrymomot/telebill/pkg/pg"
	"github.com/dmitrymomot/telebill/pkg/redis"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Name     string `env:"APP_NAME" envDefault:"telebill"`
	LogLevel string `env:"LOG_LEVEL"` // empty keeps the environment default

	BillingInterval   time.Duration `env:"BILLING_INTERVAL" envDefault:"1h"`
	LifecycleInterval time.Duration `env:"LIFECYCLE_INTERVAL" envDefault:"6h"`
	LifecycleCron     string        `env:"LIFECYCLE_CRON"`
	SchedulerBackoff  time.Duration `env:"SCHEDULER_BACKOFF" envDefault:"5m"`

	LockEnabled bool          `env:"LOCK_ENABLED" envDefault:"false"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"2m"`

	PlansFile        string `env:"PLANS_FILE" envDefault:"config/plans.yaml"`
	ProductName      string `env:"PRODUCT_NAME" envDefault:"Telebill"`
	BillingPortalURL string `env:"BILLING_PORTAL_URL"`
	AdminToken       string `env:"ADMIN_TOKEN"`

	Billing   billing.Config
	Lifecycle lifecycle.Config
	PG        pg.Config
	Redis     redis.Config
	Paddle    gateway.PaddleConfig
	Breaker   gateway.BreakerConfig
	Email     email.Config
	HTTP      httpserver.Config
}

func (c Config) Environment() environment.Environment {
	return environment.Parse(c.Env)
}
