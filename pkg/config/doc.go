// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct-tag parsing and
// github.com/joho/godotenv for dotenv files. The process environment is
// snapshotted per call and merged with dotenv values without mutating the
// process environment, and results are returned by value rather than cached,
// so every component receives its configuration explicitly.
//
//	type Config struct {
//		BillingInterval time.Duration `env:"BILLING_INTERVAL" envDefault:"1h"`
//		Threshold       int           `env:"BILLING_FAILED_PAYMENT_THRESHOLD" envDefault:"3"`
//		DatabaseURL     string        `env:"PG_CONN_URL,required"`
//	}
//
//	cfg, err := config.Load[Config]()
//	cfg := config.MustLoad[Config](config.WithEnvFiles("deploy/.env.local"))
//
// Tests can bypass the process environment entirely with WithEnviron.
package config
