package billing

import "time"

// Config holds billing pass settings.
type Config struct {
	FailureThreshold int           `env:"BILLING_FAILED_PAYMENT_THRESHOLD" envDefault:"3"`
	RetryInterval    time.Duration `env:"BILLING_RETRY_INTERVAL" envDefault:"1h"`
	BatchSize        int           `env:"BILLING_BATCH_SIZE" envDefault:"500"`
	Concurrency      int           `env:"BILLING_CONCURRENCY" envDefault:"1"`
	NotifyTimeout    time.Duration `env:"BILLING_NOTIFY_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the settings used when no options are supplied.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		RetryInterval:    time.Hour,
		BatchSize:        500,
		Concurrency:      1,
		NotifyTimeout:    30 * time.Second,
	}
}
