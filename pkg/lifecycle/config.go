package lifecycle

import "time"

// Config holds lifecycle pass settings.
type Config struct {
	// ExpiryGrace is how long an Active subscription may stay past its billing
	// date, while the billing pass retries, before it is expired.
	ExpiryGrace time.Duration `env:"LIFECYCLE_EXPIRY_GRACE" envDefault:"72h"`
	BatchSize   int           `env:"LIFECYCLE_BATCH_SIZE" envDefault:"500"`
}

// DefaultConfig returns the settings used when no options are supplied.
func DefaultConfig() Config {
	return Config{
		ExpiryGrace: 72 * time.Hour,
		BatchSize:   500,
	}
}
