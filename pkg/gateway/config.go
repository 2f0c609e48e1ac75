package gateway

import "time"

// PaddleConfig holds configuration for the Paddle payment gateway.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"sandbox"`
}

// BreakerConfig configures the circuit breaker around gateway calls.
type BreakerConfig struct {
	// MaxRequests is the number of probe calls allowed while half-open.
	MaxRequests uint32 `env:"GATEWAY_BREAKER_MAX_REQUESTS" envDefault:"3"`

	// Interval is the cyclic period of the closed state after which counts reset.
	Interval time.Duration `env:"GATEWAY_BREAKER_INTERVAL" envDefault:"1m"`

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration `env:"GATEWAY_BREAKER_TIMEOUT" envDefault:"30s"`

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32 `env:"GATEWAY_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
}

// DefaultBreakerConfig returns the defaults used when no environment is loaded.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}
