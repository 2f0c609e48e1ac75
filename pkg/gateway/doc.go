// Package gateway connects the billing core to the payment provider.
//
// Paddle implements subscription.PaymentGateway on top of the Paddle Billing
// API. Paddle owns renewal: plans are provisioned as recurring prices and the
// gateway-side subscription is collected automatically every period. Capture
// looks up the renewal transaction for the requested period instead of
// creating a charge. A completed renewal is a successful capture, a past-due
// or canceled one is a decline, and a renewal that is not collected yet fails
// with ErrRenewalPending. Transport and server failures are returned as
// errors wrapping subscription.ErrGatewayUnavailable.
//
// ParseWebhook verifies the Paddle-Signature header and normalizes the event
// into a subscription.GatewayEvent.
//
// Breaker wraps any PaymentGateway in a circuit breaker. Declines and
// rejected requests count as successful calls, so only outages open it.
//
//	gw, err := gateway.NewPaddle(cfg)
//	if err != nil {
//		return err
//	}
//	protected := gateway.NewBreaker(gw, gateway.DefaultBreakerConfig(), log)
package gateway
