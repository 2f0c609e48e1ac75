// Package subscription defines the recurring-billing domain: subscriptions,
// their status machine, billing and status-history records, the plan catalog,
// and the collaborator contracts (Repository, PaymentGateway, Notifier, Locker)
// used by the billing and lifecycle passes.
//
// # Statuses
//
// A subscription is always in exactly one SubscriptionStatus:
//
//	pending -> trial_active -> active <-> past_due
//	                 |           |  \
//	                 v           v   paused
//	              expired     expired / cancelled
//
// Cancelled and Expired are terminal: the Machine rejects every event fired
// from them. All status changes go through Machine.Apply, which returns the
// StatusChange to append to history, or nil for a self-transition such as a
// renewal of an already active subscription.
//
//	m := subscription.NewMachine()
//	change, err := m.Apply(ctx, sub, subscription.EventPaymentFailed, subscription.ReasonFailureThreshold, now)
//	if subscription.IsInconsistency(err) {
//	    // stale read or illegal move; sub is unchanged
//	}
//
// # Money
//
// Money stores integer minor units. Decimal and String use shopspring/decimal
// for display and conversions; arithmetic on charges stays in int64.
//
// # Billing cycles
//
// BillingInterval.Next advances a billing date by one cycle while keeping the
// anchor's day of month:
//
//	subscription.BillingIntervalMonthly.Next(jan31, jan31) // Feb 28
//	subscription.BillingIntervalMonthly.Next(jan31, feb28) // Mar 31
//
// # Plans
//
// Plans are loaded through a PlansSource (StaticPlans or FilePlansSource for
// YAML files) into a validated Catalog.
//
// # Persistence contract
//
// Repository.SaveBilling and SaveTransition are atomic per subscription and use
// Version for optimistic concurrency. Implementations live in
// pkg/store/pgstore and pkg/store/memstore.
package subscription
