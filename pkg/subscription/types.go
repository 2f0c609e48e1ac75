package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the current state of a subscription.
type SubscriptionStatus string

const (
	StatusPending     SubscriptionStatus = "pending"
	StatusTrialActive SubscriptionStatus = "trial_active"
	StatusActive      SubscriptionStatus = "active"
	StatusPastDue     SubscriptionStatus = "past_due"
	StatusPaused      SubscriptionStatus = "paused"
	StatusCancelled   SubscriptionStatus = "cancelled"
	StatusExpired     SubscriptionStatus = "expired"
)

// Name implements statemachine.State.
func (s SubscriptionStatus) Name() string { return string(s) }

// Valid reports whether s is one of the defined statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTrialActive, StatusActive, StatusPastDue,
		StatusPaused, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no transition out of s is permitted.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`   // Amount in smallest currency unit (cents for USD)
	Currency string `yaml:"currency"` // ISO 4217 currency code
}

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {},
	"XOF": {}, "XPF": {},
}

// Exponent returns the number of minor-unit digits for the currency.
func (m Money) Exponent() int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(m.Currency)]; ok {
		return 0
	}
	return 2
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -m.Exponent())
}

// String formats the amount for receipts, e.g. "10.99 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(m.Exponent()), strings.ToUpper(m.Currency))
}

// IsPositive reports whether the amount can be charged.
func (m Money) IsPositive() bool {
	return m.Amount > 0 && len(m.Currency) == 3
}

// MoneyFromDecimal converts a major-unit amount into Money, rounding half away from zero.
func MoneyFromDecimal(amount decimal.Decimal, currency string) Money {
	m := Money{Currency: strings.ToUpper(currency)}
	m.Amount = amount.Shift(m.Exponent()).Round(0).IntPart()
	return m
}

// BillingInterval represents the billing frequency for a subscription plan.
type BillingInterval string

const (
	BillingIntervalWeekly    BillingInterval = "weekly"
	BillingIntervalMonthly   BillingInterval = "monthly"
	BillingIntervalQuarterly BillingInterval = "quarterly"
	BillingIntervalAnnual    BillingInterval = "annual"
)

// Valid reports whether the interval is known.
func (i BillingInterval) Valid() bool {
	switch i {
	case BillingIntervalWeekly, BillingIntervalMonthly, BillingIntervalQuarterly, BillingIntervalAnnual:
		return true
	}
	return false
}

// months returns the cycle length in calendar months, or 0 for week-based intervals.
func (i BillingInterval) months() int {
	switch i {
	case BillingIntervalMonthly:
		return 1
	case BillingIntervalQuarterly:
		return 3
	case BillingIntervalAnnual:
		return 12
	}
	return 0
}

// Next advances current by one billing cycle.
// Month-based cycles keep the anchor's day of month, clamped to the last day of
// shorter months, so a subscription anchored on Jan 31 bills Feb 28 and then Mar 31.
// The result is always strictly after current.
func (i BillingInterval) Next(anchor, current time.Time) time.Time {
	if i == BillingIntervalWeekly {
		return current.AddDate(0, 0, 7)
	}

	months := i.months()
	if months == 0 {
		months = 1
	}
	if anchor.IsZero() {
		anchor = current
	}

	y, m, _ := current.Date()
	target := time.Date(y, m+time.Month(months), 1,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(), current.Location())

	day := anchor.Day()
	if last := daysIn(target.Year(), target.Month(), target.Location()); day > last {
		day = last
	}
	next := time.Date(target.Year(), target.Month(), day,
		target.Hour(), target.Minute(), target.Second(), target.Nanosecond(), target.Location())

	if !next.After(current) {
		return current.AddDate(0, months, 0)
	}
	return next
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
