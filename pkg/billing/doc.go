// Package billing implements the billing pass: it charges every subscription
// whose billing date has arrived and records the outcome atomically with any
// status change.
//
// Per candidate:
//
//   - success: NextBillingDate advances one cycle, failure counters reset, a
//     success BillingRecord is written, and history gets an entry only when the
//     status changes (TrialActive or PastDue back to Active).
//   - decline: FailedPaymentAttempts increments and a failure record is written;
//     reaching the threshold fires payment_failed, moving Active to PastDue once.
//   - gateway fault: a transient failure record is written and TransientFailures
//     increments. Declines counters and status are untouched, and no user
//     notification is sent.
//
// Every attempt is stamped with the start of the pass that made it, so the
// retry interval is measured in scheduler cycles.
//
// One candidate's error never stops the others. Receipts and failure alerts are
// sent asynchronously; Wait drains them on shutdown.
//
// Refunds issues full or partial refunds against successful records, one
// refund per record at a time.
package billing
