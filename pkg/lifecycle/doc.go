// Package lifecycle expires subscriptions whose validity window has elapsed and
// applies user or admin driven status changes.
//
// The Pass is a pure status sweep. It never talks to the payment gateway:
//
//   - Active subscriptions still due ExpiryGrace after their billing date move
//     to Expired with reason "billing date elapsed".
//   - TrialActive subscriptions past TrialEndDate move to Expired with reason
//     "trial ended".
//
// Every change is validated by subscription.Machine and stored together with
// its history entry. A candidate that fails is logged and skipped; the rest of
// the sweep continues.
//
// Manager covers the transitions owned by users and administrators (cancel,
// pause, resume) and maps verified gateway webhook events onto them, so every
// status change in the system goes through the same choke point.
package lifecycle
