// Package locker provides subscription.Locker implementations.
//
// Redis issues one redsync mutex per key with a single acquisition attempt:
// when another scheduler instance already holds the key, Lock returns
// subscription.ErrLockNotAcquired and the caller skips that subscription for
// the current cycle. Noop grants every lock and is used when a single
// instance runs.
package locker
