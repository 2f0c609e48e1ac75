package statemachine

import "context"

// State and Event are identified by name; any string type can implement them.
type State interface{ Name() string }

type Event interface{ Name() string }

// Guard decides at fire time whether a rule applies. data is whatever the
// caller passed to Fire.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Rule moves From to To when Event fires and every guard passes.
type Rule struct {
	From   State
	To     State
	Event  Event
	Guards []Guard
}
