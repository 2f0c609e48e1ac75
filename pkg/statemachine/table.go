package statemachine

import (
	"context"
	"fmt"
)

// Table holds the legal moves between states. It keeps no current state,
// so one table serves every entity of a kind. A built table is read-only
// and safe for concurrent use.
type Table struct {
	rules    map[string]map[string][]Rule
	terminal map[string]bool
}

// Option configures a Table while it is built.
type Option func(*Table) error

// New builds a table. Options apply in order.
func New(opts ...Option) (*Table, error) {
	t := &Table{
		rules:    make(map[string]map[string][]Rule),
		terminal: make(map[string]bool),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// WithTerminal marks states that accept no events.
func WithTerminal(states ...State) Option {
	return func(t *Table) error {
		for _, s := range states {
			if s == nil {
				return ErrInvalidRule
			}
			if len(t.rules[s.Name()]) > 0 {
				return fmt.Errorf("%w: %s already has outgoing rules", ErrTerminalState, s.Name())
			}
			t.terminal[s.Name()] = true
		}
		return nil
	}
}

// WithRules registers rules. Several rules may share a from/event pair;
// the first one whose guards pass wins.
func WithRules(rules ...Rule) Option {
	return func(t *Table) error {
		for i, r := range rules {
			if r.From == nil || r.To == nil || r.Event == nil {
				return fmt.Errorf("rule %d: %w", i, ErrInvalidRule)
			}
			from := r.From.Name()
			if t.terminal[from] {
				return fmt.Errorf("rule %d: %w: %s", i, ErrTerminalState, from)
			}
			if t.rules[from] == nil {
				t.rules[from] = make(map[string][]Rule)
			}
			t.rules[from][r.Event.Name()] = append(t.rules[from][r.Event.Name()], r)
		}
		return nil
	}
}

// Fire returns the state event leads to from the given state. On error the
// returned state is from.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return from, ErrInvalidRule
	}

	fail := func(err error) (State, error) {
		return from, &TransitionError{From: from.Name(), Event: event.Name(), Err: err}
	}

	if t.terminal[from.Name()] {
		return fail(ErrTerminalState)
	}
	candidates := t.rules[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return fail(ErrNoTransition)
	}
	for _, r := range candidates {
		if allow(ctx, r, data) {
			return r.To, nil
		}
	}
	return fail(ErrGuardRejected)
}

func (t *Table) Can(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Fire(ctx, from, event, data)
	return err == nil
}

// Events lists the events that have at least one rule out of from.
func (t *Table) Events(from State) []Event {
	if from == nil {
		return nil
	}
	var out []Event
	for _, rs := range t.rules[from.Name()] {
		out = append(out, rs[0].Event)
	}
	return out
}

func (t *Table) IsTerminal(s State) bool {
	return s != nil && t.terminal[s.Name()]
}

func allow(ctx context.Context, r Rule, data any) bool {
	for _, g := range r.Guards {
		if !g(ctx, r.From, r.Event, data) {
			return false
		}
	}
	return true
}
