// Package statemachine is a transition table for entities that own their
// current state. The table answers one question: given a state and an event,
// which state comes next?
//
//	table := statemachine.MustNew(
//		statemachine.WithTerminal(Cancelled),
//		statemachine.WithRules(
//			statemachine.Rule{From: Active, To: PastDue, Event: PaymentFailed},
//			statemachine.Rule{From: Active, To: Cancelled, Event: Cancel},
//		),
//	)
//
//	next, err := table.Fire(ctx, sub.Status, PaymentFailed, sub)
//	if statemachine.IsIllegal(err) {
//		// errors.Is(err, statemachine.ErrTerminalState) and friends tell why
//	}
package statemachine
