// Package statemachine provides an immutable, guard-driven transition table
// for modelling finite state machines over records that live elsewhere
// (a database row, a cache entry).
//
// A Table holds no current state. Callers pass the state they loaded together
// with the event, and the table answers with the first transition whose guards
// pass. Actions attached to a transition run on Fire; any action error aborts
// the transition and the caller keeps its original state.
//
// Rich error types with helper predicates (IsNoTransitionAvailableError,
// IsTransitionRejectedError) let callers tell "transition not defined" apart
// from "guard rejected".
//
// # Usage
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition(
//			statemachine.StringState("draft"),
//			statemachine.StringState("published"),
//			statemachine.StringEvent("publish"),
//			statemachine.WithGuard(isReviewed),
//		),
//	)
//
//	next, err := table.Fire(ctx, statemachine.StringState(doc.State), statemachine.StringEvent("publish"), doc)
//	if statemachine.IsTransitionRejectedError(err) {
//		// not reviewed yet
//	}
package statemachine
