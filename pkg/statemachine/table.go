package statemachine

import (
	"context"
	"fmt"
)

// Table is an immutable transition table. It holds no current state, so a
// single Table can evaluate transitions for any number of records concurrently.
// Lookups use map[FromState][Event][]Transition.
type Table struct {
	transitions map[string]map[string][]Transition
}

func newTable() *Table {
	return &Table{transitions: make(map[string]map[string][]Transition)}
}

func (t *Table) add(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	byEvent, ok := t.transitions[from.Name()]
	if !ok {
		byEvent = make(map[string][]Transition)
		t.transitions[from.Name()] = byEvent
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	byEvent[event.Name()] = append(byEvent[event.Name()], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Next returns the first transition from the given state whose guards pass.
func (t *Table) Next(ctx context.Context, from State, event Event, data any) (Transition, error) {
	if from == nil {
		return Transition{}, ErrInvalidState
	}
	if event == nil {
		return Transition{}, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return Transition{}, NewErrNoTransitionAvailable(from.Name(), event.Name())
	}

	// First transition with passing guards wins (enables priority ordering)
	for _, tr := range candidates {
		if tr.allowed(ctx, from, event, data) {
			return tr, nil
		}
	}
	return Transition{}, NewErrTransitionRejected(from.Name(), event.Name())
}

// Fire resolves the transition and runs its actions in order.
// It returns the target state; any action failure aborts with the from state.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	tr, err := t.Next(ctx, from, event, data)
	if err != nil {
		return from, err
	}
	for _, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return from, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// CanFire reports whether any transition from the state would be allowed.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Next(ctx, from, event, data)
	return err == nil
}

// Events lists the event names that have at least one transition out of from.
func (t *Table) Events(from State) []string {
	if from == nil {
		return nil
	}
	byEvent := t.transitions[from.Name()]
	names := make([]string, 0, len(byEvent))
	for name := range byEvent {
		names = append(names, name)
	}
	return names
}
