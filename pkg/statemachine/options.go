package statemachine

import (
	"fmt"
)

// Option configures a transition table during construction.
type Option func(*Table) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption func(*transitionConfig)

// TransitionDef defines a transition between states.
type TransitionDef struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

type transitionConfig struct {
	guards  []Guard
	actions []Action
}

// New creates a transition table from the given options.
func New(opts ...Option) (*Table, error) {
	t := newTable()
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on a misconfigured table.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

// WithTransition adds a single transition.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		cfg := &transitionConfig{}
		for _, opt := range opts {
			opt(cfg)
		}
		return t.add(from, to, event, cfg.guards, cfg.actions)
	}
}

// WithTransitions adds multiple transitions at once.
func WithTransitions(defs []TransitionDef) Option {
	return func(t *Table) error {
		for i, d := range defs {
			if err := t.add(d.From, d.To, d.Event, d.Guards, d.Actions); err != nil {
				return fmt.Errorf("failed to add transition[%d] %s->%s on %s: %w",
					i, nameOf(d.From), nameOf(d.To), nameOf(d.Event), err)
			}
		}
		return nil
	}
}

// WithGuard adds a single guard to a transition.
func WithGuard(guard Guard) TransitionOption {
	return func(cfg *transitionConfig) {
		if guard != nil {
			cfg.guards = append(cfg.guards, guard)
		}
	}
}

// WithAction adds a single action to a transition.
func WithAction(action Action) TransitionOption {
	return func(cfg *transitionConfig) {
		if action != nil {
			cfg.actions = append(cfg.actions, action)
		}
	}
}

func nameOf(n interface{ Name() string }) string {
	if n == nil {
		return "<nil>"
	}
	return n.Name()
}
