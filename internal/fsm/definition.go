package fsm

import (
	"errors"
	"fmt"

	"github.com/librescoot/typewriter/clock"
)

// Definition holds the FSM structure before building a Machine
type Definition struct {
	states      map[StateID]*State
	transitions []Transition
	initial     StateID
}

// NewDefinition creates a new FSM definition builder
func NewDefinition() *Definition {
	return &Definition{
		states:      make(map[StateID]*State),
		transitions: make([]Transition, 0),
	}
}

// State adds a normal state to the definition
func (d *Definition) State(id StateID, opts ...StateOption) *Definition {
	return d.addState(&State{ID: id, Type: StateNormal}, opts)
}

// ConditionState adds a condition pseudo-state that evaluates immediately on entry.
// The entry action, if any, runs before the condition.
func (d *Definition) ConditionState(id StateID, cond func(*Context) StateID, opts ...StateOption) *Definition {
	return d.addState(&State{ID: id, Type: StateCondition, Condition: cond}, opts)
}

// FinalState adds a terminal state with no outgoing transitions
func (d *Definition) FinalState(id StateID, opts ...StateOption) *Definition {
	return d.addState(&State{ID: id, Type: StateFinal}, opts)
}

func (d *Definition) addState(s *State, opts []StateOption) *Definition {
	for _, opt := range opts {
		opt(s)
	}
	d.states[s.ID] = s
	return d
}

// Transition adds a transition rule
func (d *Definition) Transition(from StateID, event EventID, to StateID, opts ...TransitionOption) *Definition {
	t := Transition{
		From:  from,
		Event: event,
		To:    to,
	}
	for _, opt := range opts {
		opt(&t)
	}
	d.transitions = append(d.transitions, t)
	return d
}

// Internal adds a transition that runs its action without leaving the state.
// State-scoped timers and entry/exit actions are untouched.
func (d *Definition) Internal(from StateID, event EventID, opts ...TransitionOption) *Definition {
	t := Transition{
		From:     from,
		Event:    event,
		Internal: true,
	}
	for _, opt := range opts {
		opt(&t)
	}
	d.transitions = append(d.transitions, t)
	return d
}

// AnyStateTransition adds a transition that can fire from any state
func (d *Definition) AnyStateTransition(event EventID, to StateID, opts ...TransitionOption) *Definition {
	return d.Transition(WildcardState, event, to, opts...)
}

// Initial sets the initial state
func (d *Definition) Initial(id StateID) *Definition {
	d.initial = id
	return d
}

// Validate checks the definition for errors
func (d *Definition) Validate() error {
	if d.initial == "" {
		return errors.New("no initial state defined")
	}

	if _, ok := d.states[d.initial]; !ok {
		return fmt.Errorf("initial state %q not defined", d.initial)
	}

	for _, t := range d.transitions {
		if t.From != WildcardState {
			from, ok := d.states[t.From]
			if !ok {
				return fmt.Errorf("transition from undefined state %q", t.From)
			}
			if from.Type == StateFinal {
				return fmt.Errorf("transition %q leaves final state %q", t.Event, t.From)
			}
		}
		if t.Internal {
			if t.From == WildcardState {
				return fmt.Errorf("internal transition %q cannot use the wildcard state", t.Event)
			}
			continue
		}
		if _, ok := d.states[t.To]; !ok {
			return fmt.Errorf("transition to undefined state %q", t.To)
		}
	}

	for id, state := range d.states {
		if state.Type == StateCondition && state.Condition == nil {
			return fmt.Errorf("condition state %q has no condition function", id)
		}
		if state.Timeout > 0 && state.TimeoutEvent == "" {
			return fmt.Errorf("state %q has a timeout without an event", id)
		}
	}

	return nil
}

// Build creates a Machine from the definition
func (d *Definition) Build(opts ...MachineOption) (*Machine, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	m := &Machine{
		definition: d,
		timers:     make(map[string]*timerEntry),
		scheduler:  clock.Real(),
		logger:     Logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}
