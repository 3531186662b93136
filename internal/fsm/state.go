package fsm

import "time"

// State defines a state in the machine
type State struct {
	ID   StateID
	Type StateType

	OnEnter func(ctx *Context) error
	OnExit  func(ctx *Context) error

	// For condition states: evaluated on entry to determine next state
	Condition func(ctx *Context) StateID

	// Declarative timeout: auto-started on entry, auto-cancelled on exit
	Timeout      time.Duration
	TimeoutEvent EventID

	// Declared timers (stopped on state exit even if started with global scope)
	DeclaredTimers []string
}

// StateOption is a functional option for configuring a State
type StateOption func(*State)

// WithOnEnter sets the entry action for the state
func WithOnEnter(fn func(*Context) error) StateOption {
	return func(s *State) {
		s.OnEnter = fn
	}
}

// WithOnExit sets the exit action for the state
func WithOnExit(fn func(*Context) error) StateOption {
	return func(s *State) {
		s.OnExit = fn
	}
}

// WithTimeout sets a declarative timeout that auto-starts on entry
func WithTimeout(duration time.Duration, event EventID) StateOption {
	return func(s *State) {
		s.Timeout = duration
		s.TimeoutEvent = event
	}
}

// WithTimer declares a named timer for auto-cleanup on state exit
func WithTimer(name string) StateOption {
	return func(s *State) {
		s.DeclaredTimers = append(s.DeclaredTimers, name)
	}
}

func timeoutTimerName(id StateID) string {
	return "_timeout_" + string(id)
}
