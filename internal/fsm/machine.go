package fsm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/librescoot/typewriter/clock"
)

// ErrAlreadyStarted is returned by Start on a machine that was started before.
var ErrAlreadyStarted = errors.New("machine already started")

// Machine is the runtime FSM instance.
//
// Events are processed run-to-completion: the goroutine that finds the
// machine idle dispatches every queued event, including events sent by
// handlers while it runs. Other goroutines only enqueue.
type Machine struct {
	definition *Definition

	stateMu      sync.RWMutex
	currentState StateID

	queueMu     sync.Mutex
	queue       []Event
	dispatching bool
	started     bool
	stopped     bool

	timers    map[string]*timerEntry
	timerMu   sync.Mutex
	timerSeq  uint64
	scheduler clock.Scheduler

	data                any
	logger              *slog.Logger
	stateChangeCallback func(from, to StateID)

	stopCtx func() bool
}

// MachineOption is a functional option for configuring a Machine
type MachineOption func(*Machine)

// WithLogger sets the logger for the machine
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithData sets the application data accessible via Context
func WithData(data any) MachineOption {
	return func(m *Machine) {
		m.data = data
	}
}

// WithScheduler sets the scheduler timers run on
func WithScheduler(s clock.Scheduler) MachineOption {
	return func(m *Machine) {
		m.scheduler = s
	}
}

// WithStateChangeCallback sets a callback invoked after each state change
func WithStateChangeCallback(fn func(from, to StateID)) MachineOption {
	return func(m *Machine) {
		m.stateChangeCallback = fn
	}
}

// Start enters the initial state and accepts events until Stop is called or
// ctx is done.
func (m *Machine) Start(ctx context.Context) error {
	m.queueMu.Lock()
	if m.started {
		m.queueMu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.dispatching = true
	m.queueMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		m.Stop()
	})
	m.queueMu.Lock()
	m.stopCtx = stop
	m.queueMu.Unlock()

	if err := m.enterState(m.definition.initial, nil, ""); err != nil {
		m.drain()
		return fmt.Errorf("failed to enter initial state: %w", err)
	}

	m.drain()
	return nil
}

// Stop cancels every timer and drops queued and future events.
// It is safe to call more than once and from inside handlers.
func (m *Machine) Stop() error {
	m.queueMu.Lock()
	already := m.stopped
	m.stopped = true
	m.queue = nil
	stopCtx := m.stopCtx
	m.queueMu.Unlock()

	if already {
		return nil
	}
	if stopCtx != nil {
		stopCtx()
	}
	m.StopAllTimers()
	m.logger.Debug("machine stopped", "state", m.CurrentState())
	return nil
}

// Stopped reports whether Stop has been called.
func (m *Machine) Stopped() bool {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return m.stopped
}

// Send queues an event. If no goroutine is dispatching, the caller
// processes the queue before Send returns.
func (m *Machine) Send(event Event) {
	m.queueMu.Lock()
	if m.stopped || !m.started {
		m.queueMu.Unlock()
		m.logger.Debug("machine not running, dropping event", "event", event.ID)
		return
	}
	m.queue = append(m.queue, event)
	if m.dispatching {
		m.queueMu.Unlock()
		return
	}
	m.dispatching = true
	m.queueMu.Unlock()

	m.drain()
}

func (m *Machine) drain() {
	for {
		m.queueMu.Lock()
		if len(m.queue) == 0 || m.stopped {
			m.queue = nil
			m.dispatching = false
			m.queueMu.Unlock()
			return
		}
		event := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		if err := m.processEvent(event); err != nil {
			m.logger.Warn("event processing failed", "event", event.ID, "error", err)
		}
	}
}

// CurrentState returns the current state
func (m *Machine) CurrentState() StateID {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.currentState
}

func (m *Machine) setCurrentState(id StateID) {
	m.stateMu.Lock()
	m.currentState = id
	m.stateMu.Unlock()
}

// processEvent handles a single event
func (m *Machine) processEvent(event Event) error {
	current := m.CurrentState()
	m.logger.Debug("processing event", "event", event.ID, "state", current)

	transitions := m.findAllTransitions(event, current)
	if len(transitions) == 0 {
		m.logger.Debug("no transition found", "event", event.ID, "state", current)
		return nil
	}

	ctx := m.makeContext(&event)
	for _, transition := range transitions {
		if transition.Guard == nil || transition.Guard(ctx) {
			return m.executeTransition(transition, &event)
		}
		m.logger.Debug("guard rejected transition", "event", event.ID, "from", transition.From, "to", transition.To)
	}

	m.logger.Debug("all guards rejected", "event", event.ID, "state", current)
	return nil
}

// findAllTransitions returns matching transitions in declaration order,
// current state first, then wildcards
func (m *Machine) findAllTransitions(event Event, current StateID) []*Transition {
	var matches []*Transition
	for i := range m.definition.transitions {
		t := &m.definition.transitions[i]
		if t.Event == event.ID && t.From == current {
			matches = append(matches, t)
		}
	}
	for i := range m.definition.transitions {
		t := &m.definition.transitions[i]
		if t.Event == event.ID && t.From == WildcardState {
			matches = append(matches, t)
		}
	}
	return matches
}

// executeTransition performs the state transition
func (m *Machine) executeTransition(t *Transition, event *Event) error {
	fromState := m.CurrentState()

	if t.Internal {
		if t.Action == nil {
			return nil
		}
		ctx := m.makeContext(event)
		ctx.FromState = fromState
		ctx.ToState = fromState
		if err := t.Action(ctx); err != nil {
			return fmt.Errorf("internal action failed in %q: %w", fromState, err)
		}
		return nil
	}

	m.logger.Debug("executing transition", "from", fromState, "to", t.To, "event", event.ID)

	if err := m.exitState(fromState); err != nil {
		return fmt.Errorf("exit failed: %w", err)
	}

	if t.Action != nil {
		ctx := m.makeContext(event)
		ctx.FromState = fromState
		ctx.ToState = t.To
		if err := t.Action(ctx); err != nil {
			return fmt.Errorf("transition action failed: %w", err)
		}
	}

	if err := m.enterState(t.To, event, fromState); err != nil {
		return fmt.Errorf("enter failed: %w", err)
	}

	if m.stateChangeCallback != nil {
		if to := m.CurrentState(); to != fromState {
			m.stateChangeCallback(fromState, to)
		}
	}

	return nil
}

// enterState enters a state and resolves condition states
func (m *Machine) enterState(id StateID, event *Event, fromState StateID) error {
	state := m.definition.states[id]
	if state == nil {
		return fmt.Errorf("state %q not found", id)
	}

	m.logger.Debug("entering state", "state", id, "type", state.Type)
	m.setCurrentState(id)

	if state.Timeout > 0 {
		m.startTimerInternal(timeoutTimerName(id), state.Timeout, Event{ID: state.TimeoutEvent}, TimerScopeState, id)
	}

	if state.OnEnter != nil {
		ctx := m.makeContext(event)
		ctx.FromState = fromState
		ctx.ToState = id
		if err := state.OnEnter(ctx); err != nil {
			return fmt.Errorf("entry action failed for %q: %w", id, err)
		}
	}

	if state.Type == StateCondition {
		next := state.Condition(m.makeContext(event))
		if next == "" {
			return nil
		}
		if err := m.exitState(id); err != nil {
			return err
		}
		return m.enterState(next, event, id)
	}

	return nil
}

// exitState exits a state
func (m *Machine) exitState(id StateID) error {
	state := m.definition.states[id]
	if state == nil {
		return nil
	}

	m.logger.Debug("exiting state", "state", id)

	m.cleanupTimersForState(id)
	for _, timerName := range state.DeclaredTimers {
		m.StopTimer(timerName)
	}

	if state.OnExit != nil {
		ctx := m.makeContext(nil)
		ctx.FromState = id
		if err := state.OnExit(ctx); err != nil {
			return fmt.Errorf("exit action failed for %q: %w", id, err)
		}
	}

	return nil
}

// makeContext creates a context for callbacks
func (m *Machine) makeContext(event *Event) *Context {
	return &Context{
		FSM:    m,
		Event:  event,
		Data:   m.data,
		Logger: m.logger,
	}
}
