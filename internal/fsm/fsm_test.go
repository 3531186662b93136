package fsm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/librescoot/typewriter/clock"
)

// Test states
const (
	stateA     StateID = "a"
	stateB     StateID = "b"
	stateC     StateID = "c"
	stateCond  StateID = "condition"
	stateFinal StateID = "final"
)

// Test events
const (
	evGo      EventID = "go"
	evBack    EventID = "back"
	evNext    EventID = "next"
	evTimeout EventID = "timeout"
	evTick    EventID = "tick"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func startMachine(t *testing.T, def *Definition, opts ...MachineOption) *Machine {
	t.Helper()
	m, err := def.Build(append([]MachineOption{quiet}, opts...)...)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { m.Stop() })
	return m
}

func TestBasicTransition(t *testing.T) {
	def := NewDefinition().
		State(stateA).
		State(stateB).
		Transition(stateA, evGo, stateB).
		Transition(stateB, evBack, stateA).
		Initial(stateA)

	m := startMachine(t, def)

	if m.CurrentState() != stateA {
		t.Errorf("expected state %s, got %s", stateA, m.CurrentState())
	}

	m.Send(Event{ID: evGo})
	if m.CurrentState() != stateB {
		t.Errorf("expected state %s, got %s", stateB, m.CurrentState())
	}

	m.Send(Event{ID: evBack})
	if m.CurrentState() != stateA {
		t.Errorf("expected state %s, got %s", stateA, m.CurrentState())
	}
}

func TestEntryExitActions(t *testing.T) {
	var entryCount, exitCount int32

	def := NewDefinition().
		State(stateA,
			WithOnEnter(func(c *Context) error {
				atomic.AddInt32(&entryCount, 1)
				return nil
			}),
			WithOnExit(func(c *Context) error {
				atomic.AddInt32(&exitCount, 1)
				return nil
			}),
		).
		State(stateB).
		Transition(stateA, evGo, stateB).
		Initial(stateA)

	m := startMachine(t, def)

	if atomic.LoadInt32(&entryCount) != 1 {
		t.Errorf("expected entry count 1, got %d", entryCount)
	}

	m.Send(Event{ID: evGo})

	if atomic.LoadInt32(&exitCount) != 1 {
		t.Errorf("expected exit count 1, got %d", exitCount)
	}
}

func TestGuardsTriedInOrder(t *testing.T) {
	var allowed bool

	def := NewDefinition().
		State(stateA).
		State(stateB).
		State(stateC).
		Transition(stateA, evGo, stateB,
			WithGuard(func(c *Context) bool {
				return allowed
			}),
		).
		Transition(stateA, evGo, stateC,
			WithGuards(
				func(c *Context) bool { return !allowed },
				func(c *Context) bool { return c.Event.Payload == "fallback" },
			),
		).
		Initial(stateA)

	m := startMachine(t, def)

	m.Send(Event{ID: evGo})
	if m.CurrentState() != stateA {
		t.Errorf("all guards should have rejected, got %s", m.CurrentState())
	}

	m.Send(Event{ID: evGo, Payload: "fallback"})
	if m.CurrentState() != stateC {
		t.Errorf("second guard should have allowed transition, got %s", m.CurrentState())
	}
}

func TestInternalTransitionKeepsState(t *testing.T) {
	var entries, ticks int

	def := NewDefinition().
		State(stateA,
			WithOnEnter(func(c *Context) error {
				entries++
				c.StartTimer("keep", time.Second, Event{ID: evTimeout})
				return nil
			}),
		).
		State(stateB).
		Internal(stateA, evTick, WithAction(func(c *Context) error {
			ticks++
			return nil
		})).
		Transition(stateA, evTimeout, stateB).
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clock.NewManual()))

	m.Send(Event{ID: evTick})
	m.Send(Event{ID: evTick})

	if entries != 1 {
		t.Errorf("internal transition re-entered the state: %d entries", entries)
	}
	if ticks != 2 {
		t.Errorf("expected 2 ticks, got %d", ticks)
	}
	if !m.TimerActive("keep") {
		t.Error("state-scoped timer should survive internal transitions")
	}
}

func TestTransitionAction(t *testing.T) {
	var from, to StateID

	def := NewDefinition().
		State(stateA).
		State(stateB).
		Transition(stateA, evGo, stateB,
			WithAction(func(c *Context) error {
				from, to = c.FromState, c.ToState
				return nil
			}),
		).
		Initial(stateA)

	m := startMachine(t, def)
	m.Send(Event{ID: evGo})

	if from != stateA || to != stateB {
		t.Errorf("action saw %s -> %s", from, to)
	}
}

func TestConditionState(t *testing.T) {
	var useB bool
	var entered bool

	def := NewDefinition().
		State(stateA).
		ConditionState(stateCond, func(c *Context) StateID {
			if useB {
				return stateB
			}
			return stateC
		}, WithOnEnter(func(c *Context) error {
			entered = true
			return nil
		})).
		State(stateB).
		State(stateC).
		Transition(stateA, evGo, stateCond).
		Initial(stateA)

	useB = true
	m := startMachine(t, def)
	m.Send(Event{ID: evGo})

	if !entered {
		t.Error("condition entry action should have run")
	}
	if m.CurrentState() != stateB {
		t.Errorf("expected state %s, got %s", stateB, m.CurrentState())
	}
}

func TestDeclarativeTimeout(t *testing.T) {
	clk := clock.NewManual()
	def := NewDefinition().
		State(stateA,
			WithTimeout(50*time.Millisecond, evTimeout),
		).
		State(stateB).
		Transition(stateA, evTimeout, stateB).
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clk))

	clk.Advance(49 * time.Millisecond)
	if m.CurrentState() != stateA {
		t.Errorf("timeout fired early, state %s", m.CurrentState())
	}

	clk.Advance(time.Millisecond)
	if m.CurrentState() != stateB {
		t.Errorf("expected state %s after timeout, got %s", stateB, m.CurrentState())
	}
}

func TestImperativeTimer(t *testing.T) {
	clk := clock.NewManual()
	def := NewDefinition().
		State(stateA,
			WithOnEnter(func(c *Context) error {
				c.StartTimer("test", 50*time.Millisecond, Event{ID: evTimeout})
				return nil
			}),
		).
		State(stateB).
		Transition(stateA, evTimeout, stateB).
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clk))

	if !m.TimerActive("test") {
		t.Error("timer should be active")
	}

	clk.Advance(100 * time.Millisecond)

	if m.CurrentState() != stateB {
		t.Errorf("expected state %s after timer, got %s", stateB, m.CurrentState())
	}
	if m.TimerActive("test") {
		t.Error("timer should not be active after firing")
	}
}

func TestTimerCancelOnStateExit(t *testing.T) {
	clk := clock.NewManual()
	def := NewDefinition().
		State(stateA,
			WithOnEnter(func(c *Context) error {
				c.StartTimer("test", 200*time.Millisecond, Event{ID: evTimeout})
				return nil
			}),
		).
		State(stateB).
		State(stateC).
		Transition(stateA, evGo, stateB).
		Transition(stateA, evTimeout, stateC). // Should never fire
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clk))

	m.Send(Event{ID: evGo})
	if m.TimerActive("test") {
		t.Error("state-scoped timer should be cancelled on exit")
	}

	clk.Advance(time.Second)
	if m.CurrentState() != stateB {
		t.Errorf("expected state %s, got %s", stateB, m.CurrentState())
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", clk.Pending())
	}
}

func TestGlobalTimerSurvivesStateExit(t *testing.T) {
	clk := clock.NewManual()
	def := NewDefinition().
		State(stateA,
			WithOnEnter(func(c *Context) error {
				c.StartTimerGlobal("global", 100*time.Millisecond, Event{ID: evNext})
				return nil
			}),
		).
		State(stateB).
		State(stateC).
		Transition(stateA, evGo, stateB).
		Transition(stateB, evNext, stateC).
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clk))
	m.Send(Event{ID: evGo})

	clk.Advance(100 * time.Millisecond)
	if m.CurrentState() != stateC {
		t.Errorf("expected state %s, got %s", stateC, m.CurrentState())
	}
}

func TestRunToCompletion(t *testing.T) {
	var order []string

	def := NewDefinition().
		State(stateA).
		State(stateB,
			WithOnEnter(func(c *Context) error {
				c.Send(Event{ID: evNext})
				order = append(order, "enter b")
				return nil
			}),
		).
		State(stateC,
			WithOnEnter(func(c *Context) error {
				order = append(order, "enter c")
				return nil
			}),
		).
		Transition(stateA, evGo, stateB).
		Transition(stateB, evNext, stateC).
		Initial(stateA)

	m := startMachine(t, def)
	m.Send(Event{ID: evGo})

	if len(order) != 2 || order[0] != "enter b" || order[1] != "enter c" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestStopDropsEventsAndTimers(t *testing.T) {
	clk := clock.NewManual()
	def := NewDefinition().
		State(stateA, WithTimeout(10*time.Millisecond, evTimeout)).
		State(stateB).
		Transition(stateA, evTimeout, stateB).
		Transition(stateA, evGo, stateB).
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clk))
	m.Stop()

	m.Send(Event{ID: evGo})
	clk.Advance(time.Second)

	if m.CurrentState() != stateA {
		t.Errorf("stopped machine moved to %s", m.CurrentState())
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", clk.Pending())
	}
	if !m.Stopped() {
		t.Error("machine should report stopped")
	}
}

func TestContextCancelStops(t *testing.T) {
	def := NewDefinition().
		State(stateA).
		State(stateB).
		Transition(stateA, evGo, stateB).
		Initial(stateA)

	m, err := def.Build(quiet)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for !m.Stopped() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !m.Stopped() {
		t.Fatal("machine should stop when its context is cancelled")
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStateChangeCallback(t *testing.T) {
	var changes [][2]StateID

	def := NewDefinition().
		State(stateA).
		State(stateB).
		Transition(stateA, evGo, stateB).
		Internal(stateB, evTick).
		Initial(stateA)

	startMachine(t, def, WithStateChangeCallback(func(from, to StateID) {
		changes = append(changes, [2]StateID{from, to})
	})).Send(Event{ID: evGo})

	if len(changes) != 1 || changes[0] != [2]StateID{stateA, stateB} {
		t.Errorf("unexpected changes: %v", changes)
	}
}

func TestWildcardTransition(t *testing.T) {
	def := NewDefinition().
		State(stateA).
		State(stateB).
		FinalState(stateFinal).
		Transition(stateA, evGo, stateB).
		AnyStateTransition(evBack, stateFinal).
		Initial(stateA)

	m := startMachine(t, def)
	m.Send(Event{ID: evGo})
	m.Send(Event{ID: evBack})

	if m.CurrentState() != stateFinal {
		t.Errorf("expected state %s, got %s", stateFinal, m.CurrentState())
	}
}

func TestApplicationData(t *testing.T) {
	type app struct{ hits int }
	data := &app{}

	def := NewDefinition().
		State(stateA, WithOnEnter(func(c *Context) error {
			c.Data.(*app).hits++
			return nil
		})).
		Initial(stateA)

	startMachine(t, def, WithData(data))
	if data.hits != 1 {
		t.Errorf("expected 1 hit, got %d", data.hits)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
	}{
		{"no initial", NewDefinition().State(stateA)},
		{"undefined initial", NewDefinition().State(stateA).Initial(stateB)},
		{"undefined target", NewDefinition().State(stateA).Transition(stateA, evGo, stateB).Initial(stateA)},
		{"undefined source", NewDefinition().State(stateA).Transition(stateB, evGo, stateA).Initial(stateA)},
		{"condition without func", NewDefinition().ConditionState(stateA, nil).Initial(stateA)},
		{"leaves final", NewDefinition().FinalState(stateA).State(stateB).Transition(stateA, evGo, stateB).Initial(stateA)},
		{"wildcard internal", NewDefinition().State(stateA).Internal(WildcardState, evTick).Initial(stateA)},
		{"timeout without event", NewDefinition().State(stateA, WithTimeout(time.Second, "")).Initial(stateA)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.def.Build(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestActionErrorIsLogged(t *testing.T) {
	def := NewDefinition().
		State(stateA).
		State(stateB).
		Transition(stateA, evGo, stateB, WithAction(func(c *Context) error {
			return errors.New("boom")
		})).
		Initial(stateA)

	m := startMachine(t, def)
	m.Send(Event{ID: evGo})

	// The failed action aborts the transition after exiting a.
	if m.CurrentState() != stateA {
		t.Errorf("expected state %s, got %s", stateA, m.CurrentState())
	}
}

func TestEventPayload(t *testing.T) {
	var got any

	def := NewDefinition().
		State(stateA).
		State(stateB, WithOnEnter(func(c *Context) error {
			got = c.Event.Payload
			return nil
		})).
		Transition(stateA, evGo, stateB).
		Initial(stateA)

	startMachine(t, def).Send(Event{ID: evGo, Payload: 42})

	if got != 42 {
		t.Errorf("expected payload 42, got %v", got)
	}
}

func TestDeclaredAndExternalTimers(t *testing.T) {
	clk := clock.NewManual()
	var stillActive bool

	def := NewDefinition().
		State(stateA,
			WithTimer("declared"),
			WithOnEnter(func(c *Context) error {
				c.StartTimerGlobal("declared", time.Second, Event{ID: evTimeout})
				c.StartTimerGlobal("scratch", time.Second, Event{ID: evTimeout})
				return nil
			}),
		).
		State(stateB, WithOnEnter(func(c *Context) error {
			stillActive = c.TimerActive("scratch")
			c.StopTimer("scratch")
			return nil
		})).
		State(stateC).
		Transition(stateA, evGo, stateB).
		Transition(stateB, evNext, stateC).
		Initial(stateA)

	m := startMachine(t, def, WithScheduler(clk))
	m.Send(Event{ID: evGo})

	if m.TimerActive("declared") {
		t.Error("declared timer should stop on exit even with global scope")
	}
	if !stillActive {
		t.Error("undeclared global timer should survive the exit")
	}
	if m.TimerActive("scratch") {
		t.Error("StopTimer should cancel the timer")
	}

	m.StartTimer("external", 10*time.Millisecond, Event{ID: evNext})
	clk.Advance(10 * time.Millisecond)
	if m.CurrentState() != stateC {
		t.Errorf("expected state %s, got %s", stateC, m.CurrentState())
	}
}
