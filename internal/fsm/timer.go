package fsm

import (
	"time"

	"github.com/librescoot/typewriter/clock"
)

// timerEntry tracks a running timer
type timerEntry struct {
	timer      clock.Timer
	seq        uint64
	event      Event
	scope      TimerScope
	ownerState StateID
}

// startTimerInternal starts a named timer with scope tracking
func (m *Machine) startTimerInternal(name string, duration time.Duration, event Event, scope TimerScope, owner StateID) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if existing, ok := m.timers[name]; ok {
		existing.timer.Stop()
		delete(m.timers, name)
	}

	if m.Stopped() {
		m.logger.Debug("machine stopped, not starting timer", "name", name)
		return
	}

	m.timerSeq++
	seq := m.timerSeq
	t := m.scheduler.AfterFunc(duration, func() {
		m.timerMu.Lock()
		// A stopped or restarted timer may still fire once on a real clock.
		entry, ok := m.timers[name]
		if !ok || entry.seq != seq {
			m.timerMu.Unlock()
			return
		}
		delete(m.timers, name)
		m.timerMu.Unlock()

		m.logger.Debug("timer fired", "name", name, "event", event.ID)
		m.Send(event)
	})

	m.timers[name] = &timerEntry{
		timer:      t,
		seq:        seq,
		event:      event,
		scope:      scope,
		ownerState: owner,
	}

	m.logger.Debug("timer started", "name", name, "duration", duration, "event", event.ID)
}

// StartTimer starts a named timer (global scope by default from external calls)
func (m *Machine) StartTimer(name string, duration time.Duration, event Event) {
	m.startTimerInternal(name, duration, event, TimerScopeGlobal, "")
}

// StopTimer stops a timer by name
func (m *Machine) StopTimer(name string) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if entry, ok := m.timers[name]; ok {
		entry.timer.Stop()
		delete(m.timers, name)
		m.logger.Debug("timer stopped", "name", name)
	}
}

// StopAllTimers stops all running timers
func (m *Machine) StopAllTimers() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	for name, entry := range m.timers {
		entry.timer.Stop()
		m.logger.Debug("timer stopped (cleanup)", "name", name)
	}
	m.timers = make(map[string]*timerEntry)
}

// TimerActive checks if a timer is running
func (m *Machine) TimerActive(name string) bool {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	_, ok := m.timers[name]
	return ok
}

// cleanupTimersForState cancels all state-scoped timers owned by the given state
func (m *Machine) cleanupTimersForState(stateID StateID) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	for name, entry := range m.timers {
		if entry.scope == TimerScopeState && entry.ownerState == stateID {
			entry.timer.Stop()
			delete(m.timers, name)
			m.logger.Debug("timer cleaned up (state exit)", "name", name, "state", stateID)
		}
	}
}
