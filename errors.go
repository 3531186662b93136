package typewriter

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoContainer is returned by Type when no container was given and the
	// document has none under the default selector.
	ErrNoContainer = errors.New("typewriter: no container")

	// ErrCancelled is reported by a session that was superseded or stopped
	// before its last character was revealed.
	ErrCancelled = errors.New("typewriter: session cancelled")

	// ErrUnregisteredEvent matches every *UnregisteredEventError.
	ErrUnregisteredEvent = errors.New("typewriter: event not registered")

	// ErrCaretAttached and ErrCaretDetached are returned by containers when
	// the caret is not where the operation expects it.
	ErrCaretAttached = errors.New("caret already attached")
	ErrCaretDetached = errors.New("caret not attached")
)

// UnregisteredEventError is returned by Registry.Emit for a key with no callback.
type UnregisteredEventError struct {
	Event any
}

func (e *UnregisteredEventError) Error() string {
	return fmt.Sprintf("typewriter: no callback registered for event %v", e.Event)
}

func (e *UnregisteredEventError) Is(target error) bool {
	return target == ErrUnregisteredEvent
}

// Phase names the part of an animation a step belongs to.
type Phase string

const (
	PhaseErase  Phase = "erase"
	PhaseBlink  Phase = "blink"
	PhaseReveal Phase = "reveal"
	PhaseDone   Phase = "done"
)

// MutationError records a container operation that failed during a step.
// The animation carries on after it.
type MutationError struct {
	Phase Phase
	Index int // character index within the phase
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("typewriter: %s step %d: %v", e.Phase, e.Index, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// ErrorLog collects errors from every session of an Animator.
// The zero value is ready to use.
type ErrorLog struct {
	mu   sync.Mutex
	errs []error
}

// NewErrorLog returns an empty log.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{}
}

// Record appends err. Nil errors are ignored.
func (l *ErrorLog) Record(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

// Errors returns a copy of the recorded errors in order.
func (l *ErrorLog) Errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

// Err joins the recorded errors, nil when there are none.
func (l *ErrorLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.errs...)
}

// Reset drops every recorded error.
func (l *ErrorLog) Reset() {
	l.mu.Lock()
	l.errs = nil
	l.mu.Unlock()
}
