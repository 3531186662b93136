package typewriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/librescoot/typewriter/internal/fsm"
)

// State is the phase a session is in.
type State string

const (
	StateIdle      State = "idle"
	StateErasing   State = "erasing"
	StateBlinking  State = "blinking"
	StateRevealing State = "revealing"
	StateDone      State = "done"
)

const (
	stIdle      = fsm.StateID(StateIdle)
	stPrepare   = fsm.StateID("prepare")
	stErasing   = fsm.StateID(StateErasing)
	stBlinking  = fsm.StateID(StateBlinking)
	stRevealing = fsm.StateID(StateRevealing)
	stDone      = fsm.StateID(StateDone)
)

const (
	evStart    fsm.EventID = "start"
	evErase    fsm.EventID = "erase"
	evErased   fsm.EventID = "erased"
	evBlink    fsm.EventID = "blink"
	evBlinked  fsm.EventID = "blinked"
	evReveal   fsm.EventID = "reveal"
	evRevealed fsm.EventID = "revealed"
)

const (
	timerErase  = "erase"
	timerBlink  = "blink"
	timerReveal = "reveal"
)

// Session is one Type call. It resolves when the last character has been
// revealed, or with ErrCancelled when it is superseded or stopped first.
type Session struct {
	id        uint64
	animator  *Animator
	container Container
	text      []rune
	event     string
	cfg       Config
	logger    *slog.Logger
	machine   *fsm.Machine
	startedAt time.Time

	// Owned by the machine's dispatcher.
	eraseLeft  int
	eraseIndex int
	toggles    int
	visible    bool
	index      int

	// stepMu serializes container mutations against cancel.
	stepMu    sync.Mutex
	cancelled bool
	stopWatch func() bool

	revealed atomic.Bool
	once     sync.Once
	done     chan struct{}
	err      error

	errMu sync.Mutex
	errs  []error
}

func newSession(a *Animator, id uint64, c Container, text, event string) (*Session, error) {
	s := &Session{
		id:        id,
		animator:  a,
		container: c,
		text:      []rune(text),
		event:     event,
		cfg:       a.cfg,
		logger:    a.logger.With("session", id),
		done:      make(chan struct{}),
	}

	def := fsm.NewDefinition().
		State(stIdle).
		ConditionState(stPrepare, s.choosePhase, fsm.WithOnEnter(s.resetCaret)).
		State(stErasing, fsm.WithOnEnter(s.enterErasing)).
		State(stBlinking, s.blinkingOptions()...).
		State(stRevealing, fsm.WithOnEnter(s.enterRevealing)).
		State(stDone, fsm.WithOnEnter(s.enterDone)).
		Transition(stIdle, evStart, stPrepare).
		Internal(stErasing, evErase, fsm.WithAction(s.eraseStep)).
		Transition(stErasing, evErased, stBlinking).
		Internal(stBlinking, evBlink, fsm.WithAction(s.blinkStep)).
		Transition(stBlinking, evBlinked, stRevealing).
		Internal(stRevealing, evReveal, fsm.WithAction(s.revealStep)).
		Transition(stRevealing, evRevealed, stDone).
		Internal(stDone, evBlink, fsm.WithAction(s.idleBlinkStep)).
		Initial(stIdle)

	m, err := def.Build(
		fsm.WithScheduler(a.scheduler),
		fsm.WithLogger(s.logger),
		fsm.WithStateChangeCallback(func(from, to fsm.StateID) {
			s.logger.Debug("session state changed", "from", from, "to", to)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("build session machine: %w", err)
	}
	s.machine = m
	return s, nil
}

func (s *Session) start(ctx context.Context) error {
	s.startedAt = s.animator.scheduler.Now()
	stop := context.AfterFunc(ctx, s.cancel)
	s.stepMu.Lock()
	s.stopWatch = stop
	s.stepMu.Unlock()
	if err := s.machine.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.logger.Debug("typing started", "chars", len(s.text), "event", s.event)
	s.machine.Send(fsm.Event{ID: evStart})
	return nil
}

// cancel stops the machine, waits for an in-flight step to finish and
// removes the caret. Nothing from this session touches the container
// afterwards.
func (s *Session) cancel() {
	s.machine.Stop()

	s.stepMu.Lock()
	if !s.cancelled {
		s.cancelled = true
		if err := s.container.DetachCaret(); err != nil && !errors.Is(err, ErrCaretDetached) {
			s.record(&MutationError{Phase: PhaseDone, Index: -1, Err: err})
		}
	}
	stop := s.stopWatch
	s.stepMu.Unlock()
	if stop != nil {
		stop()
	}

	s.animator.forget(s)

	if s.revealed.Load() {
		s.complete()
	} else if s.finish(ErrCancelled) {
		s.animator.observer.SessionCancelled()
		s.logger.Debug("typing cancelled", "state", s.machine.CurrentState())
	}
}

func (s *Session) complete() {
	if s.finish(nil) {
		s.animator.observer.SessionCompleted(s.animator.scheduler.Now().Sub(s.startedAt))
		s.logger.Debug("typing completed", "chars", len(s.text))
	}
}

func (s *Session) finish(err error) bool {
	first := false
	s.once.Do(func() {
		first = true
		s.err = err
		close(s.done)
	})
	return first
}

// step runs container operations for one scheduled step. A failing
// operation is recorded and the rest still run.
func (s *Session) step(phase Phase, index int, ops ...func() error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	if s.cancelled {
		return
	}
	for _, op := range ops {
		if err := op(); err != nil {
			s.record(&MutationError{Phase: phase, Index: index, Err: err})
		}
	}
}

func (s *Session) record(err *MutationError) {
	s.errMu.Lock()
	s.errs = append(s.errs, err)
	s.errMu.Unlock()

	s.animator.errors.Record(err)
	s.animator.observer.MutationFailed(err.Phase)
	s.logger.Warn("container mutation failed", "phase", err.Phase, "index", err.Index, "error", err.Err)
}

func (s *Session) attachCaret() error {
	s.visible = true
	return s.container.AttachCaret(s.cfg.Caret)
}

func (s *Session) toggleCaret() error {
	s.visible = !s.visible
	return s.container.SetCaretVisible(s.visible)
}

// resetCaret removes a caret left behind by a previous session.
func (s *Session) resetCaret(*fsm.Context) error {
	s.step(PhaseErase, -1, func() error {
		if err := s.container.DetachCaret(); err != nil && !errors.Is(err, ErrCaretDetached) {
			return err
		}
		return nil
	})
	return nil
}

func (s *Session) choosePhase(*fsm.Context) fsm.StateID {
	if s.container.Text() != "" {
		return stErasing
	}
	return stBlinking
}

func (s *Session) enterErasing(c *fsm.Context) error {
	s.eraseLeft = len([]rune(s.container.Text()))
	s.eraseIndex = 0
	s.step(PhaseErase, 0, s.attachCaret)
	c.StartTimer(timerErase, 0, fsm.Event{ID: evErase})
	return nil
}

func (s *Session) eraseStep(c *fsm.Context) error {
	s.eraseLeft--
	s.eraseIndex++
	if s.eraseLeft > 0 {
		s.step(PhaseErase, s.eraseIndex,
			s.container.DetachCaret,
			func() error { return s.container.SetText(trimLastRune(s.container.Text())) },
			s.attachCaret,
		)
		c.StartTimer(timerErase, s.cfg.EraseInterval, fsm.Event{ID: evErase})
		return nil
	}

	s.step(PhaseErase, s.eraseIndex,
		s.container.DetachCaret,
		func() error { return s.container.SetText("") },
	)
	c.Send(fsm.Event{ID: evErased})
	return nil
}

// blinkingOptions bounds the blink phase with a timeout of BlinkToggles
// intervals. The blink timer makes every toggle but the last, which runs on
// exit.
func (s *Session) blinkingOptions() []fsm.StateOption {
	opts := []fsm.StateOption{
		fsm.WithOnEnter(s.enterBlinking),
		fsm.WithOnExit(s.exitBlinking),
	}
	if n := s.cfg.BlinkToggles; n > 0 {
		opts = append(opts, fsm.WithTimeout(time.Duration(n)*s.cfg.BlinkInterval, evBlinked))
	}
	return opts
}

func (s *Session) enterBlinking(c *fsm.Context) error {
	s.toggles = 0
	s.step(PhaseBlink, 0, s.attachCaret)
	switch {
	case s.cfg.BlinkToggles == 0:
		c.Send(fsm.Event{ID: evBlinked})
	case s.cfg.BlinkToggles > 1:
		c.StartTimer(timerBlink, s.cfg.BlinkInterval, fsm.Event{ID: evBlink})
	}
	return nil
}

func (s *Session) blinkStep(c *fsm.Context) error {
	s.toggles++
	s.step(PhaseBlink, s.toggles, s.toggleCaret)
	if s.toggles < s.cfg.BlinkToggles-1 {
		c.StartTimer(timerBlink, s.cfg.BlinkInterval, fsm.Event{ID: evBlink})
	}
	return nil
}

func (s *Session) exitBlinking(*fsm.Context) error {
	if s.cfg.BlinkToggles > 0 {
		s.toggles++
		s.step(PhaseBlink, s.toggles, s.toggleCaret)
	}
	return nil
}

func (s *Session) enterRevealing(c *fsm.Context) error {
	s.index = 0
	if !s.visible {
		s.step(PhaseReveal, 0, s.toggleCaret)
	}
	if len(s.text) == 0 {
		c.Send(fsm.Event{ID: evRevealed})
		return nil
	}
	c.StartTimer(timerReveal, 0, fsm.Event{ID: evReveal})
	return nil
}

func (s *Session) revealStep(c *fsm.Context) error {
	ch := string(s.text[s.index])
	s.step(PhaseReveal, s.index,
		s.container.DetachCaret,
		func() error { return s.container.Append(ch) },
		s.attachCaret,
	)
	s.index++
	s.animator.observer.CharacterRevealed()

	if s.index == len(s.text) {
		c.Send(fsm.Event{ID: evRevealed})
		return nil
	}
	c.StartTimer(timerReveal, s.cfg.RevealInterval, fsm.Event{ID: evReveal})
	return nil
}

func (s *Session) enterDone(c *fsm.Context) error {
	s.revealed.Store(true)

	if s.event != "" && s.animator.registry.Awaits(s.event) {
		if err := s.animator.registry.Emit(s.event); err != nil {
			// Unregistered between the check and the call.
			s.logger.Warn("completion event not fired", "event", s.event, "error", err)
		}
	}

	s.complete()

	c.StartTimer(timerBlink, s.cfg.BlinkInterval, fsm.Event{ID: evBlink})
	return nil
}

func (s *Session) idleBlinkStep(c *fsm.Context) error {
	s.step(PhaseDone, s.index, s.toggleCaret)
	c.StartTimer(timerBlink, s.cfg.BlinkInterval, fsm.Event{ID: evBlink})
	return nil
}

// Done is closed when the session resolves.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns nil while running or after completion, ErrCancelled if the
// session was cancelled before its last character.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the session resolves or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the session's current phase.
func (s *Session) State() State {
	if s.machine.CurrentState() == stPrepare {
		return StateIdle
	}
	return State(s.machine.CurrentState())
}

// Text returns the text being typed.
func (s *Session) Text() string {
	return string(s.text)
}

// Container returns the session's target.
func (s *Session) Container() Container {
	return s.container
}

// Errors returns the container errors this session recorded.
func (s *Session) Errors() []error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return append([]error(nil), s.errs...)
}
