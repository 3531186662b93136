package typewriter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/librescoot/typewriter/clock"
)

// Logger is the default logger used when none is provided
var Logger = slog.Default()

// Animator types text into containers, one session per container.
// It is safe for concurrent use.
type Animator struct {
	cfg       Config
	registry  *Registry[string]
	document  *Document
	errors    *ErrorLog
	scheduler clock.Scheduler
	observer  Observer
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[Container]*Session
	seq      uint64
}

// AnimatorOption is a functional option for configuring an Animator
type AnimatorOption func(*Animator)

// WithConfig sets cadences and caret settings. Invalid configs are
// rejected by New.
func WithConfig(cfg Config) AnimatorOption {
	return func(a *Animator) {
		a.cfg = cfg
	}
}

// WithRegistry sets the registry completion events are fired from
func WithRegistry(r *Registry[string]) AnimatorOption {
	return func(a *Animator) {
		a.registry = r
	}
}

// WithDocument sets where containers are looked up when Type gets none
func WithDocument(d *Document) AnimatorOption {
	return func(a *Animator) {
		a.document = d
	}
}

// WithErrorLog sets the log every session's mutation errors are added to
func WithErrorLog(l *ErrorLog) AnimatorOption {
	return func(a *Animator) {
		a.errors = l
	}
}

// WithScheduler sets the clock sessions run on
func WithScheduler(s clock.Scheduler) AnimatorOption {
	return func(a *Animator) {
		a.scheduler = s
	}
}

// WithObserver sets the telemetry sink
func WithObserver(o Observer) AnimatorOption {
	return func(a *Animator) {
		a.observer = o
	}
}

// WithLogger sets the logger for the animator and its sessions
func WithLogger(logger *slog.Logger) AnimatorOption {
	return func(a *Animator) {
		a.logger = logger
	}
}

// New creates an Animator. Anything not supplied through options gets a
// fresh default: DefaultConfig, an empty Registry, Document and ErrorLog,
// the real clock and no telemetry.
func New(opts ...AnimatorOption) (*Animator, error) {
	a := &Animator{
		cfg:       DefaultConfig(),
		scheduler: clock.Real(),
		observer:  nopObserver{},
		logger:    Logger,
		sessions:  make(map[Container]*Session),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if a.registry == nil {
		a.registry = NewRegistry[string]()
	}
	if a.document == nil {
		a.document = NewDocument()
	}
	if a.errors == nil {
		a.errors = NewErrorLog()
	}
	return a, nil
}

// Config returns the animator's configuration.
func (a *Animator) Config() Config { return a.cfg }

// Registry returns the registry completion events are fired from.
func (a *Animator) Registry() *Registry[string] { return a.registry }

// Document returns the document default containers are looked up in.
func (a *Animator) Document() *Document { return a.document }

// ErrorLog returns the log shared by all sessions.
func (a *Animator) ErrorLog() *ErrorLog { return a.errors }

// TypeOption configures a single Type call.
type TypeOption func(*typeOptions)

type typeOptions struct {
	container Container
	event     string
}

// Into sets the target container. Without it the container registered
// under Config.DefaultSelector is used.
func Into(c Container) TypeOption {
	return func(o *typeOptions) {
		o.container = c
	}
}

// OnComplete names the registry event fired once the last character is
// revealed. Unregistered events are skipped.
func OnComplete(event string) TypeOption {
	return func(o *typeOptions) {
		o.event = event
	}
}

// Type starts typing text into a container and returns the session.
//
// Any session already running on the container is cancelled first. The
// only synchronous failures are ErrNoContainer and an already-done ctx;
// cancelling ctx later cancels the session.
func (a *Animator) Type(ctx context.Context, text string, opts ...TypeOption) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var o typeOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := o.container
	if c == nil {
		found, ok := a.document.Query(a.cfg.DefaultSelector)
		if !ok {
			return nil, ErrNoContainer
		}
		c = found
	}

	a.mu.Lock()
	a.seq++
	s, err := newSession(a, a.seq, c, text, o.event)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	prev := a.sessions[c]
	a.sessions[c] = s
	a.mu.Unlock()

	if prev != nil {
		a.logger.Debug("superseding session", "session", prev.id, "by", s.id)
		prev.cancel()
	}

	a.observer.SessionStarted()
	if err := s.start(ctx); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

// Session returns the session currently attached to c.
func (a *Animator) Session(c Container) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[c]
	return s, ok
}

// Stop cancels the session on c, including the idle caret blink after
// completion, and removes the caret. It reports whether a session was
// attached.
func (a *Animator) Stop(c Container) bool {
	s, ok := a.Session(c)
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Close cancels every session.
func (a *Animator) Close() error {
	a.mu.Lock()
	sessions := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}
	return nil
}

// forget drops s from the session table if it is still the current one.
func (a *Animator) forget(s *Session) {
	a.mu.Lock()
	if a.sessions[s.container] == s {
		delete(a.sessions, s.container)
	}
	a.mu.Unlock()
}
