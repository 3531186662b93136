// Package term renders a typewriter container on a single terminal line.
package term

import (
	"io"
	"os"
	"sync"

	"github.com/librescoot/typewriter"
	"github.com/muesli/termenv"
	xterm "golang.org/x/term"
)

// Line is a typewriter.Container that redraws one terminal line on every
// change. Text wider than the terminal is clipped from the left so the
// caret stays in view.
type Line struct {
	mu      sync.Mutex
	out     *termenv.Output
	width   func() int
	text    string
	marker  string
	caret   bool
	visible bool
}

var _ typewriter.Container = (*Line)(nil)

// Option configures a Line.
type Option func(*lineConfig)

type lineConfig struct {
	outputOpts []termenv.OutputOption
	width      int
}

// WithProfile forces a color profile instead of detecting one.
func WithProfile(p termenv.Profile) Option {
	return func(c *lineConfig) {
		c.outputOpts = append(c.outputOpts, termenv.WithProfile(p))
	}
}

// WithWidth fixes the line width. Zero means ask the terminal.
func WithWidth(n int) Option {
	return func(c *lineConfig) {
		c.width = n
	}
}

// New returns a Line writing to w.
func New(w io.Writer, opts ...Option) *Line {
	var cfg lineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Line{out: termenv.NewOutput(w, cfg.outputOpts...)}
	switch {
	case cfg.width > 0:
		l.width = func() int { return cfg.width }
	default:
		l.width = terminalWidth(w)
	}
	return l
}

// terminalWidth returns a width probe for w, reporting 0 (unbounded) when
// w is not a terminal.
func terminalWidth(w io.Writer) func() int {
	f, ok := w.(*os.File)
	if !ok || !xterm.IsTerminal(int(f.Fd())) {
		return func() int { return 0 }
	}
	fd := int(f.Fd())
	return func() int {
		width, _, err := xterm.GetSize(fd)
		if err != nil {
			return 0
		}
		return width
	}
}

func (l *Line) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

func (l *Line) SetText(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text = s
	return l.redraw()
}

func (l *Line) Append(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text += s
	return l.redraw()
}

func (l *Line) AttachCaret(marker string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.caret {
		return typewriter.ErrCaretAttached
	}
	l.caret, l.visible, l.marker = true, true, marker
	return l.redraw()
}

func (l *Line) DetachCaret() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.caret {
		return typewriter.ErrCaretDetached
	}
	l.caret = false
	return l.redraw()
}

func (l *Line) SetCaretVisible(visible bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.caret {
		return typewriter.ErrCaretDetached
	}
	l.visible = visible
	return l.redraw()
}

// HideCursor hides the terminal's own cursor while the line animates.
func (l *Line) HideCursor() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.HideCursor()
}

// Finish redraws the line without the caret, moves to the next line and
// shows the terminal cursor again.
func (l *Line) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.caret = false
	if err := l.redraw(); err != nil {
		return err
	}
	l.out.ShowCursor()
	_, err := io.WriteString(l.out, "\n")
	return err
}

func (l *Line) redraw() error {
	l.out.ClearLine()

	text := l.text
	caretWidth := 0
	if l.caret {
		caretWidth = len([]rune(l.marker))
	}
	if w := l.width(); w > 0 {
		text = clipLeft(text, w-caretWidth-1)
	}

	line := "\r" + text
	if l.caret {
		if l.visible {
			line += l.out.String(l.marker).Bold().String()
		} else {
			line += spaces(caretWidth)
		}
	}
	_, err := io.WriteString(l.out, line)
	return err
}

// clipLeft keeps the last n characters of s.
func clipLeft(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
