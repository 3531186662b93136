package typewriter

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Container is a target that can hold text and a caret after it.
//
// Text never includes the caret. Implementations used with an Animator must
// be comparable (usually a pointer) because sessions are tracked per
// container.
type Container interface {
	Text() string
	SetText(s string) error
	Append(s string) error

	// AttachCaret puts the caret after the text, visible.
	// It returns ErrCaretAttached if the caret is already there.
	AttachCaret(marker string) error
	// DetachCaret removes the caret. It returns ErrCaretDetached if there
	// is no caret.
	DetachCaret() error
	SetCaretVisible(visible bool) error
}

// Buffer is an in-memory Container. It keeps every rendered frame, which
// makes it useful for inspecting an animation step by step.
type Buffer struct {
	mu      sync.Mutex
	text    string
	marker  string
	caret   bool
	visible bool
	frames  []string
}

// NewBuffer returns a Buffer holding text, without a caret.
func NewBuffer(text string) *Buffer {
	return &Buffer{text: text}
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Buffer) SetText(s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = s
	b.snapshot()
	return nil
}

func (b *Buffer) Append(s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text += s
	b.snapshot()
	return nil
}

func (b *Buffer) AttachCaret(marker string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.caret {
		return ErrCaretAttached
	}
	b.caret, b.visible, b.marker = true, true, marker
	b.snapshot()
	return nil
}

func (b *Buffer) DetachCaret() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.caret {
		return ErrCaretDetached
	}
	b.caret = false
	b.snapshot()
	return nil
}

func (b *Buffer) SetCaretVisible(visible bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.caret {
		return ErrCaretDetached
	}
	b.visible = visible
	b.snapshot()
	return nil
}

// HasCaret reports whether the caret is attached.
func (b *Buffer) HasCaret() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caret
}

// CaretVisible reports whether the caret is attached and shown.
func (b *Buffer) CaretVisible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caret && b.visible
}

// Render returns the text followed by the caret marker when it is shown.
func (b *Buffer) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.render()
}

// Frames returns every rendered state in order, one per mutation.
func (b *Buffer) Frames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.frames...)
}

func (b *Buffer) render() string {
	if b.caret && b.visible {
		return b.text + b.marker
	}
	return b.text
}

func (b *Buffer) snapshot() {
	b.frames = append(b.frames, b.render())
}

// trimLastRune drops the final character of s.
func trimLastRune(s string) string {
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

// Document maps selectors to containers. An Animator uses it to find the
// container for a Type call that does not name one.
type Document struct {
	mu         sync.RWMutex
	containers map[string]Container
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{containers: make(map[string]Container)}
}

// Register stores c under selector, replacing any previous container.
func (d *Document) Register(selector string, c Container) {
	d.mu.Lock()
	d.containers[normalizeSelector(selector)] = c
	d.mu.Unlock()
}

// Remove deletes the container under selector.
func (d *Document) Remove(selector string) {
	d.mu.Lock()
	delete(d.containers, normalizeSelector(selector))
	d.mu.Unlock()
}

// Query returns the container registered under selector.
func (d *Document) Query(selector string) (Container, bool) {
	if d == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.containers[normalizeSelector(selector)]
	return c, ok
}

func normalizeSelector(s string) string {
	return strings.TrimSpace(s)
}
