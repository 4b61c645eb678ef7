// Package editor owns the editing widget's lifetime and the features layered
// on it: option merging, outline, stylesheet links and upload insertion.
package editor

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mgomes/mdedit/internal/overlay"
)

// Widget is the editing surface the session manages.
type Widget interface {
	GetValue() string
	SetValue(content string)
	InsertValue(text string)
	Options() Options
	ContentRoot() overlay.ContentRoot
	Settled() bool
	Destroy()
}

type Factory func(content string, opts Options, hooks Hooks) (Widget, error)

// NewBufferWidget is the default Factory.
func NewBufferWidget(content string, opts Options, hooks Hooks) (Widget, error) {
	b, err := NewBuffer(content, opts, hooks)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Session holds at most one live widget. Create tears down the previous
// one first.
type Session struct {
	id       string
	factory  Factory
	widget   Widget
	fallback bool
}

func NewSession(factory Factory) *Session {
	if factory == nil {
		factory = NewBufferWidget
	}
	return &Session{factory: factory}
}

// Create builds a widget with opts. If that fails the widget is built again
// with MinimalOptions so the document stays editable.
func (s *Session) Create(content string, opts Options, hooks Hooks) error {
	s.Destroy()

	w, err := s.factory(content, opts, hooks)
	if err != nil {
		log.Printf("editor: init failed, falling back to minimal options: %v", err)
		w, err = s.factory(content, MinimalOptions(), hooks)
		if err != nil {
			return fmt.Errorf("failed to create editor: %w", err)
		}
		s.fallback = true
	}

	s.widget = w
	s.id = uuid.NewString()
	return nil
}

func (s *Session) Destroy() {
	if s.widget != nil {
		s.widget.Destroy()
	}
	s.widget = nil
	s.id = ""
	s.fallback = false
}

// ID identifies the current widget instance; empty when none exists.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Active() bool {
	return s.widget != nil
}

// Fallback reports whether the live widget runs on MinimalOptions.
func (s *Session) Fallback() bool {
	return s.fallback
}

func (s *Session) Widget() Widget {
	return s.widget
}

// Buffer returns the widget as a *Buffer when it is one.
func (s *Session) Buffer() (*Buffer, bool) {
	b, ok := s.widget.(*Buffer)
	return b, ok
}

func (s *Session) GetValue() string {
	if s.widget == nil {
		return ""
	}
	return s.widget.GetValue()
}

func (s *Session) SetValue(content string) {
	if s.widget != nil {
		s.widget.SetValue(content)
	}
}

func (s *Session) InsertValue(text string) {
	if s.widget != nil {
		s.widget.InsertValue(text)
	}
}

func (s *Session) Options() Options {
	if s.widget == nil {
		return Options{}
	}
	return s.widget.Options()
}

// ContentRoot is the rendered content of the live widget, or nil.
func (s *Session) ContentRoot() overlay.ContentRoot {
	if s.widget == nil {
		return nil
	}
	return s.widget.ContentRoot()
}

func (s *Session) Settled() bool {
	return s.widget == nil || s.widget.Settled()
}
