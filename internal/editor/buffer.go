package editor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mgomes/mdedit/internal/layout"
	"github.com/mgomes/mdedit/internal/overlay"
)

const (
	ModeIR      = "ir"
	ModeWYSIWYG = "wysiwyg"
	ModeSV      = "sv"

	ThemeClassic = "classic"
	ThemeDark    = "dark"
)

var (
	ErrUnsupportedMode  = errors.New("unsupported editor mode")
	ErrUnsupportedTheme = errors.New("unsupported editor theme")
	ErrDestroyed        = errors.New("editor destroyed")
)

// Hooks are the widget lifecycle callbacks.
type Hooks struct {
	// After runs once the widget is constructed.
	After func()
	// Input runs after every user edit.
	Input func()
}

// Buffer is the editing widget: markdown text with a cursor, rendered
// through the layout package. Programmatic SetValue does not fire Input.
type Buffer struct {
	text    []rune
	cursor  int
	mode    string
	theme   string
	opts    Options
	hooks   Hooks
	width   int
	version int

	doc      *layout.Document
	docVer   int
	docMode  string
	docWidth int

	destroyed bool
}

func NewBuffer(content string, opts Options, hooks Hooks) (*Buffer, error) {
	mode := opts.String("mode", ModeIR)
	if !validMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	theme := opts.String("theme", ThemeClassic)
	if theme != ThemeClassic && theme != ThemeDark {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTheme, theme)
	}

	b := &Buffer{
		text:  []rune(content),
		mode:  mode,
		theme: theme,
		opts:  Merge(Options{}, opts),
		hooks: hooks,
	}
	if hooks.After != nil {
		hooks.After()
	}
	return b, nil
}

func validMode(mode string) bool {
	return mode == ModeIR || mode == ModeWYSIWYG || mode == ModeSV
}

func (b *Buffer) GetValue() string {
	return string(b.text)
}

func (b *Buffer) SetValue(content string) {
	if b.destroyed {
		return
	}
	b.text = []rune(content)
	b.cursor = min(b.cursor, len(b.text))
	b.version++
}

// InsertValue inserts text at the cursor as if the user typed it.
func (b *Buffer) InsertValue(s string) {
	b.Insert(s)
}

func (b *Buffer) Insert(s string) {
	if b.destroyed || s == "" {
		return
	}
	r := []rune(s)
	b.text = slices.Insert(b.text, b.cursor, r...)
	b.cursor += len(r)
	b.edited()
}

func (b *Buffer) DeleteBackward() {
	if b.destroyed || b.cursor == 0 {
		return
	}
	b.text = slices.Delete(b.text, b.cursor-1, b.cursor)
	b.cursor--
	b.edited()
}

// EditTable applies a table command at the cursor. It reports false when
// the cursor is not in a table or the command does not apply.
func (b *Buffer) EditTable(op TableOp) bool {
	text, cursor, ok := EditTable(string(b.text), b.cursor, op)
	if ok {
		b.rewrite(text, cursor)
	}
	return ok
}

// SetImageSize sizes the image on the cursor line.
func (b *Buffer) SetImageSize(width, height int) bool {
	text, cursor, ok := SetImageSize(string(b.text), b.cursor, width, height)
	if ok {
		b.rewrite(text, cursor)
	}
	return ok
}

// rewrite replaces the text as a user edit.
func (b *Buffer) rewrite(text string, cursor int) {
	if b.destroyed {
		return
	}
	b.text = []rune(text)
	b.SetCursor(cursor)
	b.edited()
}

func (b *Buffer) edited() {
	b.version++
	if b.hooks.Input != nil {
		b.hooks.Input()
	}
}

func (b *Buffer) Cursor() int {
	return b.cursor
}

func (b *Buffer) SetCursor(pos int) {
	b.cursor = max(0, min(pos, len(b.text)))
}

func (b *Buffer) MoveCursor(delta int) {
	b.SetCursor(b.cursor + delta)
}

// MoveLine moves the cursor delta source lines up or down, keeping the
// column where the target line is long enough.
func (b *Buffer) MoveLine(delta int) {
	lineStart := func(pos int) int {
		for pos > 0 && b.text[pos-1] != '\n' {
			pos--
		}
		return pos
	}
	lineEnd := func(pos int) int {
		for pos < len(b.text) && b.text[pos] != '\n' {
			pos++
		}
		return pos
	}

	start := lineStart(b.cursor)
	col := b.cursor - start
	pos := start
	for ; delta > 0; delta-- {
		end := lineEnd(pos)
		if end >= len(b.text) {
			break
		}
		pos = end + 1
	}
	for ; delta < 0; delta++ {
		if pos == 0 {
			break
		}
		pos = lineStart(pos - 1)
	}
	b.cursor = min(pos+col, lineEnd(pos))
}

func (b *Buffer) Mode() string {
	return b.mode
}

func (b *Buffer) SetMode(mode string) error {
	if !validMode(mode) {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	b.mode = mode
	b.opts["mode"] = mode
	return nil
}

func (b *Buffer) Theme() string {
	return b.theme
}

func (b *Buffer) SetTheme(theme string) {
	if theme != ThemeDark {
		theme = ThemeClassic
	}
	b.theme = theme
	b.opts["theme"] = theme
}

// Options returns a copy of the options the widget is running with,
// including the current mode and theme.
func (b *Buffer) Options() Options {
	return Merge(Options{}, b.opts)
}

// SetWidth sets the column count the document is laid out to.
func (b *Buffer) SetWidth(width int) {
	b.width = width
}

// Document renders the current text for the current mode.
func (b *Buffer) Document() *layout.Document {
	if b.doc == nil || b.docVer != b.version || b.docMode != b.mode {
		if b.mode == ModeSV {
			b.doc = layout.FromPlainText(string(b.text))
		} else {
			b.doc = layout.FromMarkdown(string(b.text))
		}
		b.docVer = b.version
		b.docMode = b.mode
		b.docWidth = 0
	}
	if b.width > 0 && b.docWidth != b.width {
		b.doc.Layout(b.width)
		b.docWidth = b.width
	}
	return b.doc
}

// Settled reports whether the rendered document reflects the latest text.
func (b *Buffer) Settled() bool {
	return b.doc != nil && b.docVer == b.version && b.docWidth == b.width
}

type rootCandidate struct {
	mode string
}

// Each mode renders into its own surface; the first visible one is the
// content root.
var rootCandidates = []rootCandidate{
	{mode: ModeIR},
	{mode: ModeWYSIWYG},
	{mode: ModeSV},
}

func (b *Buffer) ContentRoot() overlay.ContentRoot {
	if b.destroyed {
		return nil
	}
	for _, c := range rootCandidates {
		if c.mode != b.mode {
			continue
		}
		if doc := b.Document(); doc.Visible() {
			return doc
		}
	}
	return nil
}

func (b *Buffer) Destroy() {
	b.destroyed = true
	b.hooks = Hooks{}
	b.doc = nil
}

func (b *Buffer) Destroyed() bool {
	return b.destroyed
}
