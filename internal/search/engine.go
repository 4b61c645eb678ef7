package search

import (
	"fmt"
	"time"

	"github.com/mgomes/mdedit/internal/debounce"
)

const (
	// FindInputDelay is the quiet period after typing in the find field.
	FindInputDelay = 300 * time.Millisecond
	// SettleInterval is how often the widget is polled after a replace.
	SettleInterval = 50 * time.Millisecond
	// SettleAttempts bounds the settle poll.
	SettleAttempts = 6

	NoResultsLabel = "No results"
)

type PanelState int

const (
	Hidden PanelState = iota
	Visible
	VisibleReplace
)

func (s PanelState) String() string {
	switch s {
	case Visible:
		return "visible"
	case VisibleReplace:
		return "visible+replace"
	default:
		return "hidden"
	}
}

// Option names one of the search toggles.
type Option int

const (
	OptMatchCase Option = iota
	OptWholeWord
	OptRegex
)

// Editor is the content side of the editing widget.
type Editor interface {
	GetValue() string
	SetValue(content string)
}

// Settler is implemented by editors that finish updates asynchronously.
type Settler interface {
	Settled() bool
}

// Highlighter renders matches without touching the document.
type Highlighter interface {
	ShowHighlights(query string, current int, matchCase, wholeWord, useRegex bool) int
	UpdateCurrentHighlight(index int)
	ScrollToHighlight(index int)
	Clear()
}

// Session is the result of the most recent search.
type Session struct {
	Query   string
	Options Options
	Results []Match
	Current int
}

// Status is what the panel displays after every state change.
type Status struct {
	State      PanelState
	Label      string
	NavEnabled bool
	Current    int
	Total      int
	Highlights int
}

type EngineConfig struct {
	Editor      Editor
	Highlighter Highlighter
	Scheduler   debounce.Scheduler
	OnStatus    func(Status)
}

// Engine is the find/replace panel state machine. All methods must be
// called from the owning event loop.
type Engine struct {
	editor     Editor
	hl         Highlighter
	sched      debounce.Scheduler
	onStatus   func(Status)
	input      *debounce.Debouncer
	settle     debounce.Timer
	state      PanelState
	query      string
	replace    string
	opts       Options
	session    Session
	highlights int
}

func NewEngine(cfg EngineConfig) *Engine {
	sched := cfg.Scheduler
	if sched == nil {
		sched = debounce.RealScheduler{}
	}
	e := &Engine{
		editor:   cfg.Editor,
		hl:       cfg.Highlighter,
		sched:    sched,
		onStatus: cfg.OnStatus,
		session:  Session{Current: -1},
	}
	e.input = debounce.New(sched, FindInputDelay, e.PerformFind)
	return e
}

func (e *Engine) State() PanelState {
	return e.state
}

func (e *Engine) Query() string {
	return e.query
}

func (e *Engine) Replacement() string {
	return e.replace
}

func (e *Engine) Options() Options {
	return e.opts
}

// Session returns a copy of the current search session.
func (e *Engine) Session() Session {
	s := e.session
	s.Results = append([]Match(nil), e.session.Results...)
	return s
}

func (e *Engine) CountLabel() string {
	n := len(e.session.Results)
	if n == 0 || e.session.Current < 0 {
		return NoResultsLabel
	}
	return fmt.Sprintf("%d/%d", e.session.Current+1, n)
}

func (e *Engine) NavigationEnabled() bool {
	return len(e.session.Results) > 0
}

func (e *Engine) Status() Status {
	return Status{
		State:      e.state,
		Label:      e.CountLabel(),
		NavEnabled: e.NavigationEnabled(),
		Current:    e.session.Current,
		Total:      len(e.session.Results),
		Highlights: e.highlights,
	}
}

func (e *Engine) notify() {
	if e.onStatus != nil {
		e.onStatus(e.Status())
	}
}

// Show opens the panel. A non-empty seed replaces the query and searches
// immediately. Show(false) never collapses an open replace row.
func (e *Engine) Show(showReplace bool, seed string) {
	switch {
	case showReplace:
		e.state = VisibleReplace
	case e.state == Hidden:
		e.state = Visible
	}
	if seed != "" {
		e.query = seed
		e.input.Cancel()
		e.PerformFind()
		return
	}
	e.notify()
}

func (e *Engine) Hide() {
	if e.state == Hidden {
		return
	}
	e.state = Hidden
	e.input.Cancel()
	e.stopSettle()
	e.clear()
	e.notify()
}

// ToggleReplace flips between the two visible states. The session survives.
func (e *Engine) ToggleReplace() {
	switch e.state {
	case Visible:
		e.state = VisibleReplace
	case VisibleReplace:
		e.state = Visible
	default:
		return
	}
	e.notify()
}

func (e *Engine) ToggleOption(opt Option) {
	switch opt {
	case OptMatchCase:
		e.opts.MatchCase = !e.opts.MatchCase
	case OptWholeWord:
		e.opts.MatchWholeWord = !e.opts.MatchWholeWord
	case OptRegex:
		e.opts.UseRegex = !e.opts.UseRegex
	}
	e.input.Cancel()
	e.PerformFind()
}

func (e *Engine) SetOptions(opts Options) {
	e.opts = opts
}

// SetQuery records the find field and schedules a debounced search.
func (e *Engine) SetQuery(query string) {
	if query == e.query {
		return
	}
	e.query = query
	e.input.Trigger()
}

func (e *Engine) SetReplacement(replacement string) {
	e.replace = replacement
}

func (e *Engine) content() string {
	if e.editor == nil {
		return ""
	}
	return e.editor.GetValue()
}

// PerformFind rebuilds the session from the editor's current content.
func (e *Engine) PerformFind() {
	if e.query == "" {
		e.clear()
		e.notify()
		return
	}

	results := FindAll(e.content(), e.query, e.opts)
	e.session = Session{Query: e.query, Options: e.opts, Results: results, Current: -1}
	if len(results) == 0 {
		e.clearHighlights()
		e.notify()
		return
	}

	e.session.Current = 0
	e.render()
	e.notify()
}

func (e *Engine) FindNext() {
	e.step(1)
}

func (e *Engine) FindPrevious() {
	e.step(-1)
}

func (e *Engine) step(delta int) {
	n := len(e.session.Results)
	if n == 0 {
		e.PerformFind()
		return
	}
	e.session.Current = ((e.session.Current+delta)%n + n) % n
	e.render()
	e.notify()
}

func (e *Engine) render() {
	if e.hl == nil {
		return
	}
	idx := e.session.Current
	e.highlights = e.hl.ShowHighlights(e.query, idx, e.opts.MatchCase, e.opts.MatchWholeWord, e.opts.UseRegex)
	if idx >= 0 && e.highlights > 0 {
		e.hl.UpdateCurrentHighlight(idx)
		e.hl.ScrollToHighlight(idx)
	}
}

// ReplaceCurrent replaces the current match in the latest content. A
// current index that no longer fits the fresh results is a no-op.
func (e *Engine) ReplaceCurrent() bool {
	if e.query == "" || e.editor == nil {
		return false
	}

	content := e.editor.GetValue()
	results := FindAll(content, e.query, e.opts)
	idx := e.session.Current
	if idx < 0 || idx >= len(results) {
		return false
	}

	updated, ok := ReplaceAt(content, e.query, e.replace, e.opts, results[idx])
	if !ok {
		return false
	}
	e.editor.SetValue(updated)
	e.afterSettle(e.PerformFind)
	return true
}

// ReplaceAll substitutes every match and clears the session once the
// editor settles. It returns the number of replacements made.
func (e *Engine) ReplaceAll() int {
	if e.query == "" || e.editor == nil || len(e.session.Results) == 0 {
		return 0
	}

	updated, n := ReplaceAll(e.editor.GetValue(), e.query, e.replace, e.opts)
	if n == 0 {
		return 0
	}
	e.editor.SetValue(updated)
	e.afterSettle(func() {
		e.clear()
		e.notify()
	})
	return n
}

// ContentChanged is called when the user edits the document outside the
// find flow. Stale offsets are dropped.
func (e *Engine) ContentChanged() {
	if len(e.session.Results) == 0 && e.highlights == 0 {
		return
	}
	e.stopSettle()
	e.clear()
	e.notify()
}

// Resync re-runs the last search if the panel is open and a session exists.
func (e *Engine) Resync() {
	if e.state == Hidden || e.query == "" {
		return
	}
	e.PerformFind()
}

func (e *Engine) afterSettle(fn func()) {
	e.stopSettle()
	ready := func() bool { return true }
	if s, ok := e.editor.(Settler); ok {
		ready = s.Settled
	}
	e.settle = debounce.Poll(e.sched, SettleInterval, SettleAttempts, ready, func(bool) {
		e.settle = nil
		fn()
	})
}

func (e *Engine) stopSettle() {
	if e.settle != nil {
		e.settle.Stop()
		e.settle = nil
	}
}

func (e *Engine) clear() {
	e.session = Session{Current: -1}
	e.clearHighlights()
}

func (e *Engine) clearHighlights() {
	e.highlights = 0
	if e.hl != nil {
		e.hl.Clear()
	}
}
