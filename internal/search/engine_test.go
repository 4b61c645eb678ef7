package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomes/mdedit/internal/debounce"
)

type fakeEditor struct {
	value   string
	sets    int
	settled func() bool
}

func (f *fakeEditor) GetValue() string { return f.value }

func (f *fakeEditor) SetValue(content string) {
	f.value = content
	f.sets++
}

type settlingEditor struct {
	*fakeEditor
}

func (s settlingEditor) Settled() bool { return s.settled() }

type fakeHighlighter struct {
	editor   *fakeEditor
	shown    int
	cleared  int
	current  []int
	scrolled []int
	extra    int
}

func (f *fakeHighlighter) ShowHighlights(query string, current int, matchCase, wholeWord, useRegex bool) int {
	f.shown++
	opts := Options{MatchCase: matchCase, MatchWholeWord: wholeWord, UseRegex: useRegex}
	return len(FindAll(f.editor.value, query, opts)) + f.extra
}

func (f *fakeHighlighter) UpdateCurrentHighlight(index int) { f.current = append(f.current, index) }
func (f *fakeHighlighter) ScrollToHighlight(index int)      { f.scrolled = append(f.scrolled, index) }
func (f *fakeHighlighter) Clear()                           { f.cleared++ }

type harness struct {
	engine   *Engine
	editor   *fakeEditor
	hl       *fakeHighlighter
	sched    *debounce.ManualScheduler
	statuses []Status
}

func newHarness(content string) *harness {
	h := &harness{editor: &fakeEditor{value: content}, sched: debounce.NewManual()}
	h.hl = &fakeHighlighter{editor: h.editor}
	h.engine = NewEngine(EngineConfig{
		Editor:      h.editor,
		Highlighter: h.hl,
		Scheduler:   h.sched,
		OnStatus:    func(s Status) { h.statuses = append(h.statuses, s) },
	})
	return h
}

func (h *harness) search(query string) {
	h.engine.SetQuery(query)
	h.sched.Advance(FindInputDelay)
}

func TestFindNextFromInitialStateWraps(t *testing.T) {
	h := newHarness("foo foo foo")
	h.engine.Show(false, "")
	h.engine.SetQuery("foo")

	var seen []int
	for i := 0; i < 4; i++ {
		h.engine.FindNext()
		seen = append(seen, h.engine.Session().Current)
	}

	assert.Equal(t, []int{0, 1, 2, 0}, seen)
	assert.Equal(t, "1/3", h.engine.CountLabel())
}

func TestNavigationWrapsAfterNCalls(t *testing.T) {
	h := newHarness("a b a b a b a")
	h.engine.Show(false, "")
	h.search("a")
	require.Len(t, h.engine.Session().Results, 4)

	h.engine.FindNext()
	start := h.engine.Session().Current
	for i := 0; i < 4; i++ {
		h.engine.FindNext()
	}
	assert.Equal(t, start, h.engine.Session().Current)

	for i := 0; i < 4; i++ {
		h.engine.FindPrevious()
	}
	assert.Equal(t, start, h.engine.Session().Current)

	h.engine.FindPrevious()
	h.engine.FindPrevious()
	assert.Equal(t, 3, h.engine.Session().Current)
	assert.Equal(t, "4/4", h.engine.CountLabel())
}

func TestEmptyQueryClearsEverything(t *testing.T) {
	h := newHarness("foo bar foo")
	h.engine.Show(false, "")
	h.search("foo")
	require.Len(t, h.engine.Session().Results, 2)
	cleared := h.hl.cleared

	h.search("")

	s := h.engine.Session()
	assert.Empty(t, s.Results)
	assert.Equal(t, -1, s.Current)
	assert.Greater(t, h.hl.cleared, cleared)
	assert.Equal(t, NoResultsLabel, h.engine.CountLabel())
	assert.False(t, h.engine.NavigationEnabled())

	h.engine.PerformFind()
	assert.Empty(t, h.engine.Session().Results)
}

func TestFindInputIsDebounced(t *testing.T) {
	h := newHarness("alpha beta")
	h.engine.Show(false, "")

	h.engine.SetQuery("a")
	h.engine.SetQuery("al")
	h.engine.SetQuery("alp")
	h.sched.Advance(FindInputDelay - time.Millisecond)
	assert.Zero(t, h.hl.shown)

	h.sched.Advance(time.Millisecond)
	assert.Equal(t, 1, h.hl.shown)
	assert.Equal(t, "alp", h.engine.Session().Query)
}

func TestNoResultsDisablesNavigation(t *testing.T) {
	h := newHarness("nothing to see")
	h.engine.Show(false, "")
	h.search("zebra")

	assert.Equal(t, NoResultsLabel, h.engine.CountLabel())
	assert.False(t, h.engine.NavigationEnabled())
	last := h.statuses[len(h.statuses)-1]
	assert.False(t, last.NavEnabled)
	assert.Zero(t, last.Total)
}

func TestMalformedRegexYieldsNoResults(t *testing.T) {
	h := newHarness("a(b")
	h.engine.Show(false, "")
	h.engine.SetOptions(Options{UseRegex: true})
	h.search("(")

	assert.Empty(t, h.engine.Session().Results)
	assert.Equal(t, NoResultsLabel, h.engine.CountLabel())
}

func TestHighlightsFollowNavigation(t *testing.T) {
	h := newHarness("x y x y x")
	h.engine.Show(false, "")
	h.search("x")
	h.engine.FindNext()

	assert.Equal(t, []int{0, 1}, h.hl.current)
	assert.Equal(t, []int{0, 1}, h.hl.scrolled)
}

func TestRectCountIsReportedSeparately(t *testing.T) {
	h := newHarness("wrap wrap")
	h.hl.extra = 1
	h.engine.Show(false, "")
	h.search("wrap")

	st := h.engine.Status()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 3, st.Highlights)
	assert.Equal(t, "1/2", st.Label)
}

func TestReplaceCurrentThenResearch(t *testing.T) {
	h := newHarness("foo foo foo")
	h.engine.Show(true, "")
	h.search("foo")
	h.engine.SetReplacement("bar")
	h.engine.FindNext()

	require.True(t, h.engine.ReplaceCurrent())
	assert.Equal(t, "foo bar foo", h.editor.value)
	assert.Len(t, h.engine.Session().Results, 3)

	h.sched.Advance(SettleInterval)
	s := h.engine.Session()
	assert.Len(t, s.Results, 2)
	assert.Equal(t, 0, s.Current)
}

func TestReplaceCurrentStaleIndexIsNoop(t *testing.T) {
	h := newHarness("foo foo foo")
	h.engine.Show(true, "")
	h.search("foo")
	h.engine.SetReplacement("bar")
	h.engine.FindPrevious()
	require.Equal(t, 2, h.engine.Session().Current)

	h.editor.value = "foo"
	assert.False(t, h.engine.ReplaceCurrent())
	assert.Equal(t, "foo", h.editor.value)
	assert.Zero(t, h.editor.sets)
}

func TestReplaceCurrentWaitsForEditorToSettle(t *testing.T) {
	h := newHarness("one one")
	polls := 0
	ed := settlingEditor{h.editor}
	h.editor.settled = func() bool {
		polls++
		return polls >= 3
	}
	h.engine = NewEngine(EngineConfig{Editor: ed, Highlighter: h.hl, Scheduler: h.sched})
	h.engine.Show(true, "")
	h.search("one")
	h.engine.SetReplacement("two")

	require.True(t, h.engine.ReplaceCurrent())
	h.sched.Advance(2 * SettleInterval)
	assert.Len(t, h.engine.Session().Results, 2)

	h.sched.Advance(SettleInterval)
	assert.Len(t, h.engine.Session().Results, 1)
	assert.Equal(t, 3, polls)
}

func TestReplaceAllScenarioThroughEngine(t *testing.T) {
	h := newHarness("The quick fox. The lazy fox.")
	h.engine.Show(true, "")
	h.search("fox")
	h.engine.SetReplacement("dog")

	assert.Equal(t, 2, h.engine.ReplaceAll())
	assert.Equal(t, "The quick dog. The lazy dog.", h.editor.value)

	h.sched.Advance(SettleInterval)
	assert.Empty(t, h.engine.Session().Results)
	assert.Equal(t, NoResultsLabel, h.engine.CountLabel())
}

func TestReplaceAllRequiresResults(t *testing.T) {
	h := newHarness("foo")
	h.engine.Show(true, "")
	h.engine.SetQuery("foo")
	h.engine.SetReplacement("bar")

	assert.Zero(t, h.engine.ReplaceAll())
	assert.Equal(t, "foo", h.editor.value)
}

func TestPanelStateTransitions(t *testing.T) {
	h := newHarness("abc abc")
	assert.Equal(t, Hidden, h.engine.State())

	h.engine.ToggleReplace()
	assert.Equal(t, Hidden, h.engine.State())

	h.engine.Show(false, "abc")
	assert.Equal(t, Visible, h.engine.State())
	assert.Len(t, h.engine.Session().Results, 2)

	h.engine.ToggleReplace()
	assert.Equal(t, VisibleReplace, h.engine.State())
	assert.Len(t, h.engine.Session().Results, 2)

	h.engine.Show(false, "")
	assert.Equal(t, VisibleReplace, h.engine.State())

	h.engine.ToggleReplace()
	assert.Equal(t, Visible, h.engine.State())

	h.engine.Hide()
	assert.Equal(t, Hidden, h.engine.State())
	assert.Empty(t, h.engine.Session().Results)
}

func TestHideCancelsPendingSearch(t *testing.T) {
	h := newHarness("abc")
	h.engine.Show(false, "")
	h.engine.SetQuery("abc")
	h.engine.Hide()

	h.sched.Advance(time.Second)
	assert.Empty(t, h.engine.Session().Results)
	assert.Zero(t, h.hl.shown)
}

func TestToggleOptionResearchesImmediately(t *testing.T) {
	h := newHarness("Cat cat")
	h.engine.Show(false, "Cat")
	assert.Len(t, h.engine.Session().Results, 2)

	h.engine.ToggleOption(OptMatchCase)
	assert.Len(t, h.engine.Session().Results, 1)
	assert.True(t, h.engine.Options().MatchCase)

	h.engine.ToggleOption(OptMatchCase)
	h.engine.ToggleOption(OptWholeWord)
	assert.Len(t, h.engine.Session().Results, 2)
}

func TestContentChangedInvalidatesSession(t *testing.T) {
	h := newHarness("foo foo")
	h.engine.Show(false, "foo")
	cleared := h.hl.cleared

	h.engine.ContentChanged()
	assert.Empty(t, h.engine.Session().Results)
	assert.Equal(t, cleared+1, h.hl.cleared)

	h.engine.FindNext()
	assert.Equal(t, 0, h.engine.Session().Current)
}

func TestKeyboardContract(t *testing.T) {
	h := newHarness("k k k")

	assert.False(t, h.engine.HandleKey(FieldFind, Key{Code: KeyEnter}))

	h.engine.Show(true, "k")
	require.Equal(t, 0, h.engine.Session().Current)

	assert.True(t, h.engine.HandleKey(FieldFind, Key{Code: KeyEnter}))
	assert.Equal(t, 1, h.engine.Session().Current)

	assert.True(t, h.engine.HandleKey(FieldFind, Key{Code: KeyEnter, Shift: true}))
	assert.Equal(t, 0, h.engine.Session().Current)

	assert.False(t, h.engine.HandleKey(FieldReplace, Key{Code: KeyEnter}))

	h.engine.SetReplacement("q")
	assert.True(t, h.engine.HandleKey(FieldReplace, Key{Code: KeyEnter, Ctrl: true, Shift: true}))
	assert.Equal(t, "q q q", h.editor.value)

	assert.False(t, h.engine.HandleKey(FieldFind, Key{Code: "a"}))

	assert.True(t, h.engine.HandleKey(FieldNone, Key{Code: KeyEscape}))
	assert.Equal(t, Hidden, h.engine.State())
}

func TestEnterAfterTypingLandsOnFirstMatch(t *testing.T) {
	h := newHarness("ab ab ab")
	h.engine.Show(false, "")
	h.engine.SetQuery("ab")

	assert.True(t, h.engine.HandleKey(FieldFind, Key{Code: KeyEnter}))
	assert.Equal(t, 0, h.engine.Session().Current)

	h.sched.Advance(time.Second)
	assert.Equal(t, 0, h.engine.Session().Current)
}
