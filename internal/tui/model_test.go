package tui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgomes/mdedit/internal/debounce"
	"github.com/mgomes/mdedit/internal/layout"
	"github.com/mgomes/mdedit/internal/protocol"
	"github.com/mgomes/mdedit/internal/search"
	"github.com/mgomes/mdedit/internal/webview"
)

type recorder struct {
	msgs []protocol.Message
}

func (r *recorder) Send(m protocol.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) all(cmd protocol.Command) []protocol.Message {
	var out []protocol.Message
	for _, m := range r.msgs {
		if m.Command == cmd {
			out = append(out, m)
		}
	}
	return out
}

func newTestModel(t *testing.T) (Model, *recorder, *debounce.ManualScheduler) {
	t.Helper()
	rec := &recorder{}
	sched := debounce.NewManual()
	m := NewModel(Config{
		Sender:    rec,
		Scheduler: sched,
		Title:     "notes.md",
		Now:       func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) },
	})
	t.Cleanup(m.Webview().Close)
	return m, rec, sched
}

func step(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func initModel(m Model, content string, opts map[string]any) Model {
	return step(m,
		tea.WindowSizeMsg{Width: 80, Height: 24},
		HostMessageMsg{Message: protocol.Init(content, "classic", opts)},
	)
}

func TestStartAnnouncesReady(t *testing.T) {
	m, rec, _ := newTestModel(t)
	m = step(m, startMsg{})

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, protocol.CmdReady, rec.msgs[0].Command)
	assert.Contains(t, m.View(), "waiting for host")
}

func TestTypingSendsDebouncedEdit(t *testing.T) {
	m, rec, sched := newTestModel(t)
	m = initModel(m, "hello", map[string]any{"mode": "sv"})
	require.Equal(t, webview.Ready, m.Webview().State())

	m = step(m, runes("X"), runes("Y"))
	assert.Equal(t, "XYhello", m.Webview().Session().GetValue())
	assert.Empty(t, rec.all(protocol.CmdEdit))

	sched.Advance(webview.EditDelay)
	edits := rec.all(protocol.CmdEdit)
	require.Len(t, edits, 1)
	assert.Equal(t, "XYhello", edits[0].Content)
}

func TestEditingKeys(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = initModel(m, "ab", map[string]any{"mode": "sv"})

	m = step(m, key(tea.KeyRight), key(tea.KeyEnter), runes("c"), key(tea.KeyBackspace), runes("d"))
	assert.Equal(t, "a\ndb", m.Webview().Session().GetValue())

	m = step(m, key(tea.KeyUp))
	b, ok := m.Webview().Session().Buffer()
	require.True(t, ok)
	assert.Equal(t, 1, b.Cursor())
}

func TestSaveKey(t *testing.T) {
	m, rec, sched := newTestModel(t)
	m = initModel(m, "a", nil)

	m = step(m, runes("b"), key(tea.KeyCtrlS))
	saves := rec.all(protocol.CmdSave)
	require.Len(t, saves, 1)
	assert.Equal(t, "ba", saves[0].Content)

	sched.Advance(time.Second)
	assert.Empty(t, rec.all(protocol.CmdEdit), "save cancels the pending edit")
	_ = m
}

func TestFindPanelFlow(t *testing.T) {
	m, _, sched := newTestModel(t)
	m = initModel(m, "hello world", map[string]any{"mode": "sv"})

	m = step(m, key(tea.KeyCtrlF))
	engine := m.Webview().Engine()
	assert.Equal(t, search.Visible, engine.State())
	assert.Equal(t, search.FieldFind, m.panel.field)

	m = step(m, runes("o"))
	assert.Equal(t, "o", engine.Query())
	sched.Advance(search.FindInputDelay)
	m = step(m, LoopMsg{})
	assert.Equal(t, "1/2", engine.CountLabel())
	assert.Contains(t, m.View(), "1/2")
	assert.Len(t, m.Webview().Overlay().Rects(), 2)

	m = step(m, key(tea.KeyEnter))
	assert.Equal(t, "2/2", engine.CountLabel())

	m = step(m, key(tea.KeyEsc))
	assert.Equal(t, search.Hidden, engine.State())
	assert.False(t, m.panel.active())
	assert.Empty(t, m.Webview().Overlay().Rects())
}

func TestFindOptionToggles(t *testing.T) {
	m, _, sched := newTestModel(t)
	m = initModel(m, "Go go GO", map[string]any{"mode": "sv"})

	m = step(m, key(tea.KeyCtrlF), runes("go"))
	sched.Advance(search.FindInputDelay)
	engine := m.Webview().Engine()
	assert.Equal(t, "1/3", engine.CountLabel())

	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c"), Alt: true})
	assert.True(t, engine.Options().MatchCase)
	assert.Equal(t, "1/1", engine.CountLabel())
	assert.Equal(t, "go", m.panel.find.Value(), "option keys are not typed into the field")
}

func TestReplaceFromPanel(t *testing.T) {
	m, _, sched := newTestModel(t)
	m = initModel(m, "a a a", map[string]any{"mode": "sv"})

	m = step(m, key(tea.KeyCtrlH))
	engine := m.Webview().Engine()
	require.Equal(t, search.VisibleReplace, engine.State())

	m = step(m, runes("a"))
	sched.Advance(search.FindInputDelay)
	m = step(m, key(tea.KeyTab), runes("b"))
	assert.Equal(t, search.FieldReplace, m.panel.field)
	assert.Equal(t, "b", engine.Replacement())

	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1"), Alt: true})
	assert.Equal(t, "b a a", m.Webview().Session().GetValue())

	m = step(m, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	assert.Equal(t, "b b b", m.Webview().Session().GetValue())
}

func TestPanelKeysNeverEditDocument(t *testing.T) {
	m, rec, sched := newTestModel(t)
	m = initModel(m, "foo bar", map[string]any{"mode": "sv"})

	m = step(m, key(tea.KeyCtrlH), runes("foo"))
	sched.Advance(search.FindInputDelay)
	m = step(m, key(tea.KeyTab), runes("x"))
	require.Equal(t, search.FieldReplace, m.panel.field)

	m = step(m, key(tea.KeyEnter), key(tea.KeyShiftTab), tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q"), Alt: true})
	assert.Equal(t, "foo bar", m.Webview().Session().GetValue())

	sched.Advance(webview.EditDelay)
	assert.Empty(t, rec.all(protocol.CmdEdit))

	step(m, key(tea.KeyCtrlS))
	require.Len(t, rec.all(protocol.CmdSave), 1, "commands still run while the panel has focus")
}

func TestOpenFindDialogFromHost(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = initModel(m, "text", nil)

	m = step(m, HostMessageMsg{Message: protocol.OpenFindDialog(true)})
	assert.Equal(t, search.VisibleReplace, m.Webview().Engine().State())
	assert.Equal(t, search.FieldFind, m.panel.field)
}

func TestOutlineToggleAndResize(t *testing.T) {
	m, rec, _ := newTestModel(t)
	m = initModel(m, "# Title\n\nbody", map[string]any{"outlineWidth": 300})

	m = step(m, key(tea.KeyCtrlO))
	outline := m.Webview().Outline()
	require.NotNil(t, outline)
	assert.True(t, outline.Visible())
	assert.Contains(t, m.View(), "Title")
	assert.Equal(t, 80-outline.Columns()-1, m.doc.vp.Width)

	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]"), Alt: true})
	widths := rec.all(protocol.CmdUpdateOutlineWidth)
	require.Len(t, widths, 1)
	assert.Equal(t, 310, widths[0].Width)
}

func TestModeCycleSavesOptions(t *testing.T) {
	m, rec, _ := newTestModel(t)
	m = initModel(m, "text", map[string]any{"mode": "ir"})

	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m"), Alt: true})
	b, ok := m.Webview().Session().Buffer()
	require.True(t, ok)
	assert.Equal(t, "wysiwyg", b.Mode())
	assert.Len(t, rec.all(protocol.CmdSaveOptions), 1)
	assert.Contains(t, m.View(), "[wysiwyg]")
}

func TestOpenLinkOnCursorLine(t *testing.T) {
	m, rec, _ := newTestModel(t)
	m = initModel(m, "see [docs](other.md)\nnext", map[string]any{"mode": "sv"})

	m = step(m, key(tea.KeyCtrlL))
	links := rec.all(protocol.CmdOpenLink)
	require.Len(t, links, 1)
	assert.Equal(t, "other.md", links[0].Href)
}

func TestUploadPrompt(t *testing.T) {
	m, rec, _ := newTestModel(t)
	m = initModel(m, "", nil)

	img := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))

	m = step(m, key(tea.KeyCtrlU))
	assert.True(t, m.prompt.Focused())

	m = step(m, runes(img), key(tea.KeyEnter))
	assert.False(t, m.prompt.Focused())
	uploads := rec.all(protocol.CmdUpload)
	require.Len(t, uploads, 1)
	require.Len(t, uploads[0].Files, 1)
	assert.Equal(t, "20240309_140507_shot.png", uploads[0].Files[0].Name)
}

func alt(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s), Alt: true}
}

func TestTableKeys(t *testing.T) {
	m, rec, sched := newTestModel(t)
	m = initModel(m, "| a | b |\n|---|---|\n| 1 | 2 |", map[string]any{"mode": "sv"})
	b, ok := m.Webview().Session().Buffer()
	require.True(t, ok)
	b.SetCursor(22)

	m = step(m, alt("="), alt("C"))
	want := "| a | b |\n| :---: | --- |\n| 1 | 2 |\n|  |  |"
	assert.Equal(t, want, b.GetValue())

	sched.Advance(webview.EditDelay)
	edits := rec.all(protocol.CmdEdit)
	require.Len(t, edits, 1)
	assert.Equal(t, want, edits[0].Content)

	b.SetValue("plain text")
	m = step(m, alt("-"))
	assert.Equal(t, "plain text", b.GetValue())
	assert.Contains(t, m.View(), "Not in a table")
}

func TestImageSizePrompt(t *testing.T) {
	m, rec, sched := newTestModel(t)
	m = initModel(m, "![shot](img/shot.png)", map[string]any{"mode": "sv"})

	m = step(m, alt("i"))
	assert.True(t, m.prompt.Focused())

	m = step(m, runes("320x200"), key(tea.KeyEnter))
	assert.False(t, m.prompt.Focused())
	want := `<img src="img/shot.png" alt="shot" width="320" height="200">`
	assert.Equal(t, want, m.Webview().Session().GetValue())

	sched.Advance(webview.EditDelay)
	edits := rec.all(protocol.CmdEdit)
	require.Len(t, edits, 1)
	assert.Equal(t, want, edits[0].Content)

	m = step(m, alt("i"), runes("wide"), key(tea.KeyEnter))
	assert.Contains(t, m.View(), "invalid image width")
}

func TestParseImageSize(t *testing.T) {
	tests := []struct {
		in            string
		width, height int
		ok            bool
	}{
		{"320", 320, 0, true},
		{"320x200", 320, 200, true},
		{" 64 X 48 ", 64, 48, true},
		{"0", 0, 0, false},
		{"10x", 0, 0, false},
		{"abc", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, err := parseImageSize(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.width, w, tt.in)
		assert.Equal(t, tt.height, h, tt.in)
	}
}

func TestFocusAndNotices(t *testing.T) {
	var focus []bool
	rec := &recorder{}
	m := NewModel(Config{
		Sender:    rec,
		Scheduler: debounce.NewManual(),
		OnFocus:   func(active bool) { focus = append(focus, active) },
	})

	m = step(m, tea.WindowSizeMsg{Width: 60, Height: 10}, tea.FocusMsg{}, tea.BlurMsg{})
	assert.Equal(t, []bool{true, false}, focus)

	m = step(m, NotifyMsg{Text: "Saved", Error: false}, TitleMsg{Title: "[edit]doc.md"})
	view := m.View()
	assert.Contains(t, view, "Saved")
	assert.Contains(t, view, "[edit]doc.md")

	m = step(m, DisconnectedMsg{})
	assert.Contains(t, m.View(), "disconnected")
}

func TestLoopRunsPostedCallbacks(t *testing.T) {
	l := NewLoop()
	ran := false
	l.Post(func() { ran = true })

	msg := l.wait()()
	loopMsg, ok := msg.(LoopMsg)
	require.True(t, ok)
	loopMsg.Fn()
	assert.True(t, ran)
}

func TestSourceCursor(t *testing.T) {
	text := "ab\n\ncd"
	doc := layout.FromPlainText(text)
	doc.Layout(10)

	tests := []struct {
		offset int
		want   cellPos
	}{
		{0, cellPos{0, 0}},
		{2, cellPos{0, 2}},
		{3, cellPos{1, 0}},
		{5, cellPos{2, 1}},
		{6, cellPos{2, 2}},
	}
	for _, tt := range tests {
		got, ok := sourceCursor(doc, text, tt.offset)
		require.True(t, ok, "offset %d", tt.offset)
		assert.Equal(t, tt.want, got, "offset %d", tt.offset)
	}
}

func TestLinkAt(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`see [x](http://a.b/c "title") here`, "http://a.b/c"},
		{"auto <https://x.y/z> link", "https://x.y/z"},
		{"bare https://x.y ok", "https://x.y"},
		{"no link", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, linkAt(tt.text, 0), tt.text)
	}
	assert.Equal(t, "b.md", linkAt("[a](a.md)\n[b](b.md)", 12))
}

func TestLineColumn(t *testing.T) {
	line, col := lineColumn("ab\ncd", 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
}
