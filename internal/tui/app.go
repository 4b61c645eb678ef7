// Package tui is the terminal rendition of the editing panel: a bubbletea
// program around the webview endpoint.
package tui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mgomes/mdedit/internal/config"
	"github.com/mgomes/mdedit/internal/debounce"
	"github.com/mgomes/mdedit/internal/editor"
	"github.com/mgomes/mdedit/internal/search"
	"github.com/mgomes/mdedit/internal/webview"
)

var linkPattern = regexp.MustCompile(`\]\(([^)\s]+)[^)]*\)|<(https?://[^>]+)>|(https?://[^\s)>]+)`)

type promptKind int

const (
	promptUpload promptKind = iota
	promptImageSize
)

// tableKeys are the table commands. Terminals do not report ctrl+shift
// chords, so alt takes their place.
var tableKeys = map[string]editor.TableOp{
	"alt+L": editor.AlignLeft,
	"alt+C": editor.AlignCenter,
	"alt+R": editor.AlignRight,
	"alt+F": editor.InsertRowAbove,
	"alt+=": editor.InsertRowBelow,
	"alt+-": editor.DeleteRow,
	"alt+G": editor.InsertColumnLeft,
	"alt++": editor.InsertColumnRight,
	"alt+_": editor.DeleteColumn,
}

var modeCycle = map[string]string{
	editor.ModeIR:      editor.ModeWYSIWYG,
	editor.ModeWYSIWYG: editor.ModeSV,
	editor.ModeSV:      editor.ModeIR,
}

// docView adapts the viewport to the overlay's scroll container.
type docView struct {
	vp viewport.Model
}

func (d *docView) Offset() int {
	return d.vp.YOffset
}

func (d *docView) Height() int {
	return d.vp.Height
}

func (d *docView) ScrollTo(offset int) {
	d.vp.SetYOffset(offset)
}

type Config struct {
	Sender webview.Sender
	Title  string
	// Scheduler defaults to one that runs timers inside Update.
	Scheduler debounce.Scheduler
	// OnFocus runs when the terminal gains or loses focus.
	OnFocus func(active bool)
	Now     func() time.Time
}

type Model struct {
	view    *webview.Webview
	doc     *docView
	loop    *Loop
	panel   *findPanel
	prompt  textinput.Model
	purpose promptKind
	onFocus func(bool)

	title   string
	notice  string
	isError bool
	closed  bool
	width   int
	height  int
}

func NewModel(cfg Config) Model {
	doc := &docView{vp: viewport.New(0, 0)}

	var loop *Loop
	sched := cfg.Scheduler
	if sched == nil {
		loop = NewLoop()
		sched = debounce.LoopScheduler{Post: loop.Post}
	}

	prompt := textinput.New()
	prompt.Width = 50

	panel := newFindPanel()
	return Model{
		view: webview.New(webview.Config{
			Sender:    cfg.Sender,
			Scheduler: sched,
			Scroller:  doc,
			Now:       cfg.Now,
		}),
		doc:     doc,
		loop:    loop,
		panel:   &panel,
		prompt:  prompt,
		onFocus: cfg.OnFocus,
		title:   cfg.Title,
	}
}

// Webview exposes the endpoint the model drives.
func (m Model) Webview() *webview.Webview {
	return m.view
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg { return startMsg{} },
		textinput.Blink,
	}
	if m.loop != nil {
		cmds = append(cmds, m.loop.wait())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case startMsg:
		m.view.Start()

	case HostMessageMsg:
		m.view.Dispatch(msg.Message)

	case LoopMsg:
		if msg.Fn != nil {
			msg.Fn()
		}
		if m.loop != nil {
			cmds = append(cmds, m.loop.wait())
		}

	case NotifyMsg:
		m.notice = msg.Text
		m.isError = msg.Error

	case TitleMsg:
		m.title = msg.Title

	case DisconnectedMsg:
		m.closed = true
		m.notice = "disconnected from host"
		m.isError = true

	case tea.FocusMsg:
		if m.onFocus != nil {
			m.onFocus(true)
		}

	case tea.BlurMsg:
		m.view.FlushEdit()
		if m.onFocus != nil {
			m.onFocus(false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		quit, cmd := m.handleKey(msg)
		if quit {
			m.view.FlushEdit()
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		if m.prompt.Focused() {
			m.prompt, cmd = m.prompt.Update(msg)
		} else if m.panel.active() {
			switch m.panel.field {
			case search.FieldFind:
				m.panel.find, cmd = m.panel.find.Update(msg)
			case search.FieldReplace:
				m.panel.replace, cmd = m.panel.replace.Update(msg)
			}
		}
		cmds = append(cmds, cmd)
	}

	m.panel.sync(m.view.Engine())
	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return true, nil
	}
	if m.prompt.Focused() {
		return false, m.handlePromptKey(msg)
	}
	if m.panel.active() {
		if ok, cmd := m.panel.update(m.view.Engine(), msg); ok {
			return false, cmd
		}
		// Keys the panel leaves alone may still run commands, never edit text.
		m.handleCommandKey(msg)
		return false, nil
	}
	if m.handleCommandKey(msg) {
		return false, nil
	}
	m.handleEditorKey(msg)
	return false, nil
}

func (m *Model) openPrompt(kind promptKind) {
	m.purpose = kind
	switch kind {
	case promptUpload:
		m.prompt.Prompt = "upload: "
		m.prompt.Placeholder = "image paths, comma separated"
	case promptImageSize:
		m.prompt.Prompt = "image size: "
		m.prompt.Placeholder = "width or widthxheight"
	}
	m.prompt.SetValue("")
	m.prompt.Focus()
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.prompt.Blur()
		m.prompt.SetValue("")
		return nil
	case "enter":
		value := m.prompt.Value()
		m.prompt.Blur()
		m.prompt.SetValue("")
		switch m.purpose {
		case promptUpload:
			var files []string
			for _, f := range strings.Split(value, ",") {
				if f = strings.TrimSpace(f); f != "" {
					files = append(files, f)
				}
			}
			m.view.Upload(files)
		case promptImageSize:
			m.resizeImage(value)
		}
		return nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return cmd
}

// resizeImage sizes the image on the cursor line from "W" or "WxH".
func (m *Model) resizeImage(value string) {
	b, ok := m.view.Session().Buffer()
	if !ok {
		return
	}
	width, height, err := parseImageSize(value)
	if err != nil {
		m.notice, m.isError = err.Error(), true
		return
	}
	if !b.SetImageSize(width, height) {
		m.notice, m.isError = "No image on this line", true
	}
}

func parseImageSize(value string) (int, int, error) {
	w, h, sized := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid image width %q", w)
	}
	if !sized {
		return width, 0, nil
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid image height %q", h)
	}
	return width, height, nil
}

// handleCommandKey runs document-level commands that leave the text alone.
func (m *Model) handleCommandKey(msg tea.KeyMsg) bool {
	engine := m.view.Engine()
	outline := m.view.Outline()

	switch msg.String() {
	case "ctrl+s":
		m.view.Save()
	case "ctrl+f":
		engine.Show(false, "")
	case "ctrl+h":
		engine.Show(true, "")
	case "esc":
		engine.HandleKey(search.FieldNone, search.Key{Code: search.KeyEscape})
	case "ctrl+r":
		m.view.ResetConfig()
	case "ctrl+u":
		m.openPrompt(promptUpload)
	case "alt+i":
		m.openPrompt(promptImageSize)
	case "ctrl+o":
		if outline != nil {
			outline.Toggle()
		}
	case "alt+[":
		if outline != nil {
			outline.Resize(-editor.OutlineStep)
		}
	case "alt+]":
		if outline != nil {
			outline.Resize(editor.OutlineStep)
		}
	case "alt+0":
		if outline != nil {
			outline.Reset()
		}
	case "pgup":
		m.doc.vp.SetYOffset(m.doc.vp.YOffset - m.doc.vp.Height)
	case "pgdown":
		m.doc.vp.SetYOffset(m.doc.vp.YOffset + m.doc.vp.Height)
	default:
		return false
	}
	return true
}

func (m *Model) handleEditorKey(msg tea.KeyMsg) {
	b, ok := m.view.Session().Buffer()
	if !ok {
		return
	}
	if op, isTable := tableKeys[msg.String()]; isTable {
		if !b.EditTable(op) {
			m.notice, m.isError = "Not in a table", true
		}
		return
	}
	switch msg.String() {
	case "alt+m":
		if err := m.view.SetMode(modeCycle[b.Mode()]); err != nil {
			m.notice, m.isError = err.Error(), true
		}
	case "ctrl+l":
		if href := linkAt(b.GetValue(), b.Cursor()); href != "" {
			m.view.OpenLink(href)
		}
	case "enter":
		b.Insert("\n")
	case "tab":
		b.Insert("\t")
	case "backspace":
		b.DeleteBackward()
	case "left":
		b.MoveCursor(-1)
	case "right":
		b.MoveCursor(1)
	case "up":
		b.MoveLine(-1)
	case "down":
		b.MoveLine(1)
	case "home":
		b.MoveCursor(-(columnOf(b.GetValue(), b.Cursor()) - 1))
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			if !msg.Alt {
				b.Insert(string(msg.Runes))
			}
		}
	}
}

func columnOf(text string, offset int) int {
	_, col := lineColumn(text, offset)
	return col
}

// linkAt returns the first link target on the source line holding offset.
func linkAt(text string, offset int) string {
	runes := []rune(text)
	offset = max(0, min(offset, len(runes)))
	start, end := offset, offset
	for start > 0 && runes[start-1] != '\n' {
		start--
	}
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	match := linkPattern.FindStringSubmatch(string(runes[start:end]))
	for _, g := range match[min(1, len(match)):] {
		if g != "" {
			return g
		}
	}
	return ""
}

func (m Model) outlineVisible() bool {
	o := m.view.Outline()
	return o != nil && o.Visible() && m.view.State() == webview.Ready
}

func (m Model) chromeHeight() int {
	h := 2
	if m.view.ToolbarVisible() {
		h++
	}
	if m.prompt.Focused() {
		h++
	}
	return h + m.panel.height(m.view.Engine())
}

// refresh lays the document out to the space left by the chrome and
// repaints the viewport.
func (m *Model) refresh() {
	if m.width == 0 || m.height == 0 {
		return
	}
	width := m.width
	if m.outlineVisible() {
		width -= min(m.view.Outline().Columns()+1, width/2)
	}
	width = max(width, 1)
	m.view.SetWidth(width)

	m.doc.vp.Width = width
	m.doc.vp.Height = max(m.height-m.chromeHeight(), 1)

	b, ok := m.view.Session().Buffer()
	if !ok {
		m.doc.vp.SetContent("")
		return
	}
	doc := b.Document()

	cursor := cellPos{line: -1}
	if b.Mode() == editor.ModeSV && !m.panel.active() && !m.prompt.Focused() {
		if pos, found := sourceCursor(doc, b.GetValue(), b.Cursor()); found {
			cursor = pos
		}
	}
	pal := newPalette(m.view.UseThemeColor())
	m.doc.vp.SetContent(renderDocument(doc, m.view.Overlay().Rects(), cursor, pal))

	if cursor.line >= 0 {
		if cursor.line < m.doc.vp.YOffset {
			m.doc.vp.SetYOffset(cursor.line)
		} else if cursor.line >= m.doc.vp.YOffset+m.doc.vp.Height {
			m.doc.vp.SetYOffset(cursor.line - m.doc.vp.Height + 1)
		}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header() + "\n")
	if m.view.ToolbarVisible() {
		b.WriteString(helpStyle.Render("^S save  ^F find  ^H replace  ^O outline  alt+m mode  ^U upload  alt+i image size  ^L open link") + "\n")
	}
	if panel := m.panel.view(m.view.Engine(), m.width); panel != "" {
		b.WriteString(panel + "\n")
	}

	body := m.doc.vp.View()
	if m.outlineVisible() {
		side := m.outlineView(m.width-m.doc.vp.Width-1, m.doc.vp.Height)
		sep := outlineBorder.Render(strings.TrimSuffix(strings.Repeat("│\n", m.doc.vp.Height), "\n"))
		if m.view.Outline().Position() == config.OutlineRight {
			body = lipgloss.JoinHorizontal(lipgloss.Top, body, sep, side)
		} else {
			body = lipgloss.JoinHorizontal(lipgloss.Top, side, sep, body)
		}
	}
	b.WriteString(body + "\n")

	if m.prompt.Focused() {
		b.WriteString(m.prompt.View() + "\n")
	}
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) header() string {
	title := m.title
	if title == "" {
		title = "mdedit"
	}
	h := titleStyle.Render(title)
	if buf, ok := m.view.Session().Buffer(); ok {
		h += " " + dimStyle.Render("["+buf.Mode()+"]")
	} else if m.view.State() != webview.Ready {
		h += " " + dimStyle.Render("waiting for host...")
	}
	return h
}

func (m Model) outlineView(width, height int) string {
	if width <= 0 {
		return ""
	}
	b, ok := m.view.Session().Buffer()
	if !ok {
		return ""
	}
	top := m.doc.vp.YOffset

	var lines []string
	for _, e := range editor.OutlineEntries(b.Document()) {
		if len(lines) >= height {
			break
		}
		indent := strings.Repeat(" ", max(e.Level-1, 0))
		text := truncate(indent+e.Text, width)
		if e.Line >= top && e.Line < top+m.doc.vp.Height {
			text = selectedStyle.Render(text)
		} else {
			text = dimStyle.Render(text)
		}
		lines = append(lines, text)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) statusLine() string {
	if m.notice != "" {
		width := max(m.width, 20)
		text := truncate(m.notice, width)
		if m.isError {
			return errorStyle.Render(text)
		}
		return activeStyle.Render(text)
	}
	var parts []string
	if b, ok := m.view.Session().Buffer(); ok {
		line, col := lineColumn(b.GetValue(), b.Cursor())
		parts = append(parts, fmt.Sprintf("Ln %d, Col %d", line, col))
	}
	if m.view.Session().Fallback() {
		parts = append(parts, "minimal mode")
	}
	parts = append(parts, "ctrl+c quit")
	return helpStyle.Render(strings.Join(parts, "  "))
}

// truncate fits s on one line of at most max terminal columns.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if runewidth.StringWidth(s) <= max {
		return s
	}
	if max <= 3 {
		return runewidth.Truncate(s, max, "")
	}
	return runewidth.Truncate(s, max, "...")
}
