// Package webview is the editing endpoint of the host/webview link. It owns
// the editor session and everything layered on it, applies host commands
// and reports edits back to the host.
package webview

import (
	"context"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mgomes/mdedit/internal/debounce"
	"github.com/mgomes/mdedit/internal/editor"
	"github.com/mgomes/mdedit/internal/overlay"
	"github.com/mgomes/mdedit/internal/protocol"
	"github.com/mgomes/mdedit/internal/search"
)

// EditDelay is the input quiet period before an edit is sent to the host.
const EditDelay = 100 * time.Millisecond

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// Sender delivers messages to the host.
type Sender interface {
	Send(m protocol.Message) error
}

type Config struct {
	Sender    Sender
	Scheduler debounce.Scheduler
	Scroller  overlay.Scroller
	Factory   editor.Factory
	// OnStatus receives every find panel change.
	OnStatus func(search.Status)
	// OnChange runs after anything visible changed.
	OnChange func()
	Now      func() time.Time
}

type Webview struct {
	sender   Sender
	sched    debounce.Scheduler
	now      func() time.Time
	onChange func()

	state   State
	theme   string
	session *editor.Session
	engine  *search.Engine
	overlay *overlay.Overlay
	css     *editor.Stylesheets
	outline *editor.Outline
	edits   *debounce.Debouncer

	width         int
	toolbar       bool
	useThemeColor bool
}

func New(cfg Config) *Webview {
	sched := cfg.Scheduler
	if sched == nil {
		sched = debounce.RealScheduler{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	w := &Webview{
		sender:   cfg.Sender,
		sched:    sched,
		now:      now,
		onChange: cfg.OnChange,
		session:  editor.NewSession(cfg.Factory),
		css:      editor.NewStylesheets(sched),
		toolbar:  true,
	}
	w.overlay = overlay.New(w.session.ContentRoot, cfg.Scroller, sched)
	w.overlay.SetChangeHandler(w.changed)
	w.engine = search.NewEngine(search.EngineConfig{
		Editor:      searchTarget{w},
		Highlighter: w.overlay,
		Scheduler:   sched,
		OnStatus:    cfg.OnStatus,
	})
	w.edits = debounce.New(sched, EditDelay, w.sendEdit)
	w.css.SetLoadHandler(w.loadStylesheet)
	return w
}

func (w *Webview) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *Webview) send(m protocol.Message) {
	if w.sender == nil {
		return
	}
	if err := w.sender.Send(m); err != nil {
		log.Printf("webview: failed to send %s: %v", m.Command, err)
	}
}

// Start announces the webview to the host, which answers with init.
func (w *Webview) Start() {
	w.send(protocol.Ready())
}

func (w *Webview) State() State {
	return w.state
}

func (w *Webview) Theme() string {
	return w.theme
}

func (w *Webview) Session() *editor.Session {
	return w.session
}

func (w *Webview) Engine() *search.Engine {
	return w.engine
}

func (w *Webview) Overlay() *overlay.Overlay {
	return w.overlay
}

func (w *Webview) Stylesheets() *editor.Stylesheets {
	return w.css
}

// Outline is nil until the editor is initialized.
func (w *Webview) Outline() *editor.Outline {
	return w.outline
}

func (w *Webview) ToolbarVisible() bool {
	return w.toolbar
}

func (w *Webview) UseThemeColor() bool {
	return w.useThemeColor
}

// Dispatch applies one host command. Commands that need the editor are
// dropped until init has been received.
func (w *Webview) Dispatch(m protocol.Message) {
	if m.Command.Direction() != protocol.ToWebview {
		log.Printf("webview: ignoring %s", m.Command)
		return
	}
	defer w.changed()

	switch m.Command {
	case protocol.CmdUpdateCSS:
		w.css.Update(m.CSSFile, m.URI, m.Timestamp)
		return
	case protocol.CmdReloadAllCSS:
		if m.Config != nil {
			w.css.Reload(m.Config.ExternalCSSFiles, m.Config.CustomCSS, m.Config.CSSLoadOrder, w.now().UnixMilli())
		}
		return
	case protocol.CmdCSSFileDeleted:
		w.css.Delete(m.CSSFile)
		return
	}

	if m.Command == protocol.CmdUpdate && m.Type == protocol.UpdateInit {
		w.init(m)
		return
	}
	if w.state != Ready {
		log.Printf("webview: dropping %s before init", m.Command)
		return
	}

	switch m.Command {
	case protocol.CmdUpdate:
		w.session.SetValue(m.Content)
		w.engine.ContentChanged()
	case protocol.CmdUploaded:
		for _, p := range m.Paths {
			w.session.InsertValue(editor.InsertMarkup(p))
		}
	case protocol.CmdConfigUpdate:
		if m.Config != nil {
			w.applyConfig(*m.Config)
		}
	case protocol.CmdOpenFindDialog:
		w.engine.Show(m.ShowReplace, "")
	}
}

func (w *Webview) init(m protocol.Message) {
	w.edits.Cancel()
	w.engine.Hide()

	w.theme = m.Theme
	opts := editor.BuildOptions(m.Theme, m.Options)
	hooks := editor.Hooks{Input: w.input}
	if err := w.session.Create(m.Content, opts, hooks); err != nil {
		log.Printf("webview: %v", err)
		w.send(protocol.Error(err.Error()))
		w.state = Uninitialized
		return
	}
	if b, ok := w.session.Buffer(); ok && w.width > 0 {
		b.SetWidth(w.width)
	}

	w.toolbar = !opts.Sub("toolbarConfig").Bool("hide", false)
	w.useThemeColor = opts.Bool("useVscodeThemeColor", false)
	w.outline = editor.NewOutline(opts)
	w.outline.SetResizeHandler(func(width int) {
		w.send(protocol.UpdateOutlineWidth(width))
	})
	w.state = Ready
}

func (w *Webview) applyConfig(cfg protocol.ConfigPayload) {
	if w.outline != nil {
		w.outline.Apply(cfg)
	}
	if cfg.ShowToolbar != nil {
		w.toolbar = *cfg.ShowToolbar
	}
	if cfg.UseThemeColor != nil {
		w.useThemeColor = *cfg.UseThemeColor
	}
}

// input runs on every user edit.
func (w *Webview) input() {
	w.engine.ContentChanged()
	w.edits.Trigger()
}

// searchTarget is the editor as the find engine sees it. Replacements are
// user edits, so they go out through the edit debouncer like typing does.
type searchTarget struct {
	w *Webview
}

func (t searchTarget) GetValue() string {
	return t.w.session.GetValue()
}

func (t searchTarget) SetValue(content string) {
	t.w.session.SetValue(content)
	t.w.edits.Trigger()
}

func (t searchTarget) Settled() bool {
	return t.w.session.Settled()
}

func (w *Webview) sendEdit() {
	if !w.session.Active() {
		return
	}
	w.send(protocol.Edit(w.session.GetValue()))
	w.changed()
}

// loadStylesheet reports a link as loaded once its file is readable. Remote
// links load immediately. A missing file never loads, so a swap falls back
// to the timeout.
func (w *Webview) loadStylesheet(l editor.Link) {
	if path, ok := localPath(l.Href); ok {
		if _, err := os.Stat(path); err != nil {
			log.Printf("webview: stylesheet %s not loaded: %v", path, err)
			return
		}
	}
	w.sched.After(0, func() {
		w.css.Loaded(l.ID)
		w.changed()
	})
}

func localPath(href string) (string, bool) {
	if !strings.HasPrefix(href, "file://") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return strings.TrimPrefix(href, "file://"), true
	}
	return u.Path, true
}

// SetWidth lays the document out to width columns and re-measures the
// highlights.
func (w *Webview) SetWidth(width int) {
	if width == w.width {
		return
	}
	w.width = width
	if b, ok := w.session.Buffer(); ok {
		b.SetWidth(width)
	}
	w.overlay.Resync()
}

// FlushEdit sends a pending edit right away.
func (w *Webview) FlushEdit() {
	w.edits.Flush()
}

// Save sends the current content to be written to disk.
func (w *Webview) Save() {
	if !w.session.Active() {
		return
	}
	w.edits.Cancel()
	w.send(protocol.Save(w.session.GetValue()))
}

// SaveOptions persists the widget's current preferences on the host.
func (w *Webview) SaveOptions() {
	if !w.session.Active() {
		return
	}
	w.send(protocol.SaveOptions(w.session.Options()))
}

func (w *Webview) ResetConfig() {
	w.send(protocol.ResetConfig())
}

// SetMode switches the widget's rendering mode and saves the preference.
func (w *Webview) SetMode(mode string) error {
	b, ok := w.session.Buffer()
	if !ok {
		return nil
	}
	if err := b.SetMode(mode); err != nil {
		return err
	}
	w.overlay.Resync()
	w.SaveOptions()
	w.changed()
	return nil
}

func (w *Webview) OpenLink(href string) {
	if href == "" {
		return
	}
	w.send(protocol.OpenLink(href))
}

// Upload reads local files and sends them to the host. Unreadable files
// are reported and skipped.
func (w *Webview) Upload(files []string) {
	var entries []protocol.UploadFile
	now := w.now()
	for _, f := range files {
		entry, err := editor.ReadUpload(now, f)
		if err != nil {
			w.send(protocol.Error(err.Error()))
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return
	}
	w.send(protocol.Upload(entries))
}

func (w *Webview) Info(msg string) {
	w.send(protocol.Info(msg))
}

func (w *Webview) Error(msg string) {
	w.send(protocol.Error(msg))
}

// Close drops pending work and tears down the widget.
func (w *Webview) Close() {
	w.edits.Cancel()
	w.engine.Hide()
	w.session.Destroy()
	w.state = Uninitialized
}

// Listen hands every message received on in to deliver until ctx is done
// or in closes. deliver decides which goroutine runs Dispatch.
func Listen(ctx context.Context, in <-chan protocol.Message, deliver func(protocol.Message)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				return nil
			}
			deliver(m)
		}
	}
}
