// Package host is the document-owning endpoint of the host/webview link. It
// answers webview requests, persists edits and preferences, writes uploaded
// assets and forwards file and config changes to the webview.
package host

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mgomes/mdedit/internal/config"
	"github.com/mgomes/mdedit/internal/debounce"
	"github.com/mgomes/mdedit/internal/editor"
	"github.com/mgomes/mdedit/internal/protocol"
)

// PushDelay is the quiet period before outside document changes are pushed
// to the webview.
const PushDelay = 300 * time.Millisecond

const errorPrefix = "[mdedit] "

// Prefs persists the widget preferences between sessions.
type Prefs interface {
	GetOptions() (map[string]any, error)
	SaveOptions(opts map[string]any) error
	ResetOptions() error
}

// recents is implemented by prefs that also keep a recent documents list.
type recents interface {
	UpsertDocument(path, title string, modifiedAt, openedAt int64) (int64, error)
}

// Sender delivers messages to the webview.
type Sender interface {
	Send(m protocol.Message) error
}

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notification is something the user should see.
type Notification struct {
	Level Level
	Text  string
}

type Config struct {
	Document   *Document
	Config     *config.Config
	ConfigPath string
	Prefs      Prefs
	Sender     Sender
	Scheduler  debounce.Scheduler
	// Opener opens a URL or file with the platform handler.
	Opener func(target string) error
	Now    func() time.Time
}

type Host struct {
	doc     *Document
	cfg     *config.Config
	cfgPath string
	prefs   Prefs
	sender  Sender
	sched   debounce.Scheduler
	opener  func(string) error
	now     func() time.Time
	push    *debounce.Debouncer
	active  bool
	title   string
	watcher *Watcher

	onNotify func(Notification)
	onTitle  func(string)

	events chan func()
}

func New(cfg Config) *Host {
	h := &Host{
		doc:     cfg.Document,
		cfg:     cfg.Config,
		cfgPath: cfg.ConfigPath,
		prefs:   cfg.Prefs,
		sender:  cfg.Sender,
		opener:  cfg.Opener,
		now:     cfg.Now,
		events:  make(chan func(), 64),
	}
	if h.cfg == nil {
		h.cfg = &config.Config{}
		h.cfg.ApplyDefaults()
	}
	if h.opener == nil {
		h.opener = OpenExternal
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.sched = cfg.Scheduler
	if h.sched == nil {
		h.sched = debounce.LoopScheduler{Post: h.Post}
	}
	h.push = debounce.New(h.sched, PushDelay, h.pushDocument)
	h.title = h.doc.Title()
	return h
}

func (h *Host) SetNotificationHandler(fn func(Notification)) {
	h.onNotify = fn
}

// SetTitleHandler registers fn to run when the document title changes.
func (h *Host) SetTitleHandler(fn func(string)) {
	h.onTitle = fn
}

// SetSender points the host at a new webview connection.
func (h *Host) SetSender(s Sender) {
	h.sender = s
}

func (h *Host) SetWatcher(w *Watcher) {
	h.watcher = w
}

// SetActive records whether the webview panel has focus. Only an active
// panel's edits are applied, and only an inactive one is sent outside
// changes.
func (h *Host) SetActive(active bool) {
	h.active = active
}

func (h *Host) Active() bool {
	return h.active
}

func (h *Host) Document() *Document {
	return h.doc
}

func (h *Host) Title() string {
	return h.title
}

func (h *Host) Config() *config.Config {
	return h.cfg
}

func (h *Host) send(m protocol.Message) {
	if h.sender == nil {
		return
	}
	if err := h.sender.Send(m); err != nil {
		log.Printf("host: failed to send %s: %v", m.Command, err)
	}
}

func (h *Host) notify(level Level, text string) {
	if level == LevelError {
		text = errorPrefix + text
		log.Printf("host: %s", text)
	}
	if h.onNotify != nil {
		h.onNotify(Notification{Level: level, Text: text})
	}
}

func (h *Host) updateTitle() {
	title := h.doc.Title()
	if title == h.title {
		return
	}
	h.title = title
	if h.onTitle != nil {
		h.onTitle(title)
	}
}

// Handle applies one webview message.
func (h *Host) Handle(m protocol.Message) {
	switch m.Command {
	case protocol.CmdReady:
		h.handleReady()
	case protocol.CmdEdit:
		if !h.active {
			log.Printf("host: ignoring edit from inactive panel")
			return
		}
		h.doc.Apply(m.Content)
		h.updateTitle()
	case protocol.CmdSave:
		h.handleSave(m.Content)
	case protocol.CmdUpload:
		h.handleUpload(m.Files)
	case protocol.CmdOpenLink:
		h.handleOpenLink(m.Href)
	case protocol.CmdInfo:
		h.notify(LevelInfo, m.Content)
	case protocol.CmdError:
		h.notify(LevelError, m.Content)
	case protocol.CmdSaveOptions:
		h.savePrefs(func() error { return h.prefs.SaveOptions(m.Options) })
	case protocol.CmdResetConfig:
		h.savePrefs(func() error { return h.prefs.ResetOptions() })
	case protocol.CmdUpdateOutlineWidth:
		h.handleOutlineWidth(m.Width)
	default:
		log.Printf("host: unknown message command %s", m.Command)
	}
}

func (h *Host) handleReady() {
	opts := h.cfg.EditorOptions()
	if h.prefs != nil {
		saved, err := h.prefs.GetOptions()
		if err != nil {
			log.Printf("host: failed to load saved options: %v", err)
		}
		opts = editor.Merge(opts, saved)
	}
	h.send(protocol.Init(h.doc.Content(), h.cfg.Theme, opts))
	h.send(protocol.ReloadAllCSS(h.cssPayload()))
	h.recordOpen()
}

func (h *Host) handleSave(content string) {
	h.doc.Apply(content)
	if err := h.doc.Save(); err != nil {
		h.notify(LevelError, err.Error())
	}
	h.updateTitle()
	h.recordOpen()
}

func (h *Host) recordOpen() {
	r, ok := h.prefs.(recents)
	if !ok {
		return
	}
	_, err := r.UpsertDocument(h.doc.Path(), h.doc.Title(), h.doc.ModTime().Unix(), h.now().Unix())
	if err != nil {
		log.Printf("host: failed to record document: %v", err)
	}
}

func (h *Host) savePrefs(fn func() error) {
	if h.prefs == nil {
		return
	}
	if err := fn(); err != nil {
		h.notify(LevelError, fmt.Sprintf("failed to save options: %v", err))
	}
}

// handleUpload writes every file into the assets folder and replies with
// their document-relative paths. The batch stops at the first failure.
func (h *Host) handleUpload(files []protocol.UploadFile) {
	folder := AssetsFolder(h.cfg.ImageSaveFolder, h.doc.Path(), ProjectRoot(h.doc.Path()))
	if err := os.MkdirAll(folder, 0755); err != nil {
		h.notify(LevelError, fmt.Sprintf("Invalid image folder: %s", folder))
		return
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		data, err := base64.StdEncoding.DecodeString(f.Base64)
		if err != nil {
			h.notify(LevelError, fmt.Sprintf("failed to decode %s: %v", f.Name, err))
			return
		}
		dst := filepath.Join(folder, filepath.Base(f.Name))
		if err := os.WriteFile(dst, data, 0644); err != nil {
			h.notify(LevelError, fmt.Sprintf("failed to write %s: %v", dst, err))
			return
		}
		paths = append(paths, RelativeAsset(h.doc.Path(), dst))
	}
	h.send(protocol.Uploaded(paths))
}

func (h *Host) handleOpenLink(href string) {
	target := ResolveLink(h.doc.Path(), href)
	if err := h.opener(target); err != nil {
		h.notify(LevelError, fmt.Sprintf("failed to open %s: %v", target, err))
	}
}

func (h *Host) handleOutlineWidth(width int) {
	h.cfg.UpdateOutlineWidth(width)
	if h.cfgPath == "" {
		return
	}
	if err := h.cfg.SaveTo(h.cfgPath); err != nil {
		h.notify(LevelError, fmt.Sprintf("failed to save config: %v", err))
	}
}

// OpenFindDialog asks the webview to show its find panel.
func (h *Host) OpenFindDialog(showReplace bool) {
	h.send(protocol.OpenFindDialog(showReplace))
}

// HandleEvent applies a settled file event.
func (h *Host) HandleEvent(ev Event) {
	switch ev.Kind {
	case DocumentChanged:
		h.documentChanged()
	case ConfigChanged:
		h.reloadConfig()
	case CSSChanged:
		h.send(protocol.UpdateCSS(ev.CSSFile, ev.Path, fileURI(ev.Path), h.now().UnixMilli()))
	case CSSDeleted:
		h.send(protocol.CSSFileDeleted(ev.CSSFile))
	}
}

func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func (h *Host) documentChanged() {
	changed, err := h.doc.Reload()
	if err != nil {
		log.Printf("host: %v", err)
		return
	}
	if !changed {
		return
	}
	if h.active {
		return
	}
	h.push.Trigger()
}

func (h *Host) pushDocument() {
	h.send(protocol.Update(h.doc.Content(), h.cfg.Theme))
	h.updateTitle()
}

func (h *Host) reloadConfig() {
	if h.cfgPath == "" {
		return
	}
	updated, err := config.LoadFrom(h.cfgPath)
	if err != nil {
		h.notify(LevelError, fmt.Sprintf("failed to reload config: %v", err))
		return
	}
	h.ApplyConfig(updated)
}

// ApplyConfig switches to cfg and tells the webview about every group of
// settings that changed.
func (h *Host) ApplyConfig(cfg *config.Config) {
	changes := config.Diff(h.cfg, cfg)
	h.cfg = cfg
	if !changes.Any() {
		return
	}

	if changes.CSS {
		h.WatchStylesheets()
		h.send(protocol.ReloadAllCSS(h.cssPayload()))
	}
	if changes.Outline {
		show := cfg.ShowOutlineByDefault
		pos := cfg.OutlinePosition
		width := cfg.OutlineWidth
		themeColor := cfg.UseThemeColor
		h.send(protocol.ConfigUpdate(protocol.ConfigPayload{
			ShowOutlineByDefault: &show,
			OutlinePosition:      &pos,
			OutlineWidth:         &width,
			UseThemeColor:        &themeColor,
		}))
	}
	if changes.Toolbar {
		toolbar := cfg.ToolbarVisible()
		h.send(protocol.ConfigUpdate(protocol.ConfigPayload{ShowToolbar: &toolbar}))
	}
}

func (h *Host) cssPayload() protocol.ConfigPayload {
	return protocol.ConfigPayload{
		ExternalCSSFiles: h.cfg.ExternalCSSFiles,
		CustomCSS:        h.cfg.CustomCSS,
		CSSLoadOrder:     h.cfg.CSSLoadOrder,
	}
}

// CSSTargets resolves the configured local stylesheets.
func (h *Host) CSSTargets() []CSSTarget {
	root := ProjectRoot(h.doc.Path())
	var out []CSSTarget
	for _, f := range localCSSFiles(h.cfg.ExternalCSSFiles) {
		out = append(out, CSSTarget{File: f, FullPath: ResolveCSS(f, h.doc.Path(), root)})
	}
	return out
}

// WatchStylesheets points the watcher at the current stylesheets.
func (h *Host) WatchStylesheets() {
	if h.watcher == nil {
		return
	}
	if err := h.watcher.WatchCSS(h.CSSTargets()); err != nil {
		log.Printf("host: %v", err)
	}
}

// Post queues fn to run on the host loop.
func (h *Host) Post(fn func()) {
	h.events <- fn
}

// Run is the host event loop. Messages from in, posted callbacks and timer
// callbacks all run here, one at a time.
func (h *Host) Run(ctx context.Context, in <-chan protocol.Message) error {
	for {
		select {
		case <-ctx.Done():
			h.push.Cancel()
			return ctx.Err()
		case fn := <-h.events:
			fn()
		case m, ok := <-in:
			if !ok {
				h.push.Cancel()
				return nil
			}
			h.Handle(m)
		}
	}
}

// OpenExternal opens target with the platform's default handler.
func OpenExternal(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux":
		cmd = exec.Command("xdg-open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", target)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}
