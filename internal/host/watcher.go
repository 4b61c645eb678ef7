package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	settleDelay  = 100 * time.Millisecond
	pendingTick  = 50 * time.Millisecond
	targetDoc    = "document"
	targetConfig = "config"
	targetCSS    = "css"
)

type EventKind int

const (
	DocumentChanged EventKind = iota + 1
	ConfigChanged
	CSSChanged
	CSSDeleted
)

func (k EventKind) String() string {
	switch k {
	case DocumentChanged:
		return "document-changed"
	case ConfigChanged:
		return "config-changed"
	case CSSChanged:
		return "css-changed"
	case CSSDeleted:
		return "css-deleted"
	default:
		return "unknown"
	}
}

// Event is a settled change to one watched file. CSSFile is the stylesheet
// as written in the config; Path is the resolved file.
type Event struct {
	Kind    EventKind
	Path    string
	CSSFile string
}

type target struct {
	kind    string
	cssFile string
}

// CSSTarget is a configured stylesheet and the file it resolved to.
type CSSTarget struct {
	File     string
	FullPath string
}

// Watcher reports changes to the document, the config file and local
// stylesheets. Files are watched through their directories so editors that
// save by rename, and stylesheets that do not exist yet, are both seen.
type Watcher struct {
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	targets   map[string]target
	dirs      map[string]bool
	pending   map[string]time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	onEvent   func(Event)
	onMessage func(string)
}

func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher: fsw,
		targets: make(map[string]target),
		dirs:    make(map[string]bool),
		pending: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}, nil
}

func (w *Watcher) SetMessageHandler(fn func(string)) {
	w.onMessage = fn
}

// SetEventHandler registers fn for settled events. It runs on the watcher's
// goroutine.
func (w *Watcher) SetEventHandler(fn func(Event)) {
	w.onEvent = fn
}

func (w *Watcher) WatchDocument(path string) error {
	return w.setTargets(targetDoc, map[string]target{filepath.Clean(path): {kind: targetDoc}})
}

func (w *Watcher) WatchConfig(path string) error {
	return w.setTargets(targetConfig, map[string]target{filepath.Clean(path): {kind: targetConfig}})
}

// WatchCSS replaces the watched stylesheets. Stylesheets whose directory
// does not exist are skipped.
func (w *Watcher) WatchCSS(files []CSSTarget) error {
	next := make(map[string]target, len(files))
	for _, f := range files {
		next[filepath.Clean(f.FullPath)] = target{kind: targetCSS, cssFile: f.File}
	}
	return w.setTargets(targetCSS, next)
}

func (w *Watcher) setTargets(kind string, next map[string]target) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p, t := range w.targets {
		if t.kind == kind {
			delete(w.targets, p)
			delete(w.pending, p)
		}
	}

	var firstErr error
	for p, t := range next {
		dir := filepath.Dir(p)
		if _, err := os.Stat(dir); err != nil {
			w.message(fmt.Sprintf("Not watching %s: %v", p, err))
			if kind != targetCSS && firstErr == nil {
				firstErr = fmt.Errorf("failed to watch %s: %w", p, err)
			}
			continue
		}
		w.targets[p] = t
	}
	if err := w.syncDirs(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// syncDirs adds watches for directories holding a target and removes the
// ones no target needs anymore.
func (w *Watcher) syncDirs() error {
	want := make(map[string]bool)
	for p := range w.targets {
		want[filepath.Dir(p)] = true
	}

	var firstErr error
	for dir := range want {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			continue
		}
		w.dirs[dir] = true
	}
	for dir := range w.dirs {
		if !want[dir] {
			w.watcher.Remove(dir) //nolint:errcheck
			delete(w.dirs, dir)
		}
	}
	return firstErr
}

// Start processes events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	go w.processEvents(ctx)
	go w.processPending(ctx)

	select {
	case <-ctx.Done():
	case <-w.stop:
	}
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.message(fmt.Sprintf("Watch error: %v", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.targets[path]; !ok {
		return
	}
	w.pending[path] = time.Now()
}

func (w *Watcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(pendingTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending emits one event per path that has been quiet for
// settleDelay. Whether the file still exists decides between a change and
// a deletion, so a save by delete-and-recreate reads as a change.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	now := time.Now()
	var events []Event
	for path, ts := range w.pending {
		if now.Sub(ts) < settleDelay {
			continue
		}
		delete(w.pending, path)
		t, ok := w.targets[path]
		if !ok {
			continue
		}
		if ev, ok := settledEvent(path, t); ok {
			events = append(events, ev)
		}
	}
	w.mu.Unlock()

	for _, ev := range events {
		w.message(fmt.Sprintf("Detected %s: %s", ev.Kind, ev.Path))
		if w.onEvent != nil {
			w.onEvent(ev)
		}
	}
}

func settledEvent(path string, t target) (Event, bool) {
	_, err := os.Stat(path)
	exists := err == nil

	switch t.kind {
	case targetDoc:
		return Event{Kind: DocumentChanged, Path: path}, exists
	case targetConfig:
		return Event{Kind: ConfigChanged, Path: path}, exists
	case targetCSS:
		if exists {
			return Event{Kind: CSSChanged, Path: path, CSSFile: t.cssFile}, true
		}
		return Event{Kind: CSSDeleted, Path: path, CSSFile: t.cssFile}, true
	}
	return Event{}, false
}

func (w *Watcher) message(msg string) {
	if w.onMessage != nil {
		w.onMessage(msg)
	} else {
		fmt.Println(msg)
	}
}
