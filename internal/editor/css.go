package editor

import (
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mgomes/mdedit/internal/config"
	"github.com/mgomes/mdedit/internal/debounce"
)

// SwapTimeout is how long a replaced stylesheet link survives if its
// successor never reports loading.
const SwapTimeout = 5 * time.Second

// Link is a stylesheet link in the document head.
type Link struct {
	ID      int
	Source  string
	Href    string
	Dynamic bool
	Loaded  bool
}

type headEntry struct {
	link   *Link
	custom bool
}

// Stylesheets tracks the head's stylesheet links and the custom style
// block, in document order.
type Stylesheets struct {
	sched   debounce.Scheduler
	head    []headEntry
	custom  string
	nextID  int
	pending map[int]pendingSwap
	onLoad  func(Link)
}

type pendingSwap struct {
	old   int
	timer debounce.Timer
}

func NewStylesheets(sched debounce.Scheduler) *Stylesheets {
	if sched == nil {
		sched = debounce.RealScheduler{}
	}
	return &Stylesheets{sched: sched, pending: map[int]pendingSwap{}}
}

// SetLoadHandler registers fn to be told about every inserted link so it
// can fetch it and report back through Loaded.
func (s *Stylesheets) SetLoadHandler(fn func(Link)) {
	s.onLoad = fn
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func baseName(p string) string {
	p = normalizePath(p)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// ResourceHref builds the href for a stylesheet. Local files get a
// cache-busting timestamp.
func ResourceHref(p string, timestamp int64) string {
	p = normalizePath(p)
	if isRemote(p) {
		return p
	}
	uri := p
	if !strings.HasPrefix(uri, "file:") {
		uri = "file://" + uri
	}
	return uri + "?t=" + strconv.FormatInt(timestamp, 10)
}

// Find locates the link for cssFile: by recorded source first, then by
// full path in the href, then by file name.
func (s *Stylesheets) Find(cssFile string) *Link {
	normalized := normalizePath(cssFile)
	name := baseName(normalized)

	for _, e := range s.head {
		if e.link == nil || e.link.Source == "" {
			continue
		}
		src := e.link.Source
		if src == cssFile || src == normalized || strings.HasSuffix(src, "/"+name) {
			return e.link
		}
	}

	for _, e := range s.head {
		if e.link == nil {
			continue
		}
		if strings.Contains(e.link.Href, normalized) {
			return e.link
		}
		u, err := url.Parse(e.link.Href)
		if err != nil {
			if name != "" && strings.Contains(e.link.Href, name) {
				return e.link
			}
			continue
		}
		if path.Base(u.Path) == name {
			return e.link
		}
	}
	return nil
}

func (s *Stylesheets) newLink(source, href string) *Link {
	s.nextID++
	return &Link{ID: s.nextID, Source: source, Href: href, Dynamic: true}
}

func (s *Stylesheets) indexOf(id int) int {
	for i, e := range s.head {
		if e.link != nil && e.link.ID == id {
			return i
		}
	}
	return -1
}

func (s *Stylesheets) insertAt(i int, l *Link) {
	s.head = append(s.head, headEntry{})
	copy(s.head[i+1:], s.head[i:])
	s.head[i] = headEntry{link: l}
	if s.onLoad != nil {
		s.onLoad(*l)
	}
}

func (s *Stylesheets) remove(id int) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.head = append(s.head[:i], s.head[i+1:]...)
	return true
}

func (s *Stylesheets) customIndex() int {
	for i, e := range s.head {
		if e.custom {
			return i
		}
	}
	return -1
}

// AddStatic appends a link that Reload leaves alone.
func (s *Stylesheets) AddStatic(href string) Link {
	s.nextID++
	l := &Link{ID: s.nextID, Href: href, Loaded: true}
	s.head = append(s.head, headEntry{link: l})
	return *l
}

// Reload rebuilds every dynamic link from the configured files in order.
func (s *Stylesheets) Reload(files []string, customCSS, order string, timestamp int64) {
	kept := s.head[:0]
	for _, e := range s.head {
		if e.link != nil && e.link.Dynamic {
			s.cancelSwap(e.link.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.head = kept

	s.custom = customCSS
	if s.customIndex() < 0 {
		s.head = append(s.head, headEntry{custom: true})
	}
	if files == nil {
		return
	}

	s.addExternal(files, timestamp)
	if order != config.LoadOrderCustomFirst {
		ci := s.customIndex()
		s.head = append(s.head[:ci], s.head[ci+1:]...)
		s.head = append(s.head, headEntry{custom: true})
	}
}

func (s *Stylesheets) addExternal(files []string, timestamp int64) {
	seen := map[string]bool{}
	for _, f := range files {
		normalized := normalizePath(f)
		if seen[normalized] {
			log.Printf("css: skipping duplicate stylesheet %s", normalized)
			continue
		}
		seen[normalized] = true

		l := s.newLink(normalized, ResourceHref(normalized, timestamp))
		if existing := s.Find(f); existing != nil {
			i := s.indexOf(existing.ID)
			s.remove(existing.ID)
			s.insertAt(i, l)
			continue
		}
		s.insertAt(len(s.head), l)
	}
}

// Update hot-swaps the link for cssFile. The old link stays until the new
// one loads or SwapTimeout passes.
func (s *Stylesheets) Update(cssFile, uri string, timestamp int64) Link {
	l := s.newLink(cssFile, uri+"?t="+strconv.FormatInt(timestamp, 10))

	if old := s.Find(cssFile); old != nil {
		oldID := old.ID
		s.insertAt(s.indexOf(oldID), l)
		timer := s.sched.After(SwapTimeout, func() {
			if s.remove(oldID) {
				log.Printf("css: removed stale stylesheet %d after timeout", oldID)
			}
			delete(s.pending, l.ID)
		})
		s.pending[l.ID] = pendingSwap{old: oldID, timer: timer}
		return *l
	}

	name := baseName(cssFile)
	at := len(s.head)
	for i, e := range s.head {
		if e.link != nil && name != "" && strings.Contains(e.link.Href, name) {
			at = i + 1
		}
	}
	s.insertAt(at, l)
	return *l
}

// Loaded marks link id as loaded and drops the link it replaced.
func (s *Stylesheets) Loaded(id int) {
	if i := s.indexOf(id); i >= 0 {
		s.head[i].link.Loaded = true
	}
	p, ok := s.pending[id]
	if !ok {
		return
	}
	p.timer.Stop()
	s.remove(p.old)
	delete(s.pending, id)
}

func (s *Stylesheets) cancelSwap(id int) {
	if p, ok := s.pending[id]; ok {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

// Delete removes the link for cssFile and reports whether one existed.
func (s *Stylesheets) Delete(cssFile string) bool {
	l := s.Find(cssFile)
	if l == nil {
		log.Printf("css: no stylesheet found for deleted file %s", cssFile)
		return false
	}
	s.cancelSwap(l.ID)
	return s.remove(l.ID)
}

func (s *Stylesheets) CustomCSS() string {
	return s.custom
}

// Links returns the links in head order.
func (s *Stylesheets) Links() []Link {
	var out []Link
	for _, e := range s.head {
		if e.link != nil {
			out = append(out, *e.link)
		}
	}
	return out
}

// Order lists the head in document order, with the custom style block
// shown as "<custom>".
func (s *Stylesheets) Order() []string {
	out := make([]string, 0, len(s.head))
	for _, e := range s.head {
		if e.custom {
			out = append(out, "<custom>")
			continue
		}
		if e.link.Source != "" {
			out = append(out, e.link.Source)
		} else {
			out = append(out, e.link.Href)
		}
	}
	return out
}
