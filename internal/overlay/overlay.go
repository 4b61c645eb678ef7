// Package overlay draws search highlights as rectangles over the laid out
// document. It never edits the document itself.
package overlay

import (
	"log"
	"time"

	"github.com/mgomes/mdedit/internal/debounce"
	"github.com/mgomes/mdedit/internal/layout"
	"github.com/mgomes/mdedit/internal/search"
)

const (
	ScrollSettleInterval = 100 * time.Millisecond
	ScrollSettleAttempts = 3
)

// ContentRoot is the rendered content the overlay measures against.
type ContentRoot interface {
	TextNodes() []layout.TextNode
	RangeRects(node, start, end int) ([]layout.Rect, error)
	Visible() bool
}

// Scroller is the scroll container holding the content.
type Scroller interface {
	Offset() int
	Height() int
	ScrollTo(offset int)
}

// ScrollSettler is implemented by scrollers that animate.
type ScrollSettler interface {
	ScrollSettled() bool
}

type Highlight struct {
	layout.Rect
	Index   int
	Current bool
}

type params struct {
	query     string
	current   int
	matchCase bool
	wholeWord bool
	useRegex  bool
}

type Overlay struct {
	root       func() ContentRoot
	scroller   Scroller
	sched      debounce.Scheduler
	highlights []Highlight
	last       *params
	settle     debounce.Timer
	onChange   func()
}

// New builds an overlay. root is asked for the content on every render, so
// a mode switch in the editor is picked up without re-wiring.
func New(root func() ContentRoot, scroller Scroller, sched debounce.Scheduler) *Overlay {
	if sched == nil {
		sched = debounce.RealScheduler{}
	}
	return &Overlay{root: root, scroller: scroller, sched: sched}
}

// SetChangeHandler registers fn to run whenever the highlight set changes.
func (o *Overlay) SetChangeHandler(fn func()) {
	o.onChange = fn
}

func (o *Overlay) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}

// ShowHighlights replaces all highlights with the matches of query in the
// rendered text and returns how many rects were drawn. A match that wraps
// produces one rect per visual line.
func (o *Overlay) ShowHighlights(query string, current int, matchCase, wholeWord, useRegex bool) int {
	o.highlights = nil
	o.last = &params{query, current, matchCase, wholeWord, useRegex}
	defer o.changed()

	if query == "" {
		return 0
	}

	root := o.contentRoot()
	if root == nil {
		log.Printf("overlay: no visible content root")
		return 0
	}

	m, err := search.Compile(query, search.Options{
		MatchCase:      matchCase,
		MatchWholeWord: wholeWord,
		UseRegex:       useRegex,
	})
	if err != nil {
		return 0
	}

	for _, node := range root.TextNodes() {
		if node.Text == "" {
			continue
		}
		for _, match := range m.Find([]rune(node.Text)) {
			rects, err := root.RangeRects(node.ID, match.Start, match.End())
			if err != nil {
				log.Printf("overlay: skipping match in node %d: %v", node.ID, err)
				continue
			}
			for _, r := range rects {
				if r.Empty() {
					continue
				}
				o.highlights = append(o.highlights, Highlight{Rect: r, Index: len(o.highlights)})
			}
		}
	}

	if current >= 0 && current < len(o.highlights) {
		o.highlights[current].Current = true
	}
	return len(o.highlights)
}

func (o *Overlay) contentRoot() ContentRoot {
	if o.root == nil {
		return nil
	}
	root := o.root()
	if root == nil || !root.Visible() {
		return nil
	}
	return root
}

// UpdateCurrentHighlight moves the current marker without re-measuring.
func (o *Overlay) UpdateCurrentHighlight(index int) {
	for i := range o.highlights {
		o.highlights[i].Current = i == index
	}
	if o.last != nil {
		o.last.current = index
	}
	o.changed()
}

// ScrollToHighlight centers highlight index in the scroller, then resyncs
// once scrolling has settled.
func (o *Overlay) ScrollToHighlight(index int) {
	if o.scroller == nil || index < 0 || index >= len(o.highlights) {
		return
	}

	h := o.highlights[index]
	target := int(h.Top+h.Height/2) - o.scroller.Height()/2
	o.scroller.ScrollTo(max(target, 0))

	if o.settle != nil {
		o.settle.Stop()
	}
	ready := func() bool { return true }
	if s, ok := o.scroller.(ScrollSettler); ok {
		ready = s.ScrollSettled
	}
	o.settle = debounce.Poll(o.sched, ScrollSettleInterval, ScrollSettleAttempts, ready, func(bool) {
		o.settle = nil
		o.Resync()
	})
}

// Resync replays the last ShowHighlights call.
func (o *Overlay) Resync() {
	if o.last == nil {
		return
	}
	p := *o.last
	o.ShowHighlights(p.query, p.current, p.matchCase, p.wholeWord, p.useRegex)
}

func (o *Overlay) Clear() {
	if o.settle != nil {
		o.settle.Stop()
		o.settle = nil
	}
	o.highlights = nil
	o.last = nil
	o.changed()
}

// Rects returns the highlights in document coordinates.
func (o *Overlay) Rects() []Highlight {
	return append([]Highlight(nil), o.highlights...)
}

// ViewportRects returns the highlights that intersect the scroller's
// window, translated to viewport coordinates.
func (o *Overlay) ViewportRects() []Highlight {
	if o.scroller == nil {
		return o.Rects()
	}
	top := float64(o.scroller.Offset())
	bottom := top + float64(o.scroller.Height())

	var out []Highlight
	for _, h := range o.highlights {
		if h.Top+h.Height <= top || h.Top >= bottom {
			continue
		}
		h.Top -= top
		out = append(out, h)
	}
	return out
}

var _ search.Highlighter = (*Overlay)(nil)
