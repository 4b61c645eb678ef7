package editor

import (
	"github.com/mgomes/mdedit/internal/config"
	"github.com/mgomes/mdedit/internal/layout"
	"github.com/mgomes/mdedit/internal/protocol"
)

const (
	// OutlineStep is the width change for one resize step.
	OutlineStep = 10
	// PixelsPerColumn converts outline widths to terminal columns.
	PixelsPerColumn = 10

	defaultOutlineWidth = 300
)

type OutlineEntry struct {
	Level      int
	Text       string
	Line       int
	SourceLine int
}

// Outline is the heading panel beside the document.
type Outline struct {
	visible      bool
	position     string
	width        int
	defaultWidth int
	resizable    bool
	onResize     func(width int)
}

func NewOutline(opts Options) *Outline {
	o := &Outline{
		visible:   opts.Bool("showOutlineByDefault", false),
		position:  opts.String("outlinePosition", config.OutlineLeft),
		resizable: opts.Bool("enableOutlineResize", true),
	}
	o.defaultWidth = config.ClampOutlineWidth(opts.Int("outlineWidth", defaultOutlineWidth))
	o.width = o.defaultWidth
	return o
}

// SetResizeHandler registers fn to run with every new width.
func (o *Outline) SetResizeHandler(fn func(width int)) {
	o.onResize = fn
}

// Apply takes the outline fields present in cfg and leaves the rest alone.
func (o *Outline) Apply(cfg protocol.ConfigPayload) {
	if cfg.ShowOutlineByDefault != nil {
		o.visible = *cfg.ShowOutlineByDefault
	}
	if cfg.OutlinePosition != nil && (*cfg.OutlinePosition == config.OutlineLeft || *cfg.OutlinePosition == config.OutlineRight) {
		o.position = *cfg.OutlinePosition
	}
	if cfg.OutlineWidth != nil {
		o.defaultWidth = config.ClampOutlineWidth(*cfg.OutlineWidth)
		o.width = o.defaultWidth
	}
}

func (o *Outline) Visible() bool {
	return o.visible
}

func (o *Outline) Toggle() {
	o.visible = !o.visible
}

func (o *Outline) Position() string {
	return o.position
}

func (o *Outline) Width() int {
	return o.width
}

// Columns is the width in terminal columns.
func (o *Outline) Columns() int {
	return o.width / PixelsPerColumn
}

// Resize changes the width by delta, clamped to the allowed range.
func (o *Outline) Resize(delta int) {
	if !o.resizable {
		return
	}
	w := config.ClampOutlineWidth(o.width + delta)
	if w == o.width {
		return
	}
	o.width = w
	o.resized()
}

// Reset restores the configured width.
func (o *Outline) Reset() {
	o.width = o.defaultWidth
	o.resized()
}

func (o *Outline) resized() {
	if o.onResize != nil {
		o.onResize(o.width)
	}
}

// OutlineEntries lists the document's headings with the visual line each
// one starts on.
func OutlineEntries(doc *layout.Document) []OutlineEntry {
	if doc == nil {
		return nil
	}
	headings := doc.Headings()
	entries := make([]OutlineEntry, 0, len(headings))
	for _, h := range headings {
		entries = append(entries, OutlineEntry{
			Level:      h.Level,
			Text:       h.Text,
			Line:       doc.BlockLine(h.Block),
			SourceLine: h.Line,
		})
	}
	return entries
}
