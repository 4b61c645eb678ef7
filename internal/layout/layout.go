package layout

import (
	"errors"
	"fmt"

	"github.com/mattn/go-runewidth"
)

const tabWidth = 4

var (
	ErrNotLaidOut  = errors.New("document has not been laid out")
	ErrNodeRange   = errors.New("text node out of range")
	ErrOffsetRange = errors.New("offset out of range")
)

// Cell is one rune placed on the grid. Node is -1 for decoration such as
// list bullets, which are not part of any text node.
type Cell struct {
	Rune   rune
	Width  int
	Node   int
	Offset int
	Style  Style
}

type Line struct {
	Block int
	Cells []Cell
}

// Pos is where a rune of a text node landed.
type Pos struct {
	Line  int
	Col   int
	Width int
}

// Rect is a box in grid coordinates: Top is a visual line, Left a column.
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func runeWidth(r rune) int {
	if r == '\t' {
		return tabWidth
	}
	return runewidth.RuneWidth(r)
}

// Layout wraps the document to width columns. Words move to the next line
// when they would overflow; words longer than a line are split.
func (d *Document) Layout(width int) {
	if width < 1 {
		width = 1
	}
	if width == d.width && d.lines != nil {
		return
	}

	l := &layouter{doc: d, width: width}
	d.pos = make([][]Pos, len(d.Nodes))
	d.blockStart = make([]int, len(d.Blocks))
	for i := range d.Blocks {
		l.block(i)
	}
	d.lines = l.lines
	d.width = width
}

// Invalidate forces the next Layout call to recompute.
func (d *Document) Invalidate() {
	d.lines = nil
	d.width = 0
}

func (d *Document) Width() int {
	return d.width
}

func (d *Document) Lines() []Line {
	return d.lines
}

func (d *Document) Height() int {
	return len(d.lines)
}

// Visible reports whether the document has been laid out with content.
func (d *Document) Visible() bool {
	return d.width > 0 && len(d.lines) > 0
}

// BlockLine returns the first visual line of block b.
func (d *Document) BlockLine(b int) int {
	if b < 0 || b >= len(d.blockStart) {
		return 0
	}
	return d.blockStart[b]
}

// RangeRects returns one rect per visual line covered by runes [start, end)
// of node.
func (d *Document) RangeRects(node, start, end int) ([]Rect, error) {
	if d.width == 0 {
		return nil, ErrNotLaidOut
	}
	if node < 0 || node >= len(d.pos) {
		return nil, fmt.Errorf("%w: %d", ErrNodeRange, node)
	}
	pos := d.pos[node]
	if start < 0 || end > len(pos) || start > end {
		return nil, fmt.Errorf("%w: [%d,%d) of %d", ErrOffsetRange, start, end, len(pos))
	}

	var rects []Rect
	for i := start; i < end; i++ {
		p := pos[i]
		if n := len(rects); n > 0 && int(rects[n-1].Top) == p.Line {
			rects[n-1].Width += float64(p.Width)
			continue
		}
		rects = append(rects, Rect{Top: float64(p.Line), Left: float64(p.Col), Width: float64(p.Width), Height: 1})
	}
	return rects, nil
}

type layouter struct {
	doc    *Document
	width  int
	lines  []Line
	col    int
	indent []Cell
}

func (l *layouter) newLine(block int) {
	l.lines = append(l.lines, Line{Block: block})
	l.col = 0
	for _, c := range l.indent {
		l.put(c)
	}
}

func (l *layouter) put(c Cell) {
	last := &l.lines[len(l.lines)-1]
	last.Cells = append(last.Cells, c)
	l.col += c.Width
}

func (l *layouter) indentWidth() int {
	w := 0
	for _, c := range l.indent {
		w += c.Width
	}
	return w
}

func (l *layouter) block(bi int) {
	b := l.doc.Blocks[bi]
	if bi > 0 {
		l.indent = nil
		l.newLine(bi)
	}

	l.indent = nil
	l.newLine(bi)
	l.doc.blockStart[bi] = len(l.lines) - 1
	for _, r := range b.Prefix {
		l.put(Cell{Rune: r, Width: runeWidth(r), Node: -1})
	}
	// Continuation lines align under the text, not the bullet.
	l.indent = make([]Cell, 0, len(b.Prefix))
	for _, r := range b.Prefix {
		c := Cell{Rune: r, Width: runeWidth(r), Node: -1}
		if r != '│' {
			c.Rune = ' '
		}
		l.indent = append(l.indent, c)
	}

	if b.Kind == BlockRule {
		for l.col < l.width {
			l.put(Cell{Rune: '─', Width: 1, Node: -1})
		}
		return
	}

	for _, id := range b.Nodes {
		l.node(bi, id)
	}
}

func (l *layouter) node(bi, id int) {
	n := l.doc.Nodes[id]
	runes := []rune(n.Text)
	pos := make([]Pos, len(runes))
	indent := l.indentWidth()

	for i, r := range runes {
		w := runeWidth(r)
		if r != ' ' && (i == 0 || runes[i-1] == ' ') {
			ww := wordWidth(runes[i:])
			if l.col+ww > l.width && l.col > indent && ww <= l.width-indent {
				l.newLine(bi)
			}
		}
		if l.col+w > l.width && l.col > indent && r != ' ' {
			l.newLine(bi)
		}
		pos[i] = Pos{Line: len(l.lines) - 1, Col: l.col, Width: w}
		l.put(Cell{Rune: r, Width: w, Node: id, Offset: i, Style: n.Style})
	}
	l.doc.pos[id] = pos

	if n.Break {
		l.newLine(bi)
	}
}

func wordWidth(runes []rune) int {
	w := 0
	for _, r := range runes {
		if r == ' ' {
			break
		}
		w += runeWidth(r)
	}
	return w
}
