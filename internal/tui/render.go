package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/mgomes/mdedit/internal/layout"
	"github.com/mgomes/mdedit/internal/overlay"
)

// mark is what covers a cell besides its own text style.
type mark int

const (
	markNone mark = iota
	markHighlight
	markCurrent
	markCursor
)

type cellPos struct {
	line int
	col  int
}

type palette struct {
	highlight lipgloss.Style
	current   lipgloss.Style
}

func newPalette(useThemeColor bool) palette {
	if useThemeColor {
		return palette{highlight: themeHighlightStyle, current: themeCurrentHighlightStyle}
	}
	return palette{highlight: highlightStyle, current: currentHighlightStyle}
}

// renderDocument draws every visual line of doc with the highlight
// rectangles painted over the text. cursor is ignored when line is -1.
func renderDocument(doc *layout.Document, highlights []overlay.Highlight, cursor cellPos, pal palette) string {
	if doc == nil {
		return ""
	}
	marks := make(map[int][]overlay.Highlight)
	for _, h := range highlights {
		line := int(h.Top)
		marks[line] = append(marks[line], h)
	}

	lines := doc.Lines()
	out := make([]string, len(lines))
	for i, line := range lines {
		c := -1
		if cursor.line == i {
			c = cursor.col
		}
		out[i] = renderLine(line, marks[i], c, pal)
	}
	return strings.Join(out, "\n")
}

func markAt(col int, hs []overlay.Highlight, cursor int) mark {
	if col == cursor {
		return markCursor
	}
	m := markNone
	for _, h := range hs {
		if float64(col) >= h.Left && float64(col) < h.Left+h.Width {
			if h.Current {
				return markCurrent
			}
			m = markHighlight
		}
	}
	return m
}

func cellStyle(c layout.Cell, m mark, pal palette) lipgloss.Style {
	switch m {
	case markCursor:
		return cursorStyle
	case markCurrent:
		return pal.current
	case markHighlight:
		return pal.highlight
	}
	if c.Node < 0 {
		return dimStyle
	}
	return textStyle(c.Style)
}

func renderLine(line layout.Line, hs []overlay.Highlight, cursor int, pal palette) string {
	type run struct {
		style lipgloss.Style
		key   [2]int
		text  strings.Builder
	}

	var b strings.Builder
	var cur *run
	flush := func() {
		if cur != nil && cur.text.Len() > 0 {
			b.WriteString(cur.style.Render(cur.text.String()))
		}
	}

	col := 0
	for _, c := range line.Cells {
		m := markAt(col, hs, cursor)
		key := [2]int{int(m), int(c.Style)}
		if c.Node < 0 {
			key[1] = -1
		}
		if cur == nil || cur.key != key {
			flush()
			cur = &run{style: cellStyle(c, m, pal), key: key}
		}
		if c.Rune == '\t' {
			cur.text.WriteString(strings.Repeat(" ", c.Width))
		} else {
			cur.text.WriteRune(c.Rune)
		}
		col += c.Width
	}
	flush()

	if cursor >= col {
		b.WriteString(strings.Repeat(" ", cursor-col))
		b.WriteString(cursorStyle.Render(" "))
	}
	return b.String()
}

// sourceCursor finds the cell of a source offset in a plain text layout,
// where node n holds source line n.
func sourceCursor(doc *layout.Document, text string, offset int) (cellPos, bool) {
	if doc == nil || doc.Width() == 0 {
		return cellPos{}, false
	}
	runes := []rune(text)
	offset = max(0, min(offset, len(runes)))

	lineNo, col := 0, 0
	for _, r := range runes[:offset] {
		if r == '\n' {
			lineNo++
			col = 0
			continue
		}
		col++
	}
	nodes := doc.TextNodes()
	if lineNo >= len(nodes) {
		return cellPos{}, false
	}

	n := utf8.RuneCountInString(nodes[lineNo].Text)
	if col < n {
		rects, err := doc.RangeRects(lineNo, col, col+1)
		if err != nil || len(rects) == 0 {
			return cellPos{}, false
		}
		return cellPos{line: int(rects[0].Top), col: int(rects[0].Left)}, true
	}
	if n > 0 {
		rects, err := doc.RangeRects(lineNo, n-1, n)
		if err != nil || len(rects) == 0 {
			return cellPos{}, false
		}
		r := rects[0]
		return cellPos{line: int(r.Top), col: int(r.Left + r.Width)}, true
	}

	// Empty lines have no cells; they sit one line below the previous node.
	line := doc.BlockLine(0)
	for i := 0; i < lineNo; i++ {
		if k := utf8.RuneCountInString(nodes[i].Text); k > 0 {
			if rects, err := doc.RangeRects(i, k-1, k); err == nil && len(rects) > 0 {
				line = int(rects[0].Top)
			}
		}
		line++
	}
	return cellPos{line: line, col: 0}, true
}

// lineColumn is the 1-based source line and column of offset.
func lineColumn(text string, offset int) (int, int) {
	line, col := 1, 1
	for i, r := range []rune(text) {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
