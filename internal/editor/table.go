package editor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TableOp is one of the table panel commands.
type TableOp int

const (
	AlignLeft TableOp = iota
	AlignCenter
	AlignRight
	InsertRowAbove
	InsertRowBelow
	DeleteRow
	InsertColumnLeft
	InsertColumnRight
	DeleteColumn
)

var tableSeparator = regexp.MustCompile(`^\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?$`)

type alignment int

const (
	alignNone alignment = iota
	alignLeft
	alignCenter
	alignRight
)

type table struct {
	header []string
	aligns []alignment
	body   [][]string
}

// EditTable applies op to the pipe table holding the cursor and rewrites
// the table in normalized form. It returns the new text and cursor, and
// false when the cursor is not in a table or op does not apply there.
func EditTable(text string, cursor int, op TableOp) (string, int, bool) {
	lines := strings.Split(text, "\n")
	li, lineCol := cursorLine(lines, cursor)

	top, bottom := li, li
	if !isTableRow(lines[li]) {
		return text, cursor, false
	}
	for top > 0 && isTableRow(lines[top-1]) {
		top--
	}
	for bottom < len(lines)-1 && isTableRow(lines[bottom+1]) {
		bottom++
	}
	if bottom-top < 1 || !tableSeparator.MatchString(strings.TrimSpace(lines[top+1])) {
		return text, cursor, false
	}

	t := parseTable(lines[top : bottom+1])
	row := li - top
	col := min(cellIndex(lines[li], lineCol), len(t.header)-1)

	switch op {
	case AlignLeft:
		t.aligns[col] = alignLeft
	case AlignCenter:
		t.aligns[col] = alignCenter
	case AlignRight:
		t.aligns[col] = alignRight

	case InsertRowAbove, InsertRowBelow:
		at := 0
		if row > 1 {
			at = row - 2
			if op == InsertRowBelow {
				at++
			}
		}
		t.body = insertAt(t.body, at, make([]string, len(t.header)))
		row = at + 2

	case DeleteRow:
		if row <= 1 {
			return text, cursor, false
		}
		t.body = append(t.body[:row-2], t.body[row-1:]...)
		if len(t.body) == 0 {
			row = 0
		} else {
			row = min(row, len(t.body)+1)
		}

	case InsertColumnLeft, InsertColumnRight:
		if op == InsertColumnRight {
			col++
		}
		t.header = insertAt(t.header, col, "")
		t.aligns = insertAt(t.aligns, col, alignNone)
		for i := range t.body {
			t.body[i] = insertAt(t.body[i], col, "")
		}

	case DeleteColumn:
		if len(t.header) == 1 {
			return text, cursor, false
		}
		t.header = append(t.header[:col], t.header[col+1:]...)
		t.aligns = append(t.aligns[:col], t.aligns[col+1:]...)
		for i := range t.body {
			t.body[i] = append(t.body[i][:col], t.body[i][col+1:]...)
		}
		col = min(col, len(t.header)-1)

	default:
		return text, cursor, false
	}

	formatted := t.lines()
	out := make([]string, 0, len(lines)-(bottom-top+1)+len(formatted))
	out = append(out, lines[:top]...)
	out = append(out, formatted...)
	out = append(out, lines[bottom+1:]...)

	pos := 0
	for _, l := range out[:top+row] {
		pos += utf8.RuneCountInString(l) + 1
	}
	pos += cellOffset(formatted[row], col)
	return strings.Join(out, "\n"), pos, true
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// cursorLine returns the line holding the rune offset and the rune column
// within it.
func cursorLine(lines []string, offset int) (int, int) {
	for i, l := range lines {
		n := utf8.RuneCountInString(l)
		if offset <= n || i == len(lines)-1 {
			return i, min(offset, n)
		}
		offset -= n + 1
	}
	return 0, 0
}

func isTableRow(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && strings.Contains(t, "|")
}

// splitCells splits a row on unescaped pipes, dropping the outer ones.
func splitCells(line string) []string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "|")
	if strings.HasSuffix(t, "|") && !strings.HasSuffix(t, `\|`) {
		t = t[:len(t)-1]
	}

	var cells []string
	var cur strings.Builder
	escaped := false
	for _, r := range t {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

// cellIndex is the column of the cell holding rune column col of line.
func cellIndex(line string, col int) int {
	n := 0
	escaped := false
	for i, r := range []rune(line) {
		if i >= col {
			break
		}
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			n++
		}
	}
	if strings.HasPrefix(strings.TrimSpace(line), "|") {
		n--
	}
	return max(n, 0)
}

func parseTable(lines []string) table {
	t := table{header: splitCells(lines[0])}
	for _, c := range splitCells(lines[1]) {
		t.aligns = append(t.aligns, parseAlignment(c))
	}
	for _, l := range lines[2:] {
		t.body = append(t.body, splitCells(l))
	}

	n := len(t.header)
	t.aligns = fit(t.aligns, n, alignNone)
	for i := range t.body {
		t.body[i] = fit(t.body[i], n, "")
	}
	return t
}

func fit[T any](s []T, n int, zero T) []T {
	if len(s) > n {
		return s[:n]
	}
	for len(s) < n {
		s = append(s, zero)
	}
	return s
}

func parseAlignment(cell string) alignment {
	left := strings.HasPrefix(cell, ":")
	right := strings.HasSuffix(cell, ":")
	switch {
	case left && right:
		return alignCenter
	case left:
		return alignLeft
	case right:
		return alignRight
	}
	return alignNone
}

func (a alignment) marker() string {
	switch a {
	case alignLeft:
		return ":---"
	case alignCenter:
		return ":---:"
	case alignRight:
		return "---:"
	}
	return "---"
}

func (t table) lines() []string {
	seps := make([]string, len(t.aligns))
	for i, a := range t.aligns {
		seps[i] = a.marker()
	}
	out := []string{formatRow(t.header), formatRow(seps)}
	for _, r := range t.body {
		out = append(out, formatRow(r))
	}
	return out
}

func formatRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// cellOffset is the rune column where cell col's text starts in a
// formatted row.
func cellOffset(row string, col int) int {
	pos := 2
	for _, c := range splitCells(row)[:col] {
		pos += utf8.RuneCountInString(c) + 3
	}
	return pos
}
