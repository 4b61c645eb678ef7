package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeTexts(d *Document) []string {
	out := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		out[i] = n.Text
	}
	return out
}

func TestFromMarkdownSplitsStyledRuns(t *testing.T) {
	d := FromMarkdown("# Title\n\nHello *world* and `code`.\n")

	require.Len(t, d.Blocks, 2)
	assert.Equal(t, BlockHeading, d.Blocks[0].Kind)
	assert.Equal(t, 1, d.Blocks[0].Level)
	assert.Equal(t, BlockParagraph, d.Blocks[1].Kind)
	assert.Equal(t, 3, d.Blocks[1].Line)

	assert.Equal(t, []string{"Title", "Hello ", "world", " and ", "code", "."}, nodeTexts(d))
	assert.Equal(t, StyleHeading, d.Nodes[0].Style)
	assert.Equal(t, StyleEmphasis, d.Nodes[2].Style)
	assert.Equal(t, StyleCode, d.Nodes[4].Style)
}

func TestSoftBreakJoinsIntoOneNode(t *testing.T) {
	d := FromMarkdown("foo\nbar\n")
	assert.Equal(t, []string{"foo bar"}, nodeTexts(d))
}

func TestHardBreakEndsNode(t *testing.T) {
	d := FromMarkdown("foo\\\nbar\n")
	require.Len(t, d.Nodes, 2)
	assert.True(t, d.Nodes[0].Break)
	assert.Equal(t, "foo", strings.TrimSpace(d.Nodes[0].Text))
	assert.Equal(t, "bar", d.Nodes[1].Text)
}

func TestListPrefixes(t *testing.T) {
	d := FromMarkdown("- one\n- two\n\n3. a\n4. b\n")
	require.Len(t, d.Blocks, 4)
	assert.Equal(t, "• ", d.Blocks[0].Prefix)
	assert.Equal(t, "• ", d.Blocks[1].Prefix)
	assert.Equal(t, "3. ", d.Blocks[2].Prefix)
	assert.Equal(t, "4. ", d.Blocks[3].Prefix)
	assert.Equal(t, []string{"one", "two", "a", "b"}, nodeTexts(d))
}

func TestFencedCodeKeepsLines(t *testing.T) {
	d := FromMarkdown("```go\nx := 1\ny := 2\n```\n")
	require.Len(t, d.Blocks, 1)
	assert.Equal(t, BlockCode, d.Blocks[0].Kind)
	assert.Equal(t, []string{"x := 1", "y := 2"}, nodeTexts(d))
	assert.True(t, d.Nodes[0].Break)
	assert.False(t, d.Nodes[1].Break)
}

func TestMarkupIsNotText(t *testing.T) {
	d := FromMarkdown("see [the docs](http://example.com) <b>now</b> ![alt](x.png)\n")
	joined := strings.Join(nodeTexts(d), "")
	assert.NotContains(t, joined, "http://example.com")
	assert.NotContains(t, joined, "<b>")
	assert.NotContains(t, joined, "alt")
	assert.Contains(t, joined, "the docs")
}

func TestHeadings(t *testing.T) {
	d := FromMarkdown("# A\n\ntext\n\n## B *em*\n")
	got := d.Headings()
	require.Len(t, got, 2)
	assert.Equal(t, Heading{Block: 0, Level: 1, Line: 1, Text: "A"}, got[0])
	assert.Equal(t, 2, got[1].Level)
	assert.Equal(t, 5, got[1].Line)
	assert.Equal(t, "B em", got[1].Text)
}

func TestFromPlainText(t *testing.T) {
	d := FromPlainText("# raw\n**bold**")
	assert.Equal(t, []string{"# raw", "**bold**"}, nodeTexts(d))
	assert.True(t, d.Nodes[0].Break)
}

func TestLayoutWrapsWords(t *testing.T) {
	d := FromPlainText("hello world")
	d.Layout(8)
	require.Equal(t, 2, d.Height())

	rects, err := d.RangeRects(0, 6, 11)
	require.NoError(t, err)
	assert.Equal(t, []Rect{{Top: 1, Left: 0, Width: 5, Height: 1}}, rects)

	rects, err = d.RangeRects(0, 4, 7)
	require.NoError(t, err)
	assert.Equal(t, []Rect{
		{Top: 0, Left: 4, Width: 2, Height: 1},
		{Top: 1, Left: 0, Width: 1, Height: 1},
	}, rects)
}

func TestLayoutSplitsLongWords(t *testing.T) {
	d := FromPlainText("abcdefghij")
	d.Layout(4)
	assert.Equal(t, 3, d.Height())

	rects, err := d.RangeRects(0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, rects, 3)
	assert.Equal(t, float64(2), rects[2].Width)
}

func TestLayoutWideRunes(t *testing.T) {
	d := FromPlainText("日本語")
	d.Layout(4)

	rects, err := d.RangeRects(0, 0, 3)
	require.NoError(t, err)
	require.Len(t, rects, 2)
	assert.Equal(t, float64(4), rects[0].Width)
	assert.Equal(t, float64(2), rects[1].Width)
}

func TestLayoutPrefixIsDecoration(t *testing.T) {
	d := FromMarkdown("- item\n")
	d.Layout(20)

	cells := d.Lines()[0].Cells
	require.GreaterOrEqual(t, len(cells), 3)
	assert.Equal(t, '•', cells[0].Rune)
	assert.Equal(t, -1, cells[0].Node)

	rects, err := d.RangeRects(0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(2), rects[0].Left)
}

func TestBlocksAreSeparated(t *testing.T) {
	d := FromMarkdown("a\n\nb\n")
	d.Layout(10)
	assert.Equal(t, 3, d.Height())
	assert.Equal(t, 0, d.BlockLine(0))
	assert.Equal(t, 2, d.BlockLine(1))
	assert.Equal(t, 0, d.BlockLine(9))
}

func TestRangeRectsErrors(t *testing.T) {
	d := FromPlainText("abc")
	_, err := d.RangeRects(0, 0, 1)
	assert.ErrorIs(t, err, ErrNotLaidOut)
	assert.False(t, d.Visible())

	d.Layout(10)
	assert.True(t, d.Visible())

	_, err = d.RangeRects(3, 0, 1)
	assert.ErrorIs(t, err, ErrNodeRange)
	_, err = d.RangeRects(0, 2, 5)
	assert.ErrorIs(t, err, ErrOffsetRange)
	_, err = d.RangeRects(0, 2, 1)
	assert.ErrorIs(t, err, ErrOffsetRange)

	rects, err := d.RangeRects(0, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, rects)
}

func TestLayoutIsCachedPerWidth(t *testing.T) {
	d := FromPlainText("one two three")
	d.Layout(5)
	lines := d.Lines()
	d.Layout(5)
	assert.Equal(t, len(lines), len(d.Lines()))

	d.Layout(100)
	assert.Equal(t, 1, d.Height())
	assert.Equal(t, 100, d.Width())
}
