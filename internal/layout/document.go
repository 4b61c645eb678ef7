// Package layout turns markdown into text nodes and lays them out on a
// character grid, the way a browser lays out the rendered editor content.
package layout

import (
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type Style int

const (
	StylePlain Style = iota
	StyleEmphasis
	StyleStrong
	StyleCode
	StyleLink
	StyleHeading
)

type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockCode
	BlockRule
	BlockSource
)

// TextNode is one run of rendered text with a single style. Markup never
// appears inside a node.
type TextNode struct {
	ID    int
	Block int
	Text  string
	Style Style
	// Break ends the visual line after this node.
	Break bool
}

type Block struct {
	Kind  BlockKind
	Level int
	// Line is the 1-based source line the block starts on.
	Line   int
	Prefix string
	Nodes  []int
}

// Heading is a heading block flattened to plain text.
type Heading struct {
	Block int
	Level int
	Line  int
	Text  string
}

type Document struct {
	Blocks []Block
	Nodes  []TextNode

	width      int
	lines      []Line
	pos        [][]Pos
	blockStart []int
}

var parser = goldmark.New()

// FromMarkdown parses src and collects its rendered text.
func FromMarkdown(src string) *Document {
	source := []byte(src)
	root := parser.Parser().Parse(text.NewReader(source))

	b := &builder{src: source, doc: &Document{}, lineStarts: lineStarts(source)}
	_ = ast.Walk(root, b.walk)
	return b.doc
}

// FromPlainText treats every source line as its own node, as a source view
// would show it.
func FromPlainText(src string) *Document {
	doc := &Document{}
	doc.Blocks = append(doc.Blocks, Block{Kind: BlockSource, Line: 1})
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		id := len(doc.Nodes)
		doc.Nodes = append(doc.Nodes, TextNode{ID: id, Text: line, Break: i < len(lines)-1})
		doc.Blocks[0].Nodes = append(doc.Blocks[0].Nodes, id)
	}
	return doc
}

func (d *Document) TextNodes() []TextNode {
	return d.Nodes
}

func (d *Document) Headings() []Heading {
	var out []Heading
	for i, b := range d.Blocks {
		if b.Kind != BlockHeading {
			continue
		}
		var sb strings.Builder
		for _, id := range b.Nodes {
			sb.WriteString(d.Nodes[id].Text)
		}
		out = append(out, Heading{Block: i, Level: b.Level, Line: b.Line, Text: strings.TrimSpace(sb.String())})
	}
	return out
}

type builder struct {
	src        []byte
	doc        *Document
	lineStarts []int

	block     int
	prefix    string
	quote     int
	listDepth int
	ordinals  []int
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (b *builder) lineOf(offset int) int {
	return sort.Search(len(b.lineStarts), func(i int) bool { return b.lineStarts[i] > offset })
}

func (b *builder) startBlock(kind BlockKind, level int, n ast.Node) {
	line := 0
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		line = b.lineOf(lines.At(0).Start)
	}

	indent := strings.Repeat("  ", max(b.listDepth-1, 0))
	prefix := strings.Repeat("│ ", b.quote) + indent + b.prefix
	if b.prefix == "" && b.listDepth > 0 {
		prefix = strings.Repeat("│ ", b.quote) + indent + "  "
	}
	b.prefix = ""

	b.doc.Blocks = append(b.doc.Blocks, Block{Kind: kind, Level: level, Line: line, Prefix: prefix})
	b.block = len(b.doc.Blocks) - 1
}

func (b *builder) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Blockquote:
		if entering {
			b.quote++
		} else {
			b.quote--
		}
	case *ast.List:
		if entering {
			b.listDepth++
			b.ordinals = append(b.ordinals, node.Start)
		} else {
			b.listDepth--
			b.ordinals = b.ordinals[:len(b.ordinals)-1]
		}
	case *ast.ListItem:
		if entering {
			list := node.Parent().(*ast.List)
			if list.IsOrdered() {
				top := len(b.ordinals) - 1
				b.prefix = strconv.Itoa(b.ordinals[top]) + ". "
				b.ordinals[top]++
			} else {
				b.prefix = "• "
			}
		}
	case *ast.Heading:
		if entering {
			b.startBlock(BlockHeading, node.Level, n)
		}
	case *ast.Paragraph, *ast.TextBlock:
		if entering {
			b.startBlock(BlockParagraph, 0, n)
		}
	case *ast.ThematicBreak:
		if entering {
			b.startBlock(BlockRule, 0, n)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			b.startBlock(BlockCode, 0, n)
			b.codeLines(n)
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
		return ast.WalkSkipChildren, nil
	case *ast.AutoLink:
		if entering {
			b.appendText(string(node.Label(b.src)), StyleLink)
		}
		return ast.WalkSkipChildren, nil
	case *ast.String:
		if entering {
			b.appendText(string(node.Value), b.styleOf(n))
		}
	case *ast.Text:
		if entering {
			b.appendText(string(node.Segment.Value(b.src)), b.styleOf(n))
			switch {
			case node.HardLineBreak():
				b.breakLine()
			case node.SoftLineBreak():
				b.appendText(" ", b.styleOf(n))
			}
		}
	}
	return ast.WalkContinue, nil
}

func (b *builder) codeLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(b.src)), "\n")
		id := len(b.doc.Nodes)
		b.doc.Nodes = append(b.doc.Nodes, TextNode{
			ID:    id,
			Block: b.block,
			Text:  line,
			Style: StyleCode,
			Break: i < lines.Len()-1,
		})
		b.doc.Blocks[b.block].Nodes = append(b.doc.Blocks[b.block].Nodes, id)
	}
}

// appendText extends the block's last node when the style matches, so
// adjacent inline segments read as one text node.
func (b *builder) appendText(s string, style Style) {
	if s == "" || len(b.doc.Blocks) == 0 {
		return
	}
	blk := &b.doc.Blocks[b.block]
	if k := len(blk.Nodes); k > 0 {
		last := &b.doc.Nodes[blk.Nodes[k-1]]
		if last.Style == style && !last.Break {
			last.Text += s
			return
		}
	}
	id := len(b.doc.Nodes)
	b.doc.Nodes = append(b.doc.Nodes, TextNode{ID: id, Block: b.block, Text: s, Style: style})
	blk.Nodes = append(blk.Nodes, id)
}

func (b *builder) breakLine() {
	blk := b.doc.Blocks[b.block]
	if k := len(blk.Nodes); k > 0 {
		b.doc.Nodes[blk.Nodes[k-1]].Break = true
	}
}

func (b *builder) styleOf(n ast.Node) Style {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch node := p.(type) {
		case *ast.CodeSpan:
			return StyleCode
		case *ast.Link:
			return StyleLink
		case *ast.Emphasis:
			if node.Level >= 2 {
				return StyleStrong
			}
			return StyleEmphasis
		case *ast.Heading:
			return StyleHeading
		case *ast.Paragraph, *ast.TextBlock:
			return StylePlain
		}
	}
	return StylePlain
}
