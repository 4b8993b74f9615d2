package publish

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/folio/internal/richtext"
)

// treeBuilder converts a document into a goldmark AST. Leaf text is copied
// into src and referenced by raw segments, so it is HTML-escaped on output
// and never read as markup.
type treeBuilder struct {
	src []byte
}

func (b *treeBuilder) document(d *richtext.Document) *ast.Document {
	root := ast.NewDocument()
	for _, id := range d.Root() {
		root.AppendChild(root, b.block(d, d.Node(id)))
	}
	return root
}

func (b *treeBuilder) block(d *richtext.Document, n richtext.Node) ast.Node {
	switch n.Type {
	case richtext.HeadingOne, richtext.HeadingTwo:
		level := 1
		if n.Type == richtext.HeadingTwo {
			level = 2
		}
		h := ast.NewHeading(level)
		b.inlines(d, h, n.Children)
		return h
	case richtext.BlockQuote:
		q := ast.NewBlockquote()
		p := ast.NewParagraph()
		b.inlines(d, p, n.Children)
		q.AppendChild(q, p)
		return q
	case richtext.CodeBlock:
		return b.code(d, n)
	case richtext.BulletedList, richtext.NumberedList:
		marker := byte('-')
		if n.Type == richtext.NumberedList {
			marker = '.'
		}
		l := ast.NewList(marker)
		l.Start = 1
		for _, id := range n.Children {
			l.AppendChild(l, b.item(d, d.Node(id)))
		}
		return l
	case richtext.ListItem:
		return b.item(d, n)
	default:
		p := ast.NewParagraph()
		b.inlines(d, p, n.Children)
		return p
	}
}

func (b *treeBuilder) code(d *richtext.Document, n richtext.Node) ast.Node {
	c := ast.NewFencedCodeBlock(nil)
	var sb strings.Builder
	for _, id := range n.Children {
		sb.WriteString(d.Node(id).Text)
	}
	if sb.Len() == 0 {
		return c
	}
	for _, line := range strings.SplitAfter(sb.String()+"\n", "\n") {
		if line != "" {
			c.Lines().Append(b.segment(line))
		}
	}
	return c
}

// item puts the leading inline content of a list item in a text block, the
// way goldmark represents tight lists, followed by its nested blocks.
func (b *treeBuilder) item(d *richtext.Document, n richtext.Node) ast.Node {
	li := ast.NewListItem(2)
	tb := ast.NewTextBlock()
	li.AppendChild(li, tb)
	for _, id := range n.Children {
		c := d.Node(id)
		if c.Kind == richtext.KindBlock {
			li.AppendChild(li, b.block(d, c))
			continue
		}
		b.inlines(d, tb, []richtext.NodeID{id})
	}
	return li
}

func (b *treeBuilder) inlines(d *richtext.Document, parent ast.Node, ids []richtext.NodeID) {
	for _, id := range ids {
		n := d.Node(id)
		if n.Kind == richtext.KindInline {
			link := &Wikilink{Target: n.Target}
			b.inlines(d, link, n.Children)
			parent.AppendChild(parent, link)
			continue
		}
		b.leaf(parent, n)
	}
}

// leaf appends a text leaf wrapped in its marks, outermost first. Line
// breaks inside the text become hard breaks, except in code spans.
func (b *treeBuilder) leaf(parent ast.Node, n richtext.Node) {
	if n.Text == "" {
		return
	}
	outer := parent
	for _, m := range n.Marks.List() {
		var w ast.Node
		switch m {
		case richtext.Bold:
			w = ast.NewEmphasis(2)
		case richtext.Italic:
			w = ast.NewEmphasis(1)
		case richtext.Underline:
			w = &Underline{}
		case richtext.Code:
			w = ast.NewCodeSpan()
		}
		outer.AppendChild(outer, w)
		outer = w
	}
	if n.Marks.Has(richtext.Code) {
		outer.AppendChild(outer, b.raw(n.Text))
		return
	}
	for i, line := range strings.Split(n.Text, "\n") {
		if i > 0 {
			outer.AppendChild(outer, b.lineBreak())
		}
		if line != "" {
			outer.AppendChild(outer, b.raw(line))
		}
	}
}

func (b *treeBuilder) segment(s string) text.Segment {
	start := len(b.src)
	b.src = append(b.src, s...)
	return text.NewSegment(start, len(b.src))
}

func (b *treeBuilder) raw(s string) *ast.Text {
	t := ast.NewTextSegment(b.segment(s))
	t.SetRaw(true)
	return t
}

func (b *treeBuilder) lineBreak() *ast.Text {
	t := ast.NewTextSegment(text.NewSegment(len(b.src), len(b.src)))
	t.SetHardLineBreak(true)
	return t
}
