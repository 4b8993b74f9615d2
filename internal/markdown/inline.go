package markdown

import (
	"strings"

	"github.com/starford/folio/internal/richtext"
)

var (
	openDelim = map[richtext.Mark]string{
		richtext.Bold:      "**",
		richtext.Italic:    "*",
		richtext.Underline: "<u>",
		richtext.Code:      "`",
	}
	closeDelim = map[richtext.Mark]string{
		richtext.Bold:      "**",
		richtext.Italic:    "*",
		richtext.Underline: "</u>",
		richtext.Code:      "`",
	}
)

// inline renders a run of inline nodes. Delimiters nest in the canonical
// mark order and only change where adjacent leaves differ.
func inline(d *richtext.Document, ids []richtext.NodeID) string {
	var b strings.Builder
	var open []richtext.Mark
	closeFrom := func(k int) {
		for i := len(open) - 1; i >= k; i-- {
			b.WriteString(closeDelim[open[i]])
		}
		open = open[:k]
	}
	for _, id := range ids {
		n := d.Node(id)
		if n.Kind == richtext.KindInline {
			closeFrom(0)
			writeLink(&b, d, n)
			continue
		}
		want := n.Marks.List()
		k := 0
		for k < len(open) && k < len(want) && open[k] == want[k] {
			k++
		}
		closeFrom(k)
		for _, m := range want[k:] {
			b.WriteString(openDelim[m])
			open = append(open, m)
		}
		b.WriteString(escapeText(n.Text, n.Marks.Has(richtext.Code)))
	}
	closeFrom(0)
	return b.String()
}

func writeLink(b *strings.Builder, d *richtext.Document, n richtext.Node) {
	b.WriteString("[[")
	b.WriteString(escapeTarget(n.Target))
	if len(n.Children) == 1 {
		if leaf := d.Node(n.Children[0]); leaf.Marks.IsEmpty() && leaf.Text == n.Target {
			b.WriteString("]]")
			return
		}
	}
	b.WriteByte('|')
	b.WriteString(inline(d, n.Children))
	b.WriteString("]]")
}

func escapeText(s string, code bool) string {
	special := "\\*_`[]<"
	if code {
		special = "\\`]"
	}
	if !strings.ContainsAny(s, special) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeTarget(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == '|' || r == ']' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapable reports whether a backslash before c is an escape: any ASCII
// punctuation, plus the space used to protect leading indentation.
func escapable(c byte) bool {
	return c == ' ' || c >= '!' && c <= '/' || c >= ':' && c <= '@' || c >= '[' && c <= '`' || c >= '{' && c <= '~'
}

type openMark struct {
	mark richtext.Mark
	pos  int
}

// inlineParser reads inline markup. Delimiters that never close are
// recorded in unclosed and treated as literal text on the next pass.
type inlineParser struct {
	src      string
	literal  map[int]bool
	unclosed []int
}

// parseInline converts inline markup to text and link specs.
func parseInline(src string) []richtext.Spec {
	p := &inlineParser{src: src, literal: make(map[int]bool)}
	for {
		p.unclosed = p.unclosed[:0]
		out, _, _ := p.parse(0, false)
		if len(p.unclosed) == 0 {
			return out
		}
		for _, pos := range p.unclosed {
			p.literal[pos] = true
		}
	}
}

// parse reads from i until the end of input or, inside a link, until the
// closing brackets. It reports the index after the last consumed byte and
// whether a link was closed.
func (p *inlineParser) parse(i int, inLink bool) ([]richtext.Spec, int, bool) {
	src := p.src
	var out []richtext.Spec
	var stack []openMark
	var buf strings.Builder

	has := func(m richtext.Mark) bool {
		for _, o := range stack {
			if o.mark == m {
				return true
			}
		}
		return false
	}
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		var marks richtext.MarkSet
		for _, o := range stack {
			marks = marks.With(o.mark)
		}
		out = append(out, richtext.Spec{Kind: richtext.KindText, Text: buf.String(), Marks: marks})
		buf.Reset()
	}
	push := func(m richtext.Mark, pos int) {
		flush()
		stack = append(stack, openMark{mark: m, pos: pos})
	}
	remove := func(m richtext.Mark) {
		flush()
		for j := len(stack) - 1; j >= 0; j-- {
			if stack[j].mark == m {
				stack = append(stack[:j], stack[j+1:]...)
				return
			}
		}
	}
	finish := func() {
		flush()
		for _, o := range stack {
			p.unclosed = append(p.unclosed, o.pos)
		}
	}

	for i < len(src) {
		c := src[i]
		if inLink && strings.HasPrefix(src[i:], "]]") {
			finish()
			return out, i + 2, true
		}
		switch {
		case c == '\\' && i+1 < len(src) && escapable(src[i+1]):
			buf.WriteByte(src[i+1])
			i += 2
		case has(richtext.Code):
			if c == '`' {
				remove(richtext.Code)
			} else {
				buf.WriteByte(c)
			}
			i++
		case c == '`' && !p.literal[i]:
			push(richtext.Code, i)
			i++
		case c == '*':
			n := 1
			for i+n < len(src) && src[i+n] == '*' {
				n++
			}
			if p.literal[i] {
				buf.WriteString(src[i : i+n])
				i += n
				continue
			}
			rem := n
			for rem > 0 && len(stack) > 0 {
				need := 0
				switch stack[len(stack)-1].mark {
				case richtext.Italic:
					need = 1
				case richtext.Bold:
					need = 2
				}
				if need == 0 || rem < need {
					break
				}
				remove(stack[len(stack)-1].mark)
				rem -= need
			}
			if rem >= 2 && !has(richtext.Bold) {
				push(richtext.Bold, i)
				rem -= 2
			}
			if rem >= 1 && !has(richtext.Italic) {
				push(richtext.Italic, i)
				rem--
			}
			buf.WriteString(strings.Repeat("*", rem))
			i += n
		case strings.HasPrefix(src[i:], "<u>") && !p.literal[i] && !has(richtext.Underline):
			push(richtext.Underline, i)
			i += 3
		case strings.HasPrefix(src[i:], "</u>") && has(richtext.Underline):
			remove(richtext.Underline)
			i += 4
		case !inLink && strings.HasPrefix(src[i:], "[["):
			link, end, ok := p.link(i)
			if !ok {
				buf.WriteString("[[")
				i += 2
				continue
			}
			flush()
			out = append(out, link)
			i = end
		default:
			buf.WriteByte(c)
			i++
		}
	}
	finish()
	return out, i, false
}

// link reads [[target]] or [[target|display]] starting at i.
func (p *inlineParser) link(i int) (richtext.Spec, int, bool) {
	src := p.src
	var target strings.Builder
	j := i + 2
	for j < len(src) {
		c := src[j]
		if c == '\\' && j+1 < len(src) && escapable(src[j+1]) {
			target.WriteByte(src[j+1])
			j += 2
			continue
		}
		if c == '|' || c == '\n' || strings.HasPrefix(src[j:], "]]") {
			break
		}
		target.WriteByte(c)
		j++
	}
	if j >= len(src) || src[j] == '\n' || target.Len() == 0 {
		return richtext.Spec{}, 0, false
	}
	tgt := target.String()
	if src[j] == ']' {
		return richtext.Link(tgt, richtext.T(tgt)), j + 2, true
	}

	kids, end, closed := p.parse(j+1, true)
	if !closed {
		return richtext.Spec{}, 0, false
	}
	if len(kids) == 0 {
		kids = []richtext.Spec{richtext.T(tgt)}
	}
	return richtext.Link(tgt, kids...), end, true
}

// ParseLink reads one [[target]] or [[target|display]] link at the start of
// src. It returns the link spec and the number of bytes consumed.
func ParseLink(src string) (richtext.Spec, int, bool) {
	if !strings.HasPrefix(src, "[[") {
		return richtext.Spec{}, 0, false
	}
	p := &inlineParser{src: src, literal: make(map[int]bool)}
	for {
		p.unclosed = p.unclosed[:0]
		link, end, ok := p.link(0)
		if !ok || len(p.unclosed) == 0 {
			return link, end, ok
		}
		for _, pos := range p.unclosed {
			p.literal[pos] = true
		}
	}
}
