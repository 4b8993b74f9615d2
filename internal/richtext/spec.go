package richtext

import (
	"strings"
	"unicode/utf8"
)

// Spec is a plain value description of a subtree, used to construct documents.
type Spec struct {
	Kind     Kind
	Type     BlockType
	Text     string
	Marks    MarkSet
	Target   string
	Children []Spec
}

// T describes a text leaf.
func T(text string, marks ...Mark) Spec {
	return Spec{Kind: KindText, Text: text, Marks: NewMarkSet(marks...)}
}

// Link describes a reference to another note.
func Link(target string, children ...Spec) Spec {
	return Spec{Kind: KindInline, Target: target, Children: children}
}

// Block describes a block of any type.
func Block(t BlockType, children ...Spec) Spec {
	return Spec{Kind: KindBlock, Type: t, Children: children}
}

func P(children ...Spec) Spec     { return Block(Paragraph, children...) }
func H1(children ...Spec) Spec    { return Block(HeadingOne, children...) }
func H2(children ...Spec) Spec    { return Block(HeadingTwo, children...) }
func Quote(children ...Spec) Spec { return Block(BlockQuote, children...) }
func Item(children ...Spec) Spec  { return Block(ListItem, children...) }
func Bulleted(items ...Spec) Spec { return Block(BulletedList, items...) }
func Numbered(items ...Spec) Spec { return Block(NumberedList, items...) }
func CodeText(text string) Spec   { return Block(CodeBlock, T(text)) }

// Paragraphs describes one plain paragraph per line.
func Paragraphs(lines ...string) []Spec {
	out := make([]Spec, len(lines))
	for i, l := range lines {
		out[i] = P(T(l))
	}
	return out
}

// Build normalizes and validates specs, then allocates a document from them.
//
// Normalization merges adjacent text leaves with equal marks, drops empty
// leaves that have siblings, gives empty containers a single empty leaf and
// flattens code blocks to one unmarked leaf.
func Build(specs ...Spec) (*Document, error) {
	if len(specs) == 0 {
		return nil, &Error{Op: "build", Err: ErrEmptyDocument}
	}
	norm := make([]Spec, len(specs))
	for i, s := range specs {
		norm[i] = normalize(s)
	}
	if err := validateSpecs(norm); err != nil {
		return nil, err
	}
	d := &Document{}
	d.root = make([]NodeID, len(norm))
	for i, s := range norm {
		d.root[i] = d.allocSpec(s)
	}
	return d, nil
}

// MustBuild is like Build but panics on invalid input.
func MustBuild(specs ...Spec) *Document {
	d, err := Build(specs...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) allocSpec(s Spec) NodeID {
	n := Node{Kind: s.Kind, Type: s.Type, Text: s.Text, Marks: s.Marks, Target: s.Target}
	if len(s.Children) > 0 {
		n.Children = make([]NodeID, len(s.Children))
		for i, c := range s.Children {
			n.Children[i] = d.allocSpec(c)
		}
	}
	return d.alloc(n)
}

// Spec converts the document back into value form.
func (d *Document) Spec() []Spec {
	out := make([]Spec, len(d.root))
	for i, id := range d.root {
		out[i] = d.spec(id)
	}
	return out
}

func (d *Document) spec(id NodeID) Spec {
	n := d.nodes[id]
	s := Spec{Kind: n.Kind, Type: n.Type, Text: n.Text, Marks: n.Marks, Target: n.Target}
	for _, c := range n.Children {
		s.Children = append(s.Children, d.spec(c))
	}
	return s
}

// CleanText turns "\r\n" and lone "\r" into "\n" and replaces invalid
// UTF-8 with U+FFFD. Build applies it to every text leaf, so leaf text always
// splits cleanly by rune and survives the text format unchanged.
func CleanText(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func normalize(s Spec) Spec {
	switch s.Kind {
	case KindText:
		s.Text = CleanText(s.Text)
		return s
	case KindInline:
		s.Target = strings.ToValidUTF8(s.Target, "\uFFFD")
		s.Children = normalizeInline(s.Children, false)
		return s
	}
	switch {
	case s.Type == CodeBlock:
		var b strings.Builder
		flattenSpec(&b, s.Children)
		s.Children = []Spec{T(CleanText(b.String()))}
	case s.Type.HoldsInline():
		s.Children = normalizeInline(s.Children, true)
	case s.Type == ListItem:
		split := len(s.Children)
		for i, c := range s.Children {
			if c.Kind == KindBlock {
				split = i
				break
			}
		}
		kids := normalizeInline(s.Children[:split], true)
		for _, c := range s.Children[split:] {
			kids = append(kids, normalize(c))
		}
		s.Children = kids
	default:
		kids := make([]Spec, len(s.Children))
		for i, c := range s.Children {
			kids[i] = normalize(c)
		}
		s.Children = kids
	}
	return s
}

func flattenSpec(b *strings.Builder, specs []Spec) {
	for _, s := range specs {
		if s.Kind == KindText {
			b.WriteString(s.Text)
			continue
		}
		flattenSpec(b, s.Children)
	}
}

// normalizeInline merges and prunes a run of inline specs. Non-inline
// entries are passed through untouched for validation to report.
func normalizeInline(in []Spec, fill bool) []Spec {
	out := make([]Spec, 0, len(in))
	for _, s := range in {
		if s.Kind == KindInline {
			s = normalize(s)
		}
		if s.Kind == KindText {
			s.Text = CleanText(s.Text)
			if s.Text == "" {
				continue
			}
			if last := len(out) - 1; last >= 0 && out[last].Kind == KindText && out[last].Marks == s.Marks {
				out[last].Text += s.Text
				continue
			}
		}
		out = append(out, s)
	}
	if len(out) == 0 && fill {
		out = append(out, T(""))
	}
	return out
}
