package richtext

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Path addresses a node by child indexes from the document root.
type Path []int

func (p Path) Clone() Path { return slices.Clone(p) }

// Compare orders paths in document order. An ancestor sorts before its descendants.
func (p Path) Compare(q Path) int {
	for i := 0; i < len(p) && i < len(q); i++ {
		if p[i] != q[i] {
			if p[i] < q[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p) < len(q):
		return -1
	case len(p) > len(q):
		return 1
	}
	return 0
}

func (p Path) Equal(q Path) bool { return slices.Equal(p, q) }

// IsAncestorOf reports whether p is a strict prefix of q.
func (p Path) IsAncestorOf(q Path) bool {
	return len(p) < len(q) && slices.Equal(p, q[:len(p)])
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Point is a position inside a text leaf. Offset counts runes.
type Point struct {
	Path   Path `json:"path"`
	Offset int  `json:"offset"`
}

// Compare orders points in document order.
func (p Point) Compare(q Point) int {
	if c := p.Path.Compare(q.Path); c != 0 {
		return c
	}
	switch {
	case p.Offset < q.Offset:
		return -1
	case p.Offset > q.Offset:
		return 1
	}
	return 0
}

func (p Point) Equal(q Point) bool { return p.Compare(q) == 0 }

func (p Point) String() string { return fmt.Sprintf("%s:%d", p.Path, p.Offset) }

// Selection is an anchor and a focus point. A nil *Selection means nothing is selected.
type Selection struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// Caret returns a collapsed selection at p.
func Caret(p Point) *Selection {
	return &Selection{Anchor: p, Focus: Point{Path: p.Path.Clone(), Offset: p.Offset}}
}

// Range returns a selection from anchor to focus.
func Range(anchor, focus Point) *Selection {
	return &Selection{Anchor: anchor, Focus: focus}
}

func (s *Selection) IsCollapsed() bool { return s.Anchor.Equal(s.Focus) }

// IsBackward reports whether the focus precedes the anchor.
func (s *Selection) IsBackward() bool { return s.Focus.Compare(s.Anchor) < 0 }

// Edges returns the selection endpoints in document order.
func (s *Selection) Edges() (start, end Point) {
	if s.IsBackward() {
		return s.Focus, s.Anchor
	}
	return s.Anchor, s.Focus
}

func (s *Selection) Clone() *Selection {
	if s == nil {
		return nil
	}
	return &Selection{
		Anchor: Point{Path: s.Anchor.Path.Clone(), Offset: s.Anchor.Offset},
		Focus:  Point{Path: s.Focus.Path.Clone(), Offset: s.Focus.Offset},
	}
}

func (s *Selection) String() string {
	if s == nil {
		return "<none>"
	}
	return s.Anchor.String() + ".." + s.Focus.String()
}

// CheckSelection verifies that both points of sel address text leaves of d.
// Offsets past the end of a leaf are clamped in the returned copy.
// A nil selection is valid.
func CheckSelection(d *Document, sel *Selection) (*Selection, error) {
	if sel == nil {
		return nil, nil
	}
	out := sel.Clone()
	for _, pt := range []*Point{&out.Anchor, &out.Focus} {
		n, ok := d.At(pt.Path)
		if !ok || n.Kind != KindText {
			return nil, errAt("check selection", pt.Path, ErrInvalidSelection, "not a text leaf")
		}
		if pt.Offset < 0 {
			return nil, errAt("check selection", pt.Path, ErrInvalidSelection, "negative offset %d", pt.Offset)
		}
		if l := utf8.RuneCountInString(n.Text); pt.Offset > l {
			pt.Offset = l
		}
	}
	return out, nil
}

// Start returns a caret at the beginning of the document.
func Start(d *Document) *Selection {
	p := Path{}
	id := d.root[0]
	p = append(p, 0)
	for d.nodes[id].Kind != KindText {
		p = append(p, 0)
		id = d.nodes[id].Children[0]
	}
	return Caret(Point{Path: p})
}

// End returns a caret at the end of the document.
func End(d *Document) *Selection {
	p := Path{len(d.root) - 1}
	id := d.root[len(d.root)-1]
	for d.nodes[id].Kind != KindText {
		last := len(d.nodes[id].Children) - 1
		p = append(p, last)
		id = d.nodes[id].Children[last]
	}
	return Caret(Point{Path: p, Offset: utf8.RuneCountInString(d.nodes[id].Text)})
}

// All returns a selection spanning the whole document.
func All(d *Document) *Selection {
	return Range(Start(d).Anchor, End(d).Focus)
}
