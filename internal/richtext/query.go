package richtext

import "iter"

// leafRef is a text leaf with its path and the lowest block containing it.
type leafRef struct {
	path  Path
	node  Node
	block Node
}

func (d *Document) leaves() []leafRef {
	var out []leafRef
	path := make(Path, 0, 8)
	var walk func(ids []NodeID, block Node)
	walk = func(ids []NodeID, block Node) {
		for i, id := range ids {
			path = append(path, i)
			n := d.nodes[id]
			switch n.Kind {
			case KindText:
				out = append(out, leafRef{path: path.Clone(), node: n, block: block})
			case KindInline:
				walk(n.Children, block)
			case KindBlock:
				walk(n.Children, n)
			}
			path = path[:len(path)-1]
		}
	}
	walk(d.root, Node{})
	return out
}

// span returns the rune range of a leaf covered by [start, end].
func span(l leafRef, start, end Point) (lo, hi int, in bool) {
	c1, c2 := l.path.Compare(start.Path), l.path.Compare(end.Path)
	if c1 < 0 || c2 > 0 {
		return 0, 0, false
	}
	lo, hi = 0, l.node.Len()
	if c1 == 0 {
		lo = start.Offset
	}
	if c2 == 0 {
		hi = end.Offset
	}
	return lo, hi, true
}

// touched returns the index range [first, last] of leaves the selection
// covers. Leaves the selection merely borders are left out unless nothing
// else is covered, in which case the anchor leaf stands in.
func touched(ls []leafRef, sel *Selection) (first, last int) {
	first, last = -1, -1
	start, end := sel.Edges()
	if !sel.IsCollapsed() {
		for i, l := range ls {
			lo, hi, in := span(l, start, end)
			if !in {
				continue
			}
			interior := !l.path.Equal(start.Path) && !l.path.Equal(end.Path)
			if hi > lo || interior || l.node.Len() == 0 {
				if first < 0 {
					first = i
				}
				last = i
			}
		}
	}
	if first < 0 {
		for i, l := range ls {
			if l.path.Equal(sel.Anchor.Path) {
				return i, i
			}
		}
	}
	return first, last
}

// IsMarkActive reports whether every text leaf with at least one selected
// character carries m. It is false for a nil or collapsed selection and for
// selections that cover no markable text. Code block content is never marked.
func IsMarkActive(d *Document, sel *Selection, m Mark) bool {
	mustMark(m)
	sel, err := CheckSelection(d, sel)
	if err != nil || sel == nil || sel.IsCollapsed() {
		return false
	}
	start, end := sel.Edges()
	seen := 0
	for _, l := range d.leaves() {
		lo, hi, in := span(l, start, end)
		if !in || hi <= lo || l.block.Type == CodeBlock {
			continue
		}
		if !l.node.Marks.Has(m) {
			return false
		}
		seen++
	}
	return seen > 0
}

// IsBlockActive reports whether the block holding the anchor has type t.
// For list types the anchor must sit in a list-item whose list has type t.
func IsBlockActive(d *Document, sel *Selection, t BlockType) bool {
	mustBlockType(t)
	sel, err := CheckSelection(d, sel)
	if err != nil || sel == nil {
		return false
	}
	anc := d.Ancestors(sel.Anchor.Path)
	for i := len(anc) - 1; i >= 0; i-- {
		n := anc[i]
		if n.Kind != KindBlock {
			continue
		}
		if !t.IsList() {
			return n.Type == t
		}
		return n.Type == ListItem && i > 0 && anc[i-1].Type == t
	}
	return false
}

// ActiveMarks returns the marks active across the selection.
func ActiveMarks(d *Document, sel *Selection) MarkSet {
	var s MarkSet
	for _, m := range Marks {
		if IsMarkActive(d, sel, m) {
			s = s.With(m)
		}
	}
	return s
}

// ActiveBlock returns the toggleable block type active at the anchor, or
// Paragraph when none is.
func ActiveBlock(d *Document, sel *Selection) BlockType {
	for _, t := range BlockTypes {
		if t != Paragraph && t != ListItem && IsBlockActive(d, sel, t) {
			return t
		}
	}
	return Paragraph
}

// MatchingNodes yields, in pre-order, the nodes satisfying pred that contain
// or are a text leaf covered by the selection. A collapsed selection covers
// the leaf holding the caret. Yielded paths are owned by the caller.
func MatchingNodes(d *Document, sel *Selection, pred func(Node) bool) iter.Seq2[Node, Path] {
	return func(yield func(Node, Path) bool) {
		sel, err := CheckSelection(d, sel)
		if err != nil || sel == nil {
			return
		}
		ls := d.leaves()
		first, last := touched(ls, sel)
		if first < 0 {
			return
		}
		a, b := ls[first].path, ls[last].path
		for p, n := range d.Walk() {
			if p.Compare(b) > 0 && !p.IsAncestorOf(a) {
				return
			}
			if !p.IsAncestorOf(a) && p.Compare(a) < 0 {
				continue
			}
			if pred(n) && !yield(n, p.Clone()) {
				return
			}
		}
	}
}

// IsBlock matches block nodes of any of the given types, or any block if none are given.
func IsBlock(types ...BlockType) func(Node) bool {
	return func(n Node) bool {
		if n.Kind != KindBlock {
			return false
		}
		if len(types) == 0 {
			return true
		}
		for _, t := range types {
			if n.Type == t {
				return true
			}
		}
		return false
	}
}

// IsText matches text leaves.
func IsText(n Node) bool { return n.Kind == KindText }
