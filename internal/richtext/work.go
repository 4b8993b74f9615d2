package richtext

import (
	"slices"
	"unicode/utf8"
)

// wnode is a mutable copy of a node used while an edit is in progress.
// orig is the arena id it was loaded from, or NoNode for fresh nodes.
type wnode struct {
	orig   NodeID
	kind   Kind
	typ    BlockType
	text   string
	marks  MarkSet
	target string
	kids   []*wnode
	parent *wnode
	dirty  bool
}

func (w *wnode) runeLen() int { return utf8.RuneCountInString(w.text) }

func (w *wnode) index() int { return slices.Index(w.parent.kids, w) }

// setKids replaces the children and adopts them.
func (w *wnode) setKids(kids []*wnode) {
	w.kids = kids
	for _, k := range kids {
		k.parent = w
	}
}

// replace swaps w in its parent for the given nodes.
func (w *wnode) replace(with ...*wnode) {
	p := w.parent
	i := w.index()
	kids := make([]*wnode, 0, len(p.kids)-1+len(with))
	kids = append(kids, p.kids[:i]...)
	kids = append(kids, with...)
	kids = append(kids, p.kids[i+1:]...)
	p.setKids(kids)
}

// insertAfter places nodes right after w in its parent.
func (w *wnode) insertAfter(nodes ...*wnode) {
	p := w.parent
	i := w.index()
	kids := slices.Insert(slices.Clone(p.kids), i+1, nodes...)
	p.setKids(kids)
}

// textBlock reports whether w is the lowest block above some inline content.
func (w *wnode) textBlock() bool {
	return w.kind == KindBlock && (w.typ.HoldsInline() || w.typ == ListItem)
}

// splitItem returns the inline prefix and nested blocks of a list-item.
func (w *wnode) splitItem() (inline, blocks []*wnode) {
	for i, k := range w.kids {
		if k.kind == KindBlock {
			return w.kids[:i], w.kids[i:]
		}
	}
	return w.kids, nil
}

func newText(text string, marks MarkSet) *wnode {
	return &wnode{orig: NoNode, kind: KindText, text: text, marks: marks}
}

func newBlock(t BlockType, kids ...*wnode) *wnode {
	w := &wnode{orig: NoNode, kind: KindBlock, typ: t}
	w.setKids(kids)
	return w
}

// tree is a working copy of a whole document.
type tree struct {
	doc  *Document
	root *wnode
}

func (d *Document) load() *tree {
	t := &tree{doc: d, root: &wnode{orig: NoNode, kind: KindBlock}}
	kids := make([]*wnode, len(d.root))
	for i, id := range d.root {
		kids[i] = t.loadNode(id)
	}
	t.root.setKids(kids)
	return t
}

func (t *tree) loadNode(id NodeID) *wnode {
	n := t.doc.nodes[id]
	w := &wnode{orig: id, kind: n.Kind, typ: n.Type, text: n.Text, marks: n.Marks, target: n.Target}
	if len(n.Children) > 0 {
		kids := make([]*wnode, len(n.Children))
		for i, c := range n.Children {
			kids[i] = t.loadNode(c)
		}
		w.setKids(kids)
	}
	return w
}

// at resolves a path in the working tree.
func (t *tree) at(p Path) *wnode {
	w := t.root
	for _, i := range p {
		w = w.kids[i]
	}
	return w
}

// commit writes the working tree back into the document arena. Nodes that
// are clean and whose children kept their ids are reused as they are.
func (t *tree) commit() {
	root := make([]NodeID, len(t.root.kids))
	for i, k := range t.root.kids {
		root[i] = t.commitNode(k)
	}
	t.doc.root = root
}

func (t *tree) commitNode(w *wnode) NodeID {
	var kids []NodeID
	if len(w.kids) > 0 {
		kids = make([]NodeID, len(w.kids))
		for i, k := range w.kids {
			kids[i] = t.commitNode(k)
		}
	}
	if !w.dirty && w.orig != NoNode && slices.Equal(t.doc.nodes[w.orig].Children, kids) {
		return w.orig
	}
	w.orig = t.doc.alloc(Node{Kind: w.kind, Type: w.typ, Text: w.text, Marks: w.marks, Target: w.target, Children: kids})
	w.dirty = false
	return w.orig
}

// paths maps every working node to its path after the edit.
func (t *tree) paths() map[*wnode]Path {
	out := make(map[*wnode]Path)
	var walk func(w *wnode, p Path)
	walk = func(w *wnode, p Path) {
		for i, k := range w.kids {
			kp := append(p.Clone(), i)
			out[k] = kp
			walk(k, kp)
		}
	}
	walk(t.root, nil)
	return out
}

// leaves lists the working text leaves in document order.
func (t *tree) leaves() []*wnode {
	var out []*wnode
	var walk func(w *wnode)
	walk = func(w *wnode) {
		for _, k := range w.kids {
			if k.kind == KindText {
				out = append(out, k)
				continue
			}
			walk(k)
		}
	}
	walk(t.root)
	return out
}

// cursor is a selection endpoint tracked through an edit.
type cursor struct {
	leaf *wnode
	off  int
}

func (c cursor) point(paths map[*wnode]Path) Point {
	return Point{Path: paths[c.leaf], Offset: c.off}
}
