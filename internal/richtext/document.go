// Package richtext implements the note document tree, the selection engine and
// the mark and block toggles applied to it.
//
// Nodes live in an append-only arena owned by a Document and never change once
// allocated. Mutations allocate fresh nodes for whatever they touch, so a node
// that keeps its NodeID across an edit is guaranteed to be unchanged.
package richtext

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// NodeID identifies a node within its document arena.
type NodeID int32

// NoNode is the zero reference.
const NoNode NodeID = -1

// Node is an immutable tree node. Children must not be modified.
type Node struct {
	ID       NodeID
	Kind     Kind
	Type     BlockType // KindBlock only
	Text     string    // KindText only
	Marks    MarkSet   // KindText only
	Target   string    // KindInline only: the linked note identifier
	Children []NodeID
}

// Len returns the rune length of a text leaf.
func (n Node) Len() int { return utf8.RuneCountInString(n.Text) }

// IsListItem reports whether n is a list-item block.
func (n Node) IsListItem() bool { return n.Kind == KindBlock && n.Type == ListItem }

// Document is a rich-text note body.
//
// A Document is not safe for concurrent use; callers serialize access per document.
type Document struct {
	nodes []Node
	root  []NodeID
}

// New returns a document holding a single empty paragraph.
func New() *Document {
	d := &Document{}
	t := d.alloc(Node{Kind: KindText})
	p := d.alloc(Node{Kind: KindBlock, Type: Paragraph, Children: []NodeID{t}})
	d.root = []NodeID{p}
	return d
}

func (d *Document) alloc(n Node) NodeID {
	n.ID = NodeID(len(d.nodes))
	d.nodes = append(d.nodes, n)
	return n.ID
}

// Root returns the top-level block ids. The slice must not be modified.
func (d *Document) Root() []NodeID { return d.root }

// Node returns the node with the given id.
func (d *Document) Node(id NodeID) Node { return d.nodes[id] }

// At resolves a path to a node.
func (d *Document) At(p Path) (Node, bool) {
	if len(p) == 0 {
		return Node{}, false
	}
	kids := d.root
	var n Node
	for _, i := range p {
		if i < 0 || i >= len(kids) {
			return Node{}, false
		}
		n = d.nodes[kids[i]]
		kids = n.Children
	}
	return n, true
}

// Ancestors returns the nodes on the way from the root to p, p itself last.
func (d *Document) Ancestors(p Path) []Node {
	out := make([]Node, 0, len(p))
	kids := d.root
	for _, i := range p {
		if i < 0 || i >= len(kids) {
			return nil
		}
		n := d.nodes[kids[i]]
		out = append(out, n)
		kids = n.Children
	}
	return out
}

// Walk yields every node depth-first in document order together with its path.
// The yielded path is only valid until the next iteration.
func (d *Document) Walk() iter.Seq2[Path, Node] {
	return func(yield func(Path, Node) bool) {
		path := make(Path, 0, 8)
		var walk func(ids []NodeID) bool
		walk = func(ids []NodeID) bool {
			for i, id := range ids {
				path = append(path, i)
				n := d.nodes[id]
				if !yield(path, n) || !walk(n.Children) {
					return false
				}
				path = path[:len(path)-1]
			}
			return true
		}
		walk(d.root)
	}
}

// PathOf finds the path of a live node.
func (d *Document) PathOf(id NodeID) (Path, bool) {
	for p, n := range d.Walk() {
		if n.ID == id {
			return p.Clone(), true
		}
	}
	return nil, false
}

// Clone returns a snapshot of d. Later edits to either copy do not affect the other.
func (d *Document) Clone() *Document {
	n := len(d.nodes)
	return &Document{nodes: d.nodes[:n:n], root: d.root}
}

// Live returns the number of nodes reachable from the root.
func (d *Document) Live() int {
	count := 0
	for range d.Walk() {
		count++
	}
	return count
}

// Garbage reports how many arena slots are no longer reachable.
func (d *Document) Garbage() int { return len(d.nodes) - d.Live() }

// Compact returns an equal document whose arena holds only reachable nodes.
// NodeIDs are not preserved.
func (d *Document) Compact() *Document {
	out := &Document{nodes: make([]Node, 0, d.Live())}
	var copyNode func(id NodeID) NodeID
	copyNode = func(id NodeID) NodeID {
		n := d.nodes[id]
		var kids []NodeID
		if len(n.Children) > 0 {
			kids = make([]NodeID, len(n.Children))
			for i, c := range n.Children {
				kids[i] = copyNode(c)
			}
		}
		n.Children = kids
		return out.alloc(n)
	}
	out.root = make([]NodeID, len(d.root))
	for i, id := range d.root {
		out.root[i] = copyNode(id)
	}
	return out
}

// Text returns the plain text of the document, one line per text block.
func (d *Document) Text() string {
	var b strings.Builder
	started := false
	var walk func(ids []NodeID)
	walk = func(ids []NodeID) {
		for _, id := range ids {
			n := d.nodes[id]
			switch n.Kind {
			case KindText:
				b.WriteString(n.Text)
			case KindInline:
				walk(n.Children)
			case KindBlock:
				if n.Type.IsList() {
					walk(n.Children)
					continue
				}
				if started {
					b.WriteByte('\n')
				}
				started = true
				if n.Type == ListItem {
					inline, blocks := splitItem(d, n)
					walk(inline)
					walk(blocks)
					continue
				}
				walk(n.Children)
			}
		}
	}
	walk(d.root)
	return b.String()
}

// BlockText returns the concatenated leaf text below id.
func (d *Document) BlockText(id NodeID) string {
	var b strings.Builder
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := d.nodes[id]
		if n.Kind == KindText {
			b.WriteString(n.Text)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(id)
	return b.String()
}

// Links returns the distinct link targets in document order.
func (d *Document) Links() []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range d.Walk() {
		if n.Kind == KindInline && !seen[n.Target] {
			seen[n.Target] = true
			out = append(out, n.Target)
		}
	}
	return out
}

// FirstBlock returns the first top-level block of the given type.
func (d *Document) FirstBlock(t BlockType) (Node, bool) {
	for _, id := range d.root {
		if n := d.nodes[id]; n.Type == t {
			return n, true
		}
	}
	return Node{}, false
}

// splitItem separates a list-item's leading inline children from its nested blocks.
func splitItem(d *Document, n Node) (inline, blocks []NodeID) {
	for i, c := range n.Children {
		if d.nodes[c].Kind == KindBlock {
			return n.Children[:i], n.Children[i:]
		}
	}
	return n.Children, nil
}

// Equal reports whether two documents have the same structure and content.
func Equal(a, b *Document) bool {
	if len(a.root) != len(b.root) {
		return false
	}
	for i := range a.root {
		if !equalNode(a, a.root[i], b, b.root[i]) {
			return false
		}
	}
	return true
}

func equalNode(a *Document, x NodeID, b *Document, y NodeID) bool {
	n, m := a.nodes[x], b.nodes[y]
	if n.Kind != m.Kind || len(n.Children) != len(m.Children) {
		return false
	}
	switch n.Kind {
	case KindBlock:
		if n.Type != m.Type {
			return false
		}
	case KindInline:
		if n.Target != m.Target {
			return false
		}
	case KindText:
		return n.Text == m.Text && n.Marks == m.Marks
	}
	for i := range n.Children {
		if !equalNode(a, n.Children[i], b, m.Children[i]) {
			return false
		}
	}
	return true
}
