package richtext

import "slices"

// ToggleMark removes m from the selected characters when every one of them
// already carries it and adds it otherwise. Leaves are split at the selection
// edges and equal neighbours merged afterwards, so the text itself is unchanged.
//
// The returned selection covers the same characters in the edited document.
// A nil or collapsed selection leaves the document untouched.
func ToggleMark(d *Document, sel *Selection, m Mark) (*Selection, error) {
	mustMark(m)
	sel, err := CheckSelection(d, sel)
	if err != nil || sel == nil || sel.IsCollapsed() {
		return sel, err
	}
	active := IsMarkActive(d, sel, m)
	start, end := sel.Edges()

	t := d.load()
	refs := d.leaves()
	wl := t.leaves()
	anchor := &cursor{leaf: t.at(sel.Anchor.Path), off: sel.Anchor.Offset}
	focus := &cursor{leaf: t.at(sel.Focus.Path), off: sel.Focus.Offset}
	cursors := []*cursor{anchor, focus}

	var containers []*wnode
	for i, l := range refs {
		lo, hi, in := span(l, start, end)
		if !in || hi <= lo || l.block.Type == CodeBlock {
			continue
		}
		w := wl[i]
		marks := w.marks.With(m)
		if active {
			marks = w.marks.Without(m)
		}
		if marks == w.marks {
			continue
		}
		if !slices.Contains(containers, w.parent) {
			containers = append(containers, w.parent)
		}
		splitLeaf(w, lo, hi, marks, cursors)
	}
	for _, c := range containers {
		mergeTexts(c, cursors)
	}

	t.commit()
	paths := t.paths()
	return &Selection{Anchor: anchor.point(paths), Focus: focus.point(paths)}, nil
}

// splitLeaf gives the runes [lo, hi) of w the marks set, splitting w into up
// to three leaves.
func splitLeaf(w *wnode, lo, hi int, marks MarkSet, cursors []*cursor) {
	runes := []rune(w.text)
	if lo == 0 && hi == len(runes) {
		w.marks = marks
		w.dirty = true
		return
	}
	var pieces []*wnode
	var pre, post *wnode
	if lo > 0 {
		pre = newText(string(runes[:lo]), w.marks)
		pieces = append(pieces, pre)
	}
	mid := newText(string(runes[lo:hi]), marks)
	pieces = append(pieces, mid)
	if hi < len(runes) {
		post = newText(string(runes[hi:]), w.marks)
		pieces = append(pieces, post)
	}
	for _, c := range cursors {
		if c.leaf != w {
			continue
		}
		switch {
		case c.off < lo:
			c.leaf = pre
		case c.off <= hi:
			c.leaf, c.off = mid, c.off-lo
		default:
			c.leaf, c.off = post, c.off-hi
		}
	}
	w.replace(pieces...)
}

// mergeTexts joins adjacent text children of w that carry the same marks.
func mergeTexts(w *wnode, cursors []*cursor) {
	kids := make([]*wnode, 0, len(w.kids))
	for _, k := range w.kids {
		last := len(kids) - 1
		if k.kind != KindText || last < 0 || kids[last].kind != KindText || kids[last].marks != k.marks {
			kids = append(kids, k)
			continue
		}
		prev := kids[last]
		shift := prev.runeLen()
		prev.text += k.text
		prev.dirty = true
		for _, c := range cursors {
			if c.leaf == k {
				c.leaf, c.off = prev, c.off+shift
			}
		}
	}
	if len(kids) != len(w.kids) {
		w.setKids(kids)
	}
}

// ToggleBlock switches the blocks covered by the selection to type t, or
// back to paragraphs when the block at the anchor already has type t.
//
// Covered list items are lifted out of their list first, splitting it where
// needed. Toggling a list type then wraps each run of adjacent converted
// blocks into a new list of that type. Converting to a code block flattens
// the inline content to a single unmarked leaf. ListItem is not a valid target.
func ToggleBlock(d *Document, sel *Selection, t BlockType) (*Selection, error) {
	mustBlockType(t)
	if t == ListItem {
		panic("richtext: list-item is not a toggle target")
	}
	sel, err := CheckSelection(d, sel)
	if err != nil || sel == nil {
		return sel, err
	}
	active := IsBlockActive(d, sel, t)
	target := t
	switch {
	case active:
		target = Paragraph
	case t.IsList():
		target = ListItem
	}

	tr := d.load()
	refs := d.leaves()
	wl := tr.leaves()
	anchor := &cursor{leaf: tr.at(sel.Anchor.Path), off: sel.Anchor.Offset}
	focus := &cursor{leaf: tr.at(sel.Focus.Path), off: sel.Focus.Offset}
	cursors := []*cursor{anchor, focus}

	var blocks []*wnode
	first, last := touched(refs, sel)
	for i := first; i <= last && i >= 0; i++ {
		b := wl[i].parent
		for !b.textBlock() {
			b = b.parent
		}
		if !slices.Contains(blocks, b) {
			blocks = append(blocks, b)
		}
	}

	for _, b := range blocks {
		if b.typ == ListItem && b.parent.kind == KindBlock && b.parent.typ.IsList() {
			liftItem(b, target == ListItem)
		}
	}
	for _, b := range blocks {
		if target == CodeBlock && b.typ != CodeBlock {
			flattenInline(b, cursors)
		}
		if b.typ != target {
			b.typ = target
			b.dirty = true
		}
	}
	if target == ListItem {
		wrapRuns(blocks, t)
	}

	tr.commit()
	paths := tr.paths()
	return &Selection{Anchor: anchor.point(paths), Focus: focus.point(paths)}, nil
}

// liftItem moves a list item out of its list into the list's parent,
// splitting the list around it. Unless keepBlocks is set the item's nested
// blocks follow it as siblings.
func liftItem(item *wnode, keepBlocks bool) {
	list := item.parent
	i := item.index()
	before := slices.Clone(list.kids[:i])
	after := slices.Clone(list.kids[i+1:])

	var repl []*wnode
	if len(before) > 0 {
		list.setKids(before)
		repl = append(repl, list)
	}
	repl = append(repl, item)
	if !keepBlocks {
		inline, nested := item.splitItem()
		if len(nested) > 0 {
			nested = slices.Clone(nested)
			item.setKids(slices.Clone(inline))
			repl = append(repl, nested...)
		}
	}
	if len(after) > 0 {
		repl = append(repl, newBlock(list.typ, after...))
	}
	list.replace(repl...)
}

// flattenInline collapses the inline content of b into one unmarked leaf.
func flattenInline(b *wnode, cursors []*cursor) {
	flat := newText("", 0)
	var walk func(w *wnode)
	walk = func(w *wnode) {
		for _, k := range w.kids {
			if k.kind != KindText {
				walk(k)
				continue
			}
			for _, c := range cursors {
				if c.leaf == k {
					c.leaf, c.off = flat, c.off+flat.runeLen()
				}
			}
			flat.text += k.text
		}
	}
	walk(b)
	b.setKids([]*wnode{flat})
}

// wrapRuns wraps each run of adjacent sibling blocks into a new list of type t.
func wrapRuns(blocks []*wnode, t BlockType) {
	var run []*wnode
	flush := func() {
		if len(run) == 0 {
			return
		}
		p := run[0].parent
		i := run[0].index()
		list := &wnode{orig: NoNode, kind: KindBlock, typ: t}
		kids := slices.Clone(p.kids[:i])
		kids = append(kids, list)
		kids = append(kids, p.kids[i+len(run):]...)
		list.setKids(slices.Clone(run))
		p.setKids(kids)
		run = nil
	}
	for _, b := range blocks {
		if n := len(run); n > 0 {
			prev := run[n-1]
			if b.parent != prev.parent || b.index() != prev.index()+1 {
				flush()
			}
		}
		run = append(run, b)
	}
	flush()
}
