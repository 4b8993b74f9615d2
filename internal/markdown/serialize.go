// Package markdown converts note documents to and from their persisted text
// form, a Markdown dialect with [[id|title]] note links.
//
// Block layout:
//
//	# heading one          ## heading two
//	> quoted line          - bulleted item / 1. numbered item
//	```                    <br>  (an empty paragraph)
//	fenced code
//	```
//
// Top-level blocks and blocks nested in a list item are separated by one
// blank line. A line ending in an unescaped backslash continues the text of
// the same block on the next line. Nested item content is indented by the
// width of the item's marker.
package markdown

import (
	"strconv"
	"strings"

	"github.com/starford/folio/internal/richtext"
)

const emptyParagraph = "<br>"

// Serialize renders d in the note text format. A document holding only an
// empty paragraph renders as the empty string.
func Serialize(d *richtext.Document) string {
	if isBlank(d) {
		return ""
	}
	return strings.Join(blocks(d, d.Root()), "\n")
}

// SerializeBlock renders a single block of d.
func SerializeBlock(d *richtext.Document, id richtext.NodeID) string {
	return strings.Join(block(d, id), "\n")
}

func isBlank(d *richtext.Document) bool {
	root := d.Root()
	if len(root) != 1 {
		return false
	}
	n := d.Node(root[0])
	return n.Type == richtext.Paragraph && d.BlockText(n.ID) == ""
}

func blocks(d *richtext.Document, ids []richtext.NodeID) []string {
	var out []string
	for i, id := range ids {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, block(d, id)...)
	}
	return out
}

func block(d *richtext.Document, id richtext.NodeID) []string {
	n := d.Node(id)
	switch n.Type {
	case richtext.Paragraph:
		if d.BlockText(id) == "" {
			return []string{emptyParagraph}
		}
		return textLines(inline(d, n.Children))
	case richtext.HeadingOne:
		return prefixFirst("#", textLines(inline(d, n.Children)))
	case richtext.HeadingTwo:
		return prefixFirst("##", textLines(inline(d, n.Children)))
	case richtext.BlockQuote:
		lines := textLines(inline(d, n.Children))
		for i, l := range lines {
			lines[i] = prefix(">", l)
		}
		return lines
	case richtext.CodeBlock:
		return codeLines(d.BlockText(id))
	case richtext.BulletedList, richtext.NumberedList:
		var out []string
		for i, item := range n.Children {
			marker := "-"
			if n.Type == richtext.NumberedList {
				marker = strconv.Itoa(i+1) + "."
			}
			out = append(out, listItem(d, item, marker)...)
		}
		return out
	case richtext.ListItem:
		return listItem(d, id, "-")
	}
	return nil
}

func listItem(d *richtext.Document, id richtext.NodeID, marker string) []string {
	n := d.Node(id)
	split := len(n.Children)
	for i, c := range n.Children {
		if d.Node(c).Kind == richtext.KindBlock {
			split = i
			break
		}
	}
	lines := textLines(inline(d, n.Children[:split]))
	for i, c := range n.Children[split:] {
		if i > 0 || !d.Node(c).Type.IsList() {
			lines = append(lines, "")
		}
		lines = append(lines, block(d, c)...)
	}

	indent := strings.Repeat(" ", len(marker)+1)
	lines[0] = prefix(marker, lines[0])
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = indent + lines[i]
		}
	}
	return lines
}

// textLines splits serialized inline text into lines, escaping line starts
// that would read as block syntax and marking every line but the last as
// continued.
func textLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		l = escapeLineStart(l)
		if i < len(lines)-1 {
			l += `\`
		}
		lines[i] = l
	}
	return lines
}

func prefix(marker, line string) string {
	if line == "" {
		return marker
	}
	return marker + " " + line
}

func prefixFirst(marker string, lines []string) []string {
	lines[0] = prefix(marker, lines[0])
	return lines
}

func codeLines(text string) []string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", max(3, longest+1))
	out := []string{fence}
	if text != "" {
		out = append(out, strings.Split(text, "\n")...)
	}
	return append(out, fence)
}

func escapeLineStart(l string) string {
	if l == "" {
		return l
	}
	switch l[0] {
	case '#', '>', ' ':
		return `\` + l
	case '-', '+':
		if len(l) == 1 || l[1] == ' ' {
			return `\` + l
		}
		return l
	}
	if k := orderedMarker(l); k > 0 {
		return l[:k] + `\` + l[k:]
	}
	return l
}

// orderedMarker returns the index of the '.' or ')' ending a numbered list
// marker at the start of l, or 0.
func orderedMarker(l string) int {
	k := 0
	for k < len(l) && k < 9 && l[k] >= '0' && l[k] <= '9' {
		k++
	}
	if k == 0 || k >= len(l) || (l[k] != '.' && l[k] != ')') {
		return 0
	}
	if k+1 < len(l) && l[k+1] != ' ' {
		return 0
	}
	return k
}
