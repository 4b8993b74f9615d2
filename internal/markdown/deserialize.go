package markdown

import (
	"strings"

	"github.com/starford/folio/internal/richtext"
)

// Deserialize parses the note text format. It never fails: anything it does
// not recognize becomes paragraph text, and empty input yields a document
// holding a single empty paragraph.
func Deserialize(text string) *richtext.Document {
	if text == "" {
		return richtext.New()
	}
	text = richtext.CleanText(text)
	specs := parseBlocks(strings.Split(text, "\n"))
	d, err := richtext.Build(specs...)
	if err != nil {
		// Unreachable for parser output; keep the text rather than lose it.
		return richtext.MustBuild(richtext.P(richtext.T(text)))
	}
	return d
}

func parseBlocks(lines []string) []richtext.Spec {
	var out []richtext.Spec
	i := 0
	for i < len(lines) {
		l := lines[i]
		var s richtext.Spec
		var n int
		switch {
		case l == "" || l == emptyParagraph:
			s, n = richtext.P(), 1
		case isFence(l):
			s, n = parseCode(lines[i:])
		case headingLevel(l) > 0:
			s, n = parseHeading(lines[i:])
		case l[0] == '>':
			s, n = parseQuote(lines[i:])
		case listMarkerWidth(l) > 0:
			s, n = parseList(lines[i:])
		default:
			s, n = parseParagraph(lines[i:])
		}
		out = append(out, s)
		i += n
		if i < len(lines) && lines[i] == "" {
			i++
		}
	}
	return out
}

func blockStart(l string) bool {
	return l == emptyParagraph || isFence(l) || headingLevel(l) > 0 ||
		(l != "" && l[0] == '>') || listMarkerWidth(l) > 0
}

// stripMarker removes a trailing continuation backslash.
func stripMarker(l string) (string, bool) {
	n := 0
	for n < len(l) && l[len(l)-1-n] == '\\' {
		n++
	}
	if n%2 == 1 {
		return l[:len(l)-1], true
	}
	return l, false
}

// joinsNext strips a continuation marker from l when the line after it
// belongs to the same block. A marker on the last line, or before a line that
// inner reduces to block syntax, is kept as literal text.
func joinsNext(l string, rest []string, inner func(string) string) (string, bool) {
	part, cont := stripMarker(l)
	if !cont || len(rest) == 0 || blockStart(inner(rest[0])) {
		return l, false
	}
	return part, true
}

func sameLine(l string) string { return l }

func quoteInner(l string) string {
	if l != "" && l[0] == '>' {
		return strings.TrimPrefix(l[1:], " ")
	}
	return l
}

// textRun collects the lines of a paragraph-like block: the first line, then
// following lines until a blank line or block syntax, except that a
// continued line always takes the next one.
func textRun(lines []string) (string, int) {
	var parts []string
	cont := false
	i := 0
	for ; i < len(lines); i++ {
		l := lines[i]
		if i > 0 && !cont && (l == "" || blockStart(l)) {
			break
		}
		var part string
		part, cont = joinsNext(l, lines[i+1:], sameLine)
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n"), i
}

func parseParagraph(lines []string) (richtext.Spec, int) {
	text, n := textRun(lines)
	return richtext.P(parseInline(text)...), n
}

func headingLevel(l string) int {
	h := 0
	for h < len(l) && h < 6 && l[h] == '#' {
		h++
	}
	if h == 0 || (h < len(l) && l[h] != ' ') {
		return 0
	}
	return h
}

func parseHeading(lines []string) (richtext.Spec, int) {
	level := headingLevel(lines[0])
	first := strings.TrimPrefix(lines[0][level:], " ")
	part, cont := joinsNext(first, lines[1:], sameLine)
	parts := []string{part}
	i := 1
	for ; cont && i < len(lines); i++ {
		part, cont = joinsNext(lines[i], lines[i+1:], sameLine)
		parts = append(parts, part)
	}
	t := richtext.HeadingOne
	if level > 1 {
		t = richtext.HeadingTwo
	}
	return richtext.Block(t, parseInline(strings.Join(parts, "\n"))...), i
}

func parseQuote(lines []string) (richtext.Spec, int) {
	var parts []string
	cont := false
	i := 0
	for ; i < len(lines); i++ {
		l := lines[i]
		switch {
		case l != "" && l[0] == '>':
			l = strings.TrimPrefix(l[1:], " ")
		case !cont:
			return richtext.Quote(parseInline(strings.Join(parts, "\n"))...), i
		}
		var part string
		part, cont = joinsNext(l, lines[i+1:], quoteInner)
		parts = append(parts, part)
	}
	return richtext.Quote(parseInline(strings.Join(parts, "\n"))...), i
}

func isFence(l string) bool { return strings.HasPrefix(l, "```") }

func parseCode(lines []string) (richtext.Spec, int) {
	width := 0
	for width < len(lines[0]) && lines[0][width] == '`' {
		width++
	}
	var content []string
	for i := 1; i < len(lines); i++ {
		l := lines[i]
		if len(l) >= width && strings.Trim(l, "`") == "" {
			return richtext.CodeText(strings.Join(content, "\n")), i + 1
		}
		content = append(content, l)
	}
	return richtext.CodeText(strings.Join(content, "\n")), len(lines)
}

// listMarkerWidth returns the width of the list marker opening l including
// the following space, or 0 when l does not open a list item.
func listMarkerWidth(l string) int {
	if l == "" {
		return 0
	}
	if l[0] == '-' || l[0] == '+' {
		if len(l) == 1 || l[1] == ' ' {
			return 2
		}
		return 0
	}
	if k := orderedMarker(l); k > 0 {
		return k + 2
	}
	return 0
}

func listType(l string) richtext.BlockType {
	if l[0] == '-' || l[0] == '+' {
		return richtext.BulletedList
	}
	return richtext.NumberedList
}

func parseList(lines []string) (richtext.Spec, int) {
	t := listType(lines[0])
	var items []richtext.Spec
	i := 0
	for i < len(lines) {
		width := listMarkerWidth(lines[i])
		if width == 0 || listType(lines[i]) != t {
			break
		}
		first := ""
		if len(lines[i]) > width {
			first = lines[i][width:]
		}
		body := []string{first}
		indent := strings.Repeat(" ", width)
		dedent := func(l string) string { return strings.TrimPrefix(l, indent) }
		_, cont := joinsNext(first, lines[i+1:], dedent)
		i++
	collect:
		for i < len(lines) {
			l := lines[i]
			switch {
			case cont:
				l = strings.TrimPrefix(l, indent)
			case strings.HasPrefix(l, indent):
				l = l[len(indent):]
			case l == "" && indentedAhead(lines[i+1:], indent):
			default:
				break collect
			}
			body = append(body, l)
			_, cont = joinsNext(l, lines[i+1:], dedent)
			i++
		}
		items = append(items, parseItem(body))
	}
	return richtext.Block(t, items...), i
}

// indentedAhead reports whether the next non-blank line carries indent.
func indentedAhead(lines []string, indent string) bool {
	for _, l := range lines {
		if l != "" {
			return strings.HasPrefix(l, indent)
		}
	}
	return false
}

func parseItem(body []string) richtext.Spec {
	text, n := textRun(body)
	kids := parseInline(text)
	rest := body[n:]
	if len(rest) > 0 && rest[0] == "" {
		rest = rest[1:]
	}
	kids = append(kids, parseBlocks(rest)...)
	return richtext.Item(kids...)
}
