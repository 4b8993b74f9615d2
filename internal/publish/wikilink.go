package publish

import (
	"html"
	"net/url"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// KindWikilink is the AST kind of a link to another note.
var KindWikilink = ast.NewNodeKind("Wikilink")

// Wikilink is an inline reference to another note. Its children are the
// display text.
type Wikilink struct {
	ast.BaseInline
	Target string
}

func (n *Wikilink) Kind() ast.NodeKind { return KindWikilink }

func (n *Wikilink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Target": n.Target,
	}, nil)
}

// KindUnderline is the AST kind of underlined text.
var KindUnderline = ast.NewNodeKind("Underline")

// Underline wraps underlined inline content.
type Underline struct {
	ast.BaseInline
}

func (n *Underline) Kind() ast.NodeKind { return KindUnderline }

func (n *Underline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// noteExtension renders the node kinds goldmark has no HTML for.
type noteExtension struct {
	base string
}

func (e *noteExtension) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&noteRenderer{base: e.base}, 500),
	))
}

type noteRenderer struct {
	base string
}

func noteHref(base, id string) string {
	return base + url.PathEscape(id)
}

func (r *noteRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWikilink, r.renderWikilink)
	reg.Register(KindUnderline, r.renderUnderline)
}

func (r *noteRenderer) renderWikilink(
	w util.BufWriter, _ []byte, node ast.Node, entering bool,
) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString(`</a>`)
		return ast.WalkContinue, nil
	}
	n := node.(*Wikilink)
	_, _ = w.WriteString(`<a class="wikilink" href="`)
	_, _ = w.WriteString(html.EscapeString(noteHref(r.base, n.Target)))
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func (r *noteRenderer) renderUnderline(
	w util.BufWriter, _ []byte, _ ast.Node, entering bool,
) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("<u>")
	} else {
		_, _ = w.WriteString("</u>")
	}
	return ast.WalkContinue, nil
}
