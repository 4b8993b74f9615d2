// Package publish renders notes as read-only HTML pages.
package publish

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/starford/folio/internal/richtext"
)

// DefaultBasePath is where published notes are served.
const DefaultBasePath = "/p"

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<article class="note">
{{if .Title}}<header><h1 class="note-title">{{.Title}}</h1></header>
{{end}}{{.Body}}
</article>
</body>
</html>
`))

// Renderer turns documents into HTML. Links point at other published notes
// under the base path.
type Renderer struct {
	md   goldmark.Markdown
	base string
}

// New creates a Renderer whose note links are served under basePath.
func New(basePath string) *Renderer {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	base := strings.TrimSuffix(basePath, "/") + "/"
	return &Renderer{
		md:   goldmark.New(goldmark.WithExtensions(&noteExtension{base: base})),
		base: base,
	}
}

// LinkFor returns the published URL of a note id.
func (r *Renderer) LinkFor(id string) string {
	return noteHref(r.base, id)
}

// Body renders the document content as an HTML fragment. The goldmark AST
// is built from the document itself rather than parsed from its text form.
func (r *Renderer) Body(doc *richtext.Document) (string, error) {
	tb := &treeBuilder{}
	root := tb.document(doc)
	var b bytes.Buffer
	if err := r.md.Renderer().Render(&b, tb.src, root); err != nil {
		return "", fmt.Errorf("publish: render: %w", err)
	}
	return b.String(), nil
}

// Page writes a complete HTML page for a note.
func (r *Renderer) Page(w io.Writer, title string, doc *richtext.Document) error {
	body, err := r.Body(doc)
	if err != nil {
		return err
	}
	return pageTmpl.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(body), //nolint:gosec // produced by goldmark from a validated document
	})
}

// RefreshLinks returns a copy of doc in which every link showing a single
// plain text leaf displays the current title of its target. Links with
// formatted display text, and links to unknown notes, are left as written.
func RefreshLinks(doc *richtext.Document, titles map[string]string) *richtext.Document {
	specs := doc.Spec()
	for i := range specs {
		refresh(&specs[i], titles)
	}
	out, err := richtext.Build(specs...)
	if err != nil {
		return doc.Clone()
	}
	return out
}

func refresh(s *richtext.Spec, titles map[string]string) {
	if s.Kind == richtext.KindInline {
		title, ok := titles[s.Target]
		if ok && title != "" && len(s.Children) == 1 && s.Children[0].Marks.IsEmpty() {
			s.Children = []richtext.Spec{richtext.T(title)}
		}
		return
	}
	for i := range s.Children {
		refresh(&s.Children[i], titles)
	}
}
