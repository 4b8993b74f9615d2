// Package parser reads and writes note files: optional YAML frontmatter
// between --- fences followed by a body in the note text format.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/folio/internal/markdown"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/richtext"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Doc         *richtext.Document
	ID          string
	Links       []string
	Tags        []string
	Title       string
	Published   bool
	Created     time.Time
}

// Parse splits data into frontmatter and body and deserializes the body.
// Invalid frontmatter is treated as part of the body.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	doc := markdown.Deserialize(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Doc:         doc,
		ID:          stringField(fm, models.KeyID),
		Links:       doc.Links(),
		Tags:        extractTags(doc, fm),
		Title:       deriveTitle(fm, doc),
		Published:   boolField(fm, models.KeyPublished),
		Created:     timeField(fm, models.KeyCreated),
	}, nil
}

// NoteID returns the note identifier: the frontmatter id, or for files
// written without one, the vault path without its .md extension.
func (r *Result) NoteID(filePath string) string {
	if r.ID != "" {
		return r.ID
	}
	return DefaultID(filePath)
}

// DefaultID derives an identifier from a vault-relative file path.
func DefaultID(filePath string) string {
	p := strings.ReplaceAll(filePath, "\\", "/")
	return strings.TrimSuffix(path.Clean(p), ".md")
}

// Compose renders a note file from frontmatter and a serialized body.
func Compose(fm map[string]any, body string) ([]byte, error) {
	var b bytes.Buffer
	if len(fm) > 0 {
		out, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
		}
		b.WriteString("---\n")
		b.Write(out)
		b.WriteString("---\n")
		if body != "" {
			b.WriteByte('\n')
		}
	}
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// ComposeDocument renders a note file from frontmatter and a document.
func ComposeDocument(fm map[string]any, doc *richtext.Document) ([]byte, error) {
	return Compose(fm, markdown.Serialize(doc))
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	trimmed := bytes.TrimLeft(data, "\n")

	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	if nl := bytes.IndexByte(afterDelim, '\n'); nl >= 0 {
		afterDelim = afterDelim[nl+1:]
	} else {
		afterDelim = nil
	}
	body := strings.TrimLeft(string(afterDelim), "\n")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data), nil
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, body, nil
}

// extractTags collects frontmatter tags followed by #tags written in the
// body. Code blocks and code-marked text are not scanned.
func extractTags(doc *richtext.Document, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	switch v := fm[models.KeyTags].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	var code []richtext.Path
	var text strings.Builder
	for p, n := range doc.Walk() {
		if n.Kind == richtext.KindBlock {
			if n.Type == richtext.CodeBlock {
				code = append(code, p)
			}
			text.WriteByte('\n')
			continue
		}
		if n.Kind != richtext.KindText || n.Marks.Has(richtext.Code) || insideAny(code, p) {
			continue
		}
		text.WriteString(n.Text)
	}
	for _, m := range tagRe.FindAllStringSubmatch(text.String(), -1) {
		add(m[1])
	}
	return out
}

func insideAny(blocks []richtext.Path, p richtext.Path) bool {
	for _, b := range blocks {
		if b.IsAncestorOf(p) {
			return true
		}
	}
	return false
}

// deriveTitle returns the frontmatter title if present, otherwise the text
// of the first top-level heading-one, otherwise "".
func deriveTitle(fm map[string]any, doc *richtext.Document) string {
	if t := stringField(fm, models.KeyTitle); t != "" {
		return t
	}
	if h, ok := doc.FirstBlock(richtext.HeadingOne); ok {
		return strings.TrimSpace(doc.BlockText(h.ID))
	}
	return ""
}

func stringField(fm map[string]any, key string) string {
	switch v := fm[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

func boolField(fm map[string]any, key string) bool {
	b, _ := fm[key].(bool)
	return b
}

func timeField(fm map[string]any, key string) time.Time {
	switch v := fm[key].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
