package noteservice

import (
	"bytes"
	"context"
	"fmt"
	"maps"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/richtext"
)

// Document is a note's content as a structured tree.
type Document struct {
	ID       string             `json:"id"`
	Path     string             `json:"path"`
	Title    string             `json:"title"`
	Checksum string             `json:"checksum"`
	Content  *richtext.Document `json:"content"`
}

// LoadDocument reads the note with the given id as a document tree.
func (s *Service) LoadDocument(_ context.Context, id string) (*Document, error) {
	p, data, err := s.readByID(id)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:       res.NoteID(p),
		Path:     p,
		Title:    res.Title,
		Checksum: checksum.Sum(data),
		Content:  res.Doc,
	}, nil
}

// SaveDocument replaces the body of the note with doc, keeping its
// frontmatter. A non-empty ifMatch must equal the current checksum.
func (s *Service) SaveDocument(_ context.Context, id string, doc *richtext.Document, ifMatch string) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("noteservice: save %s: %w", id, richtext.ErrEmptyDocument)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("noteservice: save %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, existing, err := s.readByID(id)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(ifMatch, existing) {
		return nil, apperr.ErrConflict
	}
	old, err := parser.Parse(existing)
	if err != nil {
		return nil, err
	}
	fm := maps.Clone(old.Frontmatter)
	if fm == nil {
		fm = map[string]any{}
	}
	fm[models.KeyID] = old.NoteID(p)
	data, err := parser.ComposeDocument(fm, doc)
	if err != nil {
		return nil, err
	}
	if err := s.write(p, data); err != nil {
		return nil, err
	}

	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:       res.NoteID(p),
		Path:     p,
		Title:    res.Title,
		Checksum: checksum.Sum(data),
		Content:  res.Doc,
	}, nil
}

// Publish makes the note readable on its public page.
func (s *Service) Publish(ctx context.Context, id string) (*NoteDetail, error) {
	return s.setPublished(ctx, id, true)
}

// Unpublish hides the note's public page.
func (s *Service) Unpublish(ctx context.Context, id string) (*NoteDetail, error) {
	return s.setPublished(ctx, id, false)
}

func (s *Service) setPublished(_ context.Context, id string, published bool) (*NoteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, existing, err := s.readByID(id)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(existing)
	if err != nil {
		return nil, err
	}
	if res.Published == published {
		return s.buildNoteDetail(p, existing)
	}
	fm := res.Frontmatter
	if fm == nil {
		fm = map[string]any{}
	}
	if published {
		fm[models.KeyPublished] = true
	} else {
		delete(fm, models.KeyPublished)
	}
	data, err := parser.Compose(fm, res.Body)
	if err != nil {
		return nil, err
	}
	if err := s.write(p, data); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, data)
}

// RenderPublished renders the public HTML page of a published note. Link
// text is refreshed from the current titles of the linked notes.
func (s *Service) RenderPublished(_ context.Context, id string) ([]byte, error) {
	_, data, err := s.readByID(id)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if !res.Published {
		return nil, apperr.ErrNotPublished
	}
	titles, err := s.db.Titles(res.Links)
	if err != nil {
		return nil, err
	}
	doc := publish.RefreshLinks(res.Doc, titles)

	var b bytes.Buffer
	if err := s.render.Page(&b, res.Title, doc); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (s *Service) readByID(id string) (string, []byte, error) {
	row, err := s.db.GetByID(id)
	if err != nil {
		return "", nil, err
	}
	data, err := s.read(row.Path)
	if err != nil {
		return "", nil, err
	}
	return row.Path, data, nil
}
