// Package noteservice coordinates vault storage and the index: note CRUD,
// structured documents, export, import and publishing.
package noteservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID          string         `json:"id"`
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Published   bool           `json:"published"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for non-fatal problems.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRenderer sets the HTML renderer for published notes.
func WithRenderer(r *publish.Renderer) Option {
	return func(s *Service) { s.render = r }
}

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     *index.DB
	render *publish.Renderer
	logger *slog.Logger

	// mu serializes read-modify-write cycles on note files.
	mu sync.Mutex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, opts ...Option) *Service {
	s := &Service{store: store, db: db}
	for _, o := range opts {
		o(s)
	}
	if s.render == nil {
		s.render = publish.New(publish.DefaultBasePath)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// GetNote reads a note from storage, parses it, and enriches with backlinks.
func (s *Service) GetNote(_ context.Context, p string) (*NoteDetail, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, data)
}

// GetByID reads the note with the given id.
func (s *Service) GetByID(ctx context.Context, id string) (*NoteDetail, error) {
	row, err := s.db.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.GetNote(ctx, row.Path)
}

// CreateNote writes a new note and indexes it. Notes without a frontmatter id
// are assigned one; empty content yields a note holding an empty document.
func (s *Service) CreateNote(_ context.Context, p string, content []byte) (*NoteDetail, error) {
	p, err := notePath(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Exists(p) {
		return nil, apperr.ErrAlreadyExists
	}
	data, err := withIdentity(content, "", time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.write(p, data); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, data)
}

// UpdateNote writes updated content with optimistic concurrency. The note
// keeps its id even when the new content omits or changes it.
func (s *Service) UpdateNote(_ context.Context, p string, content []byte, ifMatch string) (*NoteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(p)
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
	data, err := withIdentity(content, old.NoteID(p), old.Created)
	if err != nil {
		return nil, err
	}
	if err := s.write(p, data); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, data)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteNote(p)
}

// MoveNote renames a note within the folder tree. The note id is unchanged,
// so links to it stay valid.
func (s *Service) MoveNote(_ context.Context, from, to string) (*NoteDetail, error) {
	to, err := notePath(to)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Exists(from) {
		return nil, apperr.ErrNotFound
	}
	if s.store.Exists(to) {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(from, to); err != nil {
		return nil, err
	}
	if err := s.db.DeleteNote(from); err != nil {
		return nil, err
	}
	data, err := s.read(to)
	if err != nil {
		return nil, err
	}
	// A path-derived id would change with the path, so it is pinned first.
	pinned, err := withIdentity(data, parser.DefaultID(from), time.Time{})
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pinned, data) {
		if err := s.write(to, pinned); err != nil {
			return nil, err
		}
		return s.buildNoteDetail(to, pinned)
	}
	if err := index.IndexFile(s.db, to, data); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(to, data)
}

// ListNotes returns one page of notes.
func (s *Service) ListNotes(_ context.Context, q index.ListQuery) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:        r.ID,
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			Published: r.Published,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Folders returns the vault folder tree, parents before children.
func (s *Service) Folders(_ context.Context) ([]string, error) {
	dirs, err := s.store.Dirs("")
	if err != nil {
		return nil, err
	}
	return nonNilSlice(dirs), nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Backlinks returns the paths of all notes that link to the note id.
func (s *Service) Backlinks(_ context.Context, id string) ([]string, error) {
	bl, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(p string, data []byte) error {
	return index.IndexFile(s.db, p, data)
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) write(p string, data []byte) error {
	if err := s.store.Write(p, data); err != nil {
		return err
	}
	return index.IndexFile(s.db, p, data)
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(p string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	id := res.NoteID(p)
	bl, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:          id,
		Path:        p,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Published:   res.Published,
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		UpdatedAt:   time.Now(),
	}, nil
}

// withIdentity makes sure content carries an id and a creation time in its
// frontmatter. An empty id generates a new one when the content has none.
func withIdentity(content []byte, id string, created time.Time) ([]byte, error) {
	res, err := parser.Parse(content)
	if err != nil {
		return nil, err
	}
	fm := res.Frontmatter
	if fm == nil {
		fm = map[string]any{}
	}
	switch {
	case id != "":
		fm[models.KeyID] = id
	case res.ID == "":
		fm[models.KeyID] = uuid.NewString()
	}
	if _, ok := fm[models.KeyCreated]; !ok && !created.IsZero() {
		fm[models.KeyCreated] = created.UTC().Format(time.RFC3339)
	}
	if res.ID == fm[models.KeyID] && len(res.Frontmatter) == len(fm) {
		return content, nil
	}
	return parser.Compose(fm, res.Body)
}

// notePath validates a vault-relative note path and adds the note extension
// when it is missing.
func notePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("noteservice: path %q: %w", p, apperr.ErrInvalidFormat)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("noteservice: path %q: %w", p, apperr.ErrInvalidFormat)
		}
	}
	p = path.Clean(p)
	if !strings.HasSuffix(p, storage.NoteExt) {
		p += storage.NoteExt
	}
	return p, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
