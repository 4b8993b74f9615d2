package noteservice

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/markdown"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
)

// ExportArchiveName is the file name offered for a whole-vault export.
const ExportArchiveName = "folio-export.zip"

const untitled = "Untitled"

var importExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// Export returns a single note as a markdown file named after its title.
func (s *Service) Export(_ context.Context, id string) (string, []byte, error) {
	_, data, err := s.readByID(id)
	if err != nil {
		return "", nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return "", nil, err
	}
	return fileTitle(res.Title) + storage.NoteExt, exportBody(res), nil
}

// ExportAll writes a zip archive with one markdown file per note. Notes
// sharing a title get a numbered suffix.
func (s *Service) ExportAll(_ context.Context, w io.Writer) error {
	metas, err := s.store.List("")
	if err != nil {
		return err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })

	zw := zip.NewWriter(w)
	used := make(map[string]bool, len(metas))
	for _, m := range metas {
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("export: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(data)
		if err != nil {
			s.logger.Warn("export: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		name := uniqueName(fileTitle(res.Title), storage.NoteExt, func(n string) bool { return used[n] })
		used[name] = true

		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: m.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("noteservice: export %s: %w", m.Path, err)
		}
		if _, err := f.Write(exportBody(res)); err != nil {
			return fmt.Errorf("noteservice: export %s: %w", m.Path, err)
		}
	}
	return zw.Close()
}

// Import creates a note from an uploaded markdown file. The note gets a new
// id; its title defaults to the file name and its path is derived from the
// title.
func (s *Service) Import(_ context.Context, name string, data []byte) (*NoteDetail, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	if !importExts[ext] {
		return nil, fmt.Errorf("noteservice: import %q: %w", name, apperr.ErrInvalidFormat)
	}
	title := strings.TrimSpace(strings.TrimSuffix(base, path.Ext(base)))

	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	fm := res.Frontmatter
	if fm == nil {
		fm = map[string]any{}
	}
	fm[models.KeyID] = uuid.NewString()
	if res.Title == "" && title != "" {
		fm[models.KeyTitle] = title
	}
	if _, ok := fm[models.KeyCreated]; !ok {
		fm[models.KeyCreated] = time.Now().UTC().Format(time.RFC3339)
	}
	if res.Title != "" {
		title = res.Title
	}
	out, err := parser.Compose(fm, markdown.Serialize(res.Doc))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := uniqueName(fileTitle(title), storage.NoteExt, s.store.Exists)
	if err := s.write(p, out); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(p, out)
}

// exportBody is the serialized document of a note, without frontmatter.
func exportBody(res *parser.Result) []byte {
	body := markdown.Serialize(res.Doc)
	if body == "" {
		return nil
	}
	return []byte(body + "\n")
}

// fileTitle turns a note title into a safe file name stem.
func fileTitle(title string) string {
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, title)
	title = strings.Trim(strings.TrimSpace(title), ".")
	if title == "" {
		return untitled
	}
	return title
}

// uniqueName returns stem+ext, or "stem (n)"+ext for the lowest n >= 2
// that is not taken.
func uniqueName(stem, ext string, taken func(string) bool) string {
	name := stem + ext
	for n := 2; taken(name); n++ {
		name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	return name
}
