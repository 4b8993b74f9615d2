package index

import (
	"log/slog"
	"time"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
)

// Change kinds reported for index mutations.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change describes one note entering, changing in, or leaving the index.
type Change struct {
	Kind string
	Path string
	ID   string
}

// Sync walks the vault and brings the index up to date: new or changed
// files are parsed and upserted, files gone from disk are removed.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	indexed, removed, err := reconcile(db, store, logger, nil)
	if err != nil {
		return err
	}
	logger.Info("sync: done", slog.Int("indexed", indexed), slog.Int("removed", removed))
	return nil
}

// reconcile compares the vault with the index by checksum and repairs every
// difference, reporting each one to emit when it is non-nil.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, emit func(Change)) (indexed, removed int, err error) {
	metas, err := store.List("")
	if err != nil {
		return 0, 0, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return 0, 0, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		old, known := checksums[m.Path]
		if old == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		id, err := indexFile(db, m.Path, data, m.UpdatedAt)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		if emit != nil {
			kind := ChangeUpdated
			if !known {
				kind = ChangeCreated
			}
			emit(Change{Kind: kind, Path: m.Path, ID: id})
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		id, err := removeNote(db, p)
		if err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
		if emit != nil {
			emit(Change{Kind: ChangeDeleted, Path: p, ID: id})
		}
	}
	return indexed, removed, nil
}

// indexFile parses data, upserts it and returns the note id. The stored body
// is the document's plain text so search never matches on markup.
func indexFile(db *DB, path string, data []byte, updated time.Time) (string, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return "", err
	}

	row := NoteRow{
		Path:      path,
		ID:        res.NoteID(path),
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		Published: res.Published,
		CreatedAt: res.Created,
		UpdatedAt: updated,
	}
	return row.ID, db.UpsertNote(row, res.Doc.Text(), res.Links)
}

// removeNote deletes path from the index and returns the id it had.
func removeNote(db *DB, path string) (string, error) {
	var id string
	if row, err := db.GetNote(path); err == nil {
		id = row.ID
	}
	return id, db.DeleteNote(path)
}

// IndexFile indexes one note after the caller has written it.
func IndexFile(db *DB, path string, data []byte) error {
	_, err := indexFile(db, path, data, time.Now())
	return err
}
