package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/storage"
)

const (
	defaultSettle    = 50 * time.Millisecond
	reconcileDelay   = 200 * time.Millisecond
	maxPendingWrites = 1024
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithOnChange sets the callback invoked after each index change made by
// the watcher.
func WithOnChange(fn func(Change)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithSettle sets how long a file must stay quiet after a write before it is
// re-indexed. Editors that write a file in several chunks produce one change.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// Watcher keeps the index in step with edits made to the vault outside the
// service, such as a text editor or a sync client.
//
// Writes made through the service are indexed before they reach the watcher,
// so their events find an up-to-date checksum and are dropped. Only foreign
// edits produce changes.
type Watcher struct {
	db       *DB
	store    storage.Provider
	root     string
	settle   time.Duration
	logger   *slog.Logger
	onChange func(Change)
}

// NewWatcher returns a watcher for the vault rooted at root.
func NewWatcher(db *DB, store storage.Provider, root string, opts ...WatcherOption) *Watcher {
	w := &Watcher{db: db, store: store, root: root, settle: defaultSettle}
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With(slog.String("component", "watcher"))
	return w
}

// Run watches the vault until ctx is cancelled. New directories join the
// watch list as they appear; renames trigger a reconciliation pass since
// fsnotify reports only the old name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	pending := make(map[string]bool) // rel path -> created
	settle := time.NewTimer(time.Hour)
	settle.Stop()
	reconcileTimer := time.NewTimer(time.Hour)
	reconcileTimer.Stop()
	defer settle.Stop()
	defer reconcileTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-settle.C:
			for rel, created := range pending {
				w.reindex(rel, created)
			}
			clear(pending)

		case <-reconcileTimer.C:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					w.watchNewDir(fw, ev.Name)
					continue
				}
			}

			rel, ok := w.relNote(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = pending[rel] || ev.Op&fsnotify.Create != 0
				if len(pending) >= maxPendingWrites {
					settle.Reset(0)
				} else {
					settle.Reset(w.settle)
				}

			case ev.Op&fsnotify.Remove != 0:
				delete(pending, rel)
				w.remove(rel)

			case ev.Op&fsnotify.Rename != 0:
				delete(pending, rel)
				w.remove(rel)
				reconcileTimer.Reset(reconcileDelay)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relNote maps an absolute event path to a visible vault-relative note path.
func (w *Watcher) relNote(abs string) (string, bool) {
	if !strings.HasSuffix(abs, storage.NoteExt) {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if storage.Hidden(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) emit(c Change) {
	if w.onChange != nil {
		w.onChange(c)
	}
}

// reindex re-reads rel and updates the index unless its content is already
// indexed.
func (w *Watcher) reindex(rel string, created bool) {
	data, err := w.store.Read(rel)
	if err != nil {
		// Gone again before it settled; the remove event handles it.
		w.logger.Debug("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	old, err := w.db.GetChecksum(rel)
	if err != nil {
		w.logger.Warn("watcher: checksum lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if old == checksum.Sum(data) {
		return
	}
	id, err := indexFile(w.db, rel, data, time.Now())
	if err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	kind := ChangeUpdated
	if created || old == "" {
		kind = ChangeCreated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.emit(Change{Kind: kind, Path: rel, ID: id})
}

func (w *Watcher) remove(rel string) {
	old, err := w.db.GetChecksum(rel)
	if err != nil || old == "" {
		return
	}
	id, err := removeNote(w.db, rel)
	if err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.emit(Change{Kind: ChangeDeleted, Path: rel, ID: id})
}

func (w *Watcher) reconcile() {
	if _, _, err := reconcile(w.db, w.store, w.logger, w.emit); err != nil {
		w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
	}
}

// watchNewDir adds a directory created at runtime and indexes the notes it
// already holds, as happens when a folder is moved into the vault.
func (w *Watcher) watchNewDir(fw *fsnotify.Watcher, dir string) {
	if err := addDirsRecursive(fw, dir); err != nil {
		w.logger.Warn("watcher: add new dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relNote(p); ok {
			w.reindex(rel, true)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its visible subdirectories to the watcher.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
