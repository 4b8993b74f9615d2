package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/richtext"
)

// Store loads and persists note documents.
type Store interface {
	LoadDocument(ctx context.Context, id string) (*noteservice.Document, error)
	SaveDocument(ctx context.Context, id string, doc *richtext.Document, ifMatch string) (*noteservice.Document, error)
}

// Saver writes a note's document after edits have been quiet for a delay.
// Rapid edits coalesce into one write. A failed write is logged and the
// document stays pending, so the next edit or Flush retries it.
type Saver struct {
	store   Store
	noteID  string
	delay   time.Duration
	logger  *slog.Logger
	onSaved func(*noteservice.Document)

	mu      sync.Mutex
	pending *richtext.Document
	timer   *time.Timer
	stopped bool

	// saveMu keeps writes in order when a timer fires during Flush.
	saveMu sync.Mutex
}

func newSaver(store Store, noteID string, delay time.Duration, logger *slog.Logger, onSaved func(*noteservice.Document)) *Saver {
	return &Saver{
		store:   store,
		noteID:  noteID,
		delay:   delay,
		logger:  logger,
		onSaved: onSaved,
	}
}

// Schedule records doc as the latest content and restarts the quiet period.
// The caller may keep mutating doc afterwards.
func (s *Saver) Schedule(doc *richtext.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = doc.Clone()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		_ = s.save(context.Background())
	})
}

// Pending reports whether a write is outstanding.
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Flush writes the pending document now.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.save(ctx)
}

// Stop flushes and refuses further scheduling.
func (s *Saver) Stop(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return err
}

func (s *Saver) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	doc := s.pending
	s.pending = nil
	s.mu.Unlock()
	if doc == nil {
		return nil
	}

	saved, err := s.store.SaveDocument(ctx, s.noteID, doc, "")
	if err != nil {
		s.logger.Error("session: save failed",
			slog.String("note_id", s.noteID),
			slog.String("error", err.Error()))
		s.mu.Lock()
		if s.pending == nil {
			s.pending = doc
		}
		s.mu.Unlock()
		return err
	}
	s.logger.Debug("session: saved", slog.String("note_id", s.noteID), slog.String("path", saved.Path))
	if s.onSaved != nil {
		s.onSaved(saved)
	}
	return nil
}
