// Package session manages editing sessions. A Session exclusively owns one
// note's document and selection; every operation on it runs under its lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/richtext"
)

// ErrNothingToUndo is returned by Undo when the history is empty.
var ErrNothingToUndo = errors.New("session: nothing to undo")

const maxUndo = 100

// Active describes the formatting at the current selection, as shown by a
// toolbar.
type Active struct {
	Marks []richtext.Mark    `json:"marks"`
	Block richtext.BlockType `json:"block"`
}

// State is a point-in-time view of a session.
type State struct {
	SessionID string              `json:"session_id"`
	NoteID    string              `json:"note_id"`
	Document  *richtext.Document  `json:"document"`
	Selection *richtext.Selection `json:"selection"`
	Active    Active              `json:"active"`
	Version   int                 `json:"version"`
}

type snapshot struct {
	doc *richtext.Document
	sel *richtext.Selection
}

// Session is one client's edit of one note.
type Session struct {
	id     string
	noteID string
	saver  *Saver

	mu      sync.Mutex
	doc     *richtext.Document
	sel     *richtext.Selection
	undo    []snapshot
	version int
	closed  bool
}

func newSession(id, noteID string, doc *richtext.Document, saver *Saver) *Session {
	return &Session{
		id:     id,
		noteID: noteID,
		saver:  saver,
		doc:    doc,
		sel:    richtext.Start(doc),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// NoteID returns the id of the edited note.
func (s *Session) NoteID() string { return s.noteID }

// Select replaces the selection. A nil selection clears it.
func (s *Session) Select(sel *richtext.Selection) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, apperr.ErrSessionNotFound
	}
	checked, err := richtext.CheckSelection(s.doc, sel)
	if err != nil {
		return State{}, err
	}
	s.sel = checked
	return s.state(), nil
}

// ToggleMark applies or removes m across the selection.
func (s *Session) ToggleMark(m richtext.Mark) (State, error) {
	if !m.Valid() {
		return State{}, fmt.Errorf("session: mark %s: %w", m, apperr.ErrInvalidFormat)
	}
	return s.apply(func(d *richtext.Document, sel *richtext.Selection) (*richtext.Selection, error) {
		return richtext.ToggleMark(d, sel, m)
	})
}

// ToggleBlock converts the selected blocks to t, or back to paragraphs when
// they already are t. List items are not a valid target.
func (s *Session) ToggleBlock(t richtext.BlockType) (State, error) {
	if !t.Valid() || t == richtext.ListItem {
		return State{}, fmt.Errorf("session: block %s: %w", t, apperr.ErrInvalidFormat)
	}
	return s.apply(func(d *richtext.Document, sel *richtext.Selection) (*richtext.Selection, error) {
		return richtext.ToggleBlock(d, sel, t)
	})
}

// apply runs op on a copy of the document so a failed operation leaves the
// session untouched. The previous document becomes the undo snapshot.
func (s *Session) apply(op func(*richtext.Document, *richtext.Selection) (*richtext.Selection, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, apperr.ErrSessionNotFound
	}
	work := s.doc.Clone()
	sel, err := op(work, s.sel)
	if err != nil {
		return State{}, err
	}
	if richtext.Equal(work, s.doc) {
		s.sel = sel
		return s.state(), nil
	}
	if work.Garbage() > work.Live() {
		work = work.Compact()
	}

	s.undo = append(s.undo, snapshot{doc: s.doc, sel: s.sel})
	if len(s.undo) > maxUndo {
		s.undo = s.undo[len(s.undo)-maxUndo:]
	}
	s.doc, s.sel = work, sel
	s.changed()
	return s.state(), nil
}

// Undo restores the document and selection from before the last change.
func (s *Session) Undo() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, apperr.ErrSessionNotFound
	}
	if len(s.undo) == 0 {
		return State{}, ErrNothingToUndo
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.doc, s.sel = last.doc, last.sel
	s.changed()
	return s.state(), nil
}

// ActiveFormats reports the marks and block type at the selection.
func (s *Session) ActiveFormats() Active {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active()
}

// Snapshot returns the current state. The document in it is a copy.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

// Close writes any pending change and ends the session. Closing twice is a
// no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.saver.Stop(ctx)
}

// Flush writes any pending change now.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

func (s *Session) changed() {
	s.version++
	s.saver.Schedule(s.doc)
}

func (s *Session) state() State {
	return State{
		SessionID: s.id,
		NoteID:    s.noteID,
		Document:  s.doc.Clone(),
		Selection: s.sel.Clone(),
		Active:    s.active(),
		Version:   s.version,
	}
}

func (s *Session) active() Active {
	return Active{
		Marks: nonNil(richtext.ActiveMarks(s.doc, s.sel).List()),
		Block: richtext.ActiveBlock(s.doc, s.sel),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
