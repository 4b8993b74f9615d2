package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/noteservice"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultDebounce = 500 * time.Millisecond
)

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long an idle session lives.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithDebounce sets the quiet period before edits are written.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithOnSaved registers a callback run after each successful write.
func WithOnSaved(fn func(*noteservice.Document)) Option {
	return func(m *Manager) { m.onSaved = fn }
}

// Manager tracks open sessions. Sessions expire after the TTL without use;
// an expiring session writes its pending changes first. At most one session
// is open per note.
type Manager struct {
	store    Store
	ttl      time.Duration
	debounce time.Duration
	logger   *slog.Logger
	onSaved  func(*noteservice.Document)

	sessions *cache.Cache

	mu     sync.Mutex
	byNote map[string]string
}

// NewManager creates a Manager that loads and saves documents through store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		ttl:      DefaultTTL,
		debounce: DefaultDebounce,
		byNote:   make(map[string]string),
	}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.sessions = cache.New(m.ttl, m.ttl/2)
	m.sessions.OnEvicted(m.evicted)
	return m
}

// Open returns the session for the note, loading the note when no session
// is open for it.
func (m *Manager) Open(ctx context.Context, noteID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sid, ok := m.byNote[noteID]; ok {
		if s, ok := m.lookup(sid); ok {
			return s, nil
		}
	}

	doc, err := m.store.LoadDocument(ctx, noteID)
	if err != nil {
		return nil, err
	}
	sid := uuid.NewString()
	saver := newSaver(m.store, doc.ID, m.debounce, m.logger.With(slog.String("session_id", sid)), m.onSaved)
	s := newSession(sid, doc.ID, doc.Content, saver)
	m.sessions.SetDefault(sid, s)
	m.byNote[noteID] = sid
	if doc.ID != noteID {
		m.byNote[doc.ID] = sid
	}
	m.logger.Debug("session: opened", slog.String("session_id", sid), slog.String("note_id", doc.ID))
	return s, nil
}

// Get returns an open session and extends its lifetime.
func (m *Manager) Get(sid string) (*Session, error) {
	s, ok := m.lookup(sid)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	return s, nil
}

// Close flushes and ends a session.
func (m *Manager) Close(ctx context.Context, sid string) error {
	s, ok := m.lookup(sid)
	if !ok {
		return apperr.ErrSessionNotFound
	}
	err := s.Close(ctx)
	m.sessions.Delete(sid)
	return err
}

// CloseAll flushes and ends every session.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for sid, item := range m.sessions.Items() {
		s := item.Object.(*Session)
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		m.sessions.Delete(sid)
	}
	return errors.Join(errs...)
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

func (m *Manager) lookup(sid string) (*Session, bool) {
	v, ok := m.sessions.Get(sid)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	m.sessions.SetDefault(sid, s)
	return s, true
}

// evicted runs when a session expires or is deleted.
func (m *Manager) evicted(sid string, v any) {
	s := v.(*Session)
	if err := s.Close(context.Background()); err != nil {
		m.logger.Warn("session: close on evict failed",
			slog.String("session_id", sid),
			slog.String("error", err.Error()))
	}
	m.mu.Lock()
	for note, id := range m.byNote {
		if id == sid {
			delete(m.byNote, note)
		}
	}
	m.mu.Unlock()
	m.logger.Debug("session: closed", slog.String("session_id", sid), slog.String("note_id", s.NoteID()))
}
