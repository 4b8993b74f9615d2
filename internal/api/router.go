package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/session"
)

// RouterConfig controls the protected API router.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *noteservice.Service, sessions *session.Manager, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Post("/notes-move", h.MoveNote)
	r.Get("/folders", h.Folders)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/backlinks/{id}", h.Backlinks)

	// Structured documents.
	r.Get("/documents/{id}", h.GetDocument)
	r.Put("/documents/{id}", h.SaveDocument)

	// Editing sessions.
	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Post("/select", h.Select)
		r.Post("/marks", h.ToggleMark)
		r.Post("/blocks", h.ToggleBlock)
		r.Post("/undo", h.Undo)
	})

	r.Get("/export", h.ExportAll)
	r.Get("/export/{id}", h.Export)
	r.Post("/import", h.Import)

	r.Post("/publish/{id}", h.Publish)
	r.Delete("/publish/{id}", h.Unpublish)

	// SSE endpoint (protected by same auth middleware).
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}

// NewPublicRouter serves published notes as HTML pages without auth.
func NewPublicRouter(svc *noteservice.Service) chi.Router {
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Get("/{id}", h.PublishedPage)
	return r
}
