package api

import (
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/richtext"
	"github.com/starford/folio/internal/session"
)

// CreateNoteRequest is the request body for creating a note. An empty
// content creates a note holding a single empty paragraph.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content *string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// MoveNoteRequest is the request body for moving a note.
type MoveNoteRequest struct {
	From string `json:"from" example:"inbox/idea.md" validate:"required"`
	To   string `json:"to" example:"projects/idea.md" validate:"required"`
}

// SaveDocumentRequest replaces a note's body with a document tree.
type SaveDocumentRequest struct {
	Content *richtext.Document `json:"content" validate:"required"`
}

// OpenSessionRequest starts an editing session.
type OpenSessionRequest struct {
	NoteID string `json:"note_id" example:"3f2a..." validate:"required"`
}

// SelectRequest replaces a session's selection. A null selection clears it.
type SelectRequest struct {
	Selection *richtext.Selection `json:"selection"`
}

// MarkRequest toggles a mark over the selection.
type MarkRequest struct {
	Mark string `json:"mark" example:"bold" validate:"required"`
}

// BlockRequest toggles a block type over the selection.
type BlockRequest struct {
	Block string `json:"block" example:"heading-one" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// Document is a note body as a tree (aliased from the domain layer).
type Document = noteservice.Document

// SessionState is the session view returned by every session endpoint.
type SessionState = session.State

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the knowledge graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// BacklinksResponse lists the paths of notes linking to a note.
type BacklinksResponse struct {
	Backlinks []string `json:"backlinks" validate:"required"`
}

// FoldersResponse lists the vault's folders.
type FoldersResponse struct {
	Folders []string `json:"folders" validate:"required"`
}
