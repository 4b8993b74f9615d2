// Package models defines the domain types shared by storage, index and services.
package models

import "time"

// Frontmatter keys understood by Folio. Other keys are preserved untouched.
const (
	KeyID        = "id"
	KeyTitle     = "title"
	KeyTags      = "tags"
	KeyPublished = "published"
	KeyCreated   = "created"
)

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link represents a directed edge from a note to the note id it references.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
