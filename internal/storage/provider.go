// Package storage defines the vault file-system abstraction. Directories in
// the vault form the note folder tree.
package storage

import "github.com/starford/folio/internal/models"

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every note file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Dirs returns every folder under dir, parents before children.
	Dirs(dir string) ([]string, error)
	// Exists reports whether a file exists at path.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath. It fails if newPath exists.
	Move(oldPath, newPath string) error
}
