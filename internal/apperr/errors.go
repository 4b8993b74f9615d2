// Package apperr holds sentinel errors shared across service layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrNotPublished    = errors.New("not published")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidFormat   = errors.New("invalid format")
)
