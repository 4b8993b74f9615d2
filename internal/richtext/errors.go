package richtext

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidContent is returned when a tree breaks a content rule.
	ErrInvalidContent = errors.New("invalid content")
	// ErrEmptyDocument is returned when a document has no blocks.
	ErrEmptyDocument = errors.New("empty document")
	// ErrUnknownType is returned for unrecognized block type or mark names.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidSelection is returned when a point does not address a text leaf.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Error describes a failure at a specific location in a document tree.
type Error struct {
	Op   string
	Path Path
	Err  error
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("richtext: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("richtext: %s at %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errAt(op string, p Path, err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &Error{Op: op, Path: p.Clone(), Err: err}
}
