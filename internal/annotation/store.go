package annotation

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get, UpdateContent, and Delete when no note with
// the requested ID exists. Callers at the view layer treat it as a no-op
// (logged, not surfaced as a failure).
var ErrNotFound = errors.New("note not found")

// ErrInvalidRange is returned by Create when the note's word range is
// inverted.
var ErrInvalidRange = errors.New("note word range is inverted")

// Store manages the notes of one transcript.
//
// All implementations must be safe for concurrent use and must serialize
// mutations so no two inserts interleave their re-sort.
type Store interface {
	// Create inserts a new note and returns it completed. An empty ID and a
	// zero CreatedAt are assigned by the store; non-zero values are preserved
	// (session import). Returns [ErrInvalidRange] when
	// StartWordIndex > EndWordIndex.
	Create(ctx context.Context, note Note) (Note, error)

	// Get retrieves a note by ID.
	// Returns [ErrNotFound] when no note with that ID exists.
	Get(ctx context.Context, id string) (Note, error)

	// List returns all notes in display order:
	// (StartTime, StartWordIndex, CreatedAt) ascending.
	List(ctx context.Context) ([]Note, error)

	// UpdateContent replaces the content of an existing note. Only the body
	// changes; the bound range, quote, and timestamps are immutable.
	// Returns [ErrNotFound] when no note with that ID exists.
	UpdateContent(ctx context.Context, id string, content string) error

	// Delete removes a note by ID.
	// Returns [ErrNotFound] when no note with that ID exists.
	Delete(ctx context.Context, id string) error

	// IsTokenAnnotated reports whether any note's range covers word index i.
	// Called once per token during rendering, so implementations keep this
	// cheap relative to List.
	IsTokenAnnotated(ctx context.Context, i int) (bool, error)
}

// validate checks the range invariant shared by all store implementations.
func validate(note Note) error {
	if note.StartWordIndex > note.EndWordIndex {
		return fmt.Errorf("annotation: range [%d, %d]: %w", note.StartWordIndex, note.EndWordIndex, ErrInvalidRange)
	}
	return nil
}
