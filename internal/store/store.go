// Package store defines the local note persistence contract.
//
// The store is the single source of truth while offline. Implementations must
// behave as last-writer-wins, whole-note upserts keyed by uuid: the caller
// decides the winning copy before writing, the store never merges fields.
//
// Implementations must survive process restarts and degrade corrupt or missing
// data to "absent" rather than failing reads.
package store

import "github.com/scribepad/scribe/internal/note"

// Store is the durable key-value persistence for note entities.
type Store interface {
	// GetNote returns the note with the given uuid, or nil if absent.
	GetNote(uuid string) (*note.Note, error)

	// SaveNote upserts the note keyed by its uuid.
	SaveNote(n *note.Note) error

	// DeleteNote removes the note. Deleting an absent note is not an error.
	DeleteNote(uuid string) error

	// GetAllNotes returns every stored note in unspecified order.
	GetAllNotes() ([]*note.Note, error)
}
