package store

import (
	"sync"

	"github.com/scribepad/scribe/internal/note"
)

// Memory is an in-memory Store used by tests and as a fallback when no
// durable path is configured. Notes are deep-copied on the way in and out so
// callers never alias store state.
type Memory struct {
	mu    sync.RWMutex
	notes map[string]*note.Note
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{notes: make(map[string]*note.Note)}
}

// GetNote implements Store.
func (m *Memory) GetNote(uuid string) (*note.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[uuid]
	if !ok {
		return nil, nil
	}
	return n.Clone(), nil
}

// SaveNote implements Store.
func (m *Memory) SaveNote(n *note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.notes[n.UUID] = n.Clone()
	return nil
}

// DeleteNote implements Store.
func (m *Memory) DeleteNote(uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.notes, uuid)
	return nil
}

// GetAllNotes implements Store.
func (m *Memory) GetAllNotes() ([]*note.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notes := make([]*note.Note, 0, len(m.notes))
	for _, n := range m.notes {
		notes = append(notes, n.Clone())
	}
	return notes, nil
}
