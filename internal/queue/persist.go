package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Persistence reads and writes a named queue collection as a whole snapshot.
//
// Implementations must degrade gracefully: loading an absent or corrupt
// collection returns an empty queue, never an error the caller has to handle
// as fatal. Pending work must survive process restarts.
type Persistence interface {
	// Load returns the snapshot stored under name, or nil when absent.
	Load(name string) ([]Item, error)

	// Save replaces the snapshot stored under name.
	Save(name string, items []Item) error
}

// FileStore persists queue snapshots as JSON files in a directory, one file
// per collection ({name}.json).
type FileStore struct {
	dir    string
	logger *log.Logger
}

// NewFileStore creates a file-backed persistence rooted at dir.
// If logger is nil, a default logger writing to stderr is used.
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Load implements Persistence. A missing file yields an empty queue; a file
// that fails to parse is logged and likewise treated as empty.
func (f *FileStore) Load(name string) ([]Item, error) {
	path := f.path(name)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue %s: %w", name, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		f.logger.Printf("WARNING: queue %s is corrupt, starting empty: %v", name, err)
		return nil, nil
	}

	return items, nil
}

// Save implements Persistence. The snapshot is written to a temp file and
// renamed into place so a crash mid-write cannot corrupt the queue.
func (f *FileStore) Save(name string, items []Item) error {
	if items == nil {
		items = []Item{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue %s: %w", name, err)
	}

	path := f.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write queue %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace queue %s: %w", name, err)
	}

	return nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// MemoryStore is an in-memory Persistence used by tests.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]Item
}

// NewMemoryStore creates an empty in-memory persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]Item)}
}

// Load implements Persistence.
func (m *MemoryStore) Load(name string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.snapshots[name]...), nil
}

// Save implements Persistence.
func (m *MemoryStore) Save(name string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[name] = append([]Item(nil), items...)
	return nil
}
