// Package note provides the note entity and its sync version bookkeeping.
package note

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskItem is a checkable sub-item inside a note.
type TaskItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Note is the central entity of the client. Identity is the client-generated
// UUID; ID is the server-assigned integer and stays 0 until the first remote
// create succeeds.
//
// LocalVersion counts local edits, SyncVersion is the last version confirmed
// by the remote service. LocalVersion >= SyncVersion always holds; the note is
// clean (fully synced) when they are equal.
type Note struct {
	// ===== Identity =====
	UUID   string `json:"uuid"`
	ID     int64  `json:"id"` // 0 = never synced
	UserID int64  `json:"user_id"`

	// ===== Content =====
	Title  string     `json:"title"`
	Body   string     `json:"body,omitempty"`
	Color  string     `json:"color,omitempty"`
	PosX   float64    `json:"pos_x"`
	PosY   float64    `json:"pos_y"`
	Tasks  []TaskItem `json:"tasks,omitempty"`
	Tags   []string   `json:"tags,omitempty"`
	Pinned bool       `json:"pinned"`
	Hidden bool       `json:"hidden"`

	// ===== Sync metadata =====
	LocalVersion    int64      `json:"local_version"`
	SyncVersion     int64      `json:"sync_version"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	ClientUpdatedAt *time.Time `json:"client_updated_at,omitempty"`
}

// New creates a note with a fresh UUID, owned by userID.
// Both version counters start at 1; the note has no server id yet.
func New(userID int64, title, body string) *Note {
	return &Note{
		UUID:         uuid.NewString(),
		UserID:       userID,
		Title:        title,
		Body:         body,
		LocalVersion: 1,
		SyncVersion:  1,
	}
}

// Dirty reports whether the note has local edits the remote has not confirmed.
func (n *Note) Dirty() bool {
	return n.LocalVersion > n.SyncVersion
}

// Synced reports whether the note has ever been created remotely.
func (n *Note) Synced() bool {
	return n.ID != 0
}

// Touch records a local edit: the local version is bumped and the edit
// timestamp is set. Call this before saving a locally mutated note.
func (n *Note) Touch(now time.Time) {
	n.LocalVersion++
	t := now
	n.ClientUpdatedAt = &t
}

// ConfirmSync applies a server-confirmed write: the server id (when nonzero)
// and sync version are adopted, the pending-edit timestamp is cleared, and
// LocalVersion is raised to match if the server moved past it.
func (n *Note) ConfirmSync(id, syncVersion int64, at time.Time) {
	if id != 0 {
		n.ID = id
	}
	n.SyncVersion = syncVersion
	if n.LocalVersion < syncVersion {
		n.LocalVersion = syncVersion
	}
	t := at
	n.LastSyncedAt = &t
	n.ClientUpdatedAt = nil
}

// Validate checks the invariants every stored note must satisfy.
func (n *Note) Validate() error {
	if n.UUID == "" {
		return fmt.Errorf("uuid is required")
	}
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	if n.LocalVersion < 1 {
		return fmt.Errorf("local_version must be at least 1 (got %d)", n.LocalVersion)
	}
	if n.SyncVersion < 1 {
		return fmt.Errorf("sync_version must be at least 1 (got %d)", n.SyncVersion)
	}
	if n.LocalVersion < n.SyncVersion {
		return fmt.Errorf("local_version %d behind sync_version %d", n.LocalVersion, n.SyncVersion)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (n *Note) Clone() *Note {
	c := *n
	if n.Tasks != nil {
		c.Tasks = append([]TaskItem(nil), n.Tasks...)
	}
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	if n.LastSyncedAt != nil {
		t := *n.LastSyncedAt
		c.LastSyncedAt = &t
	}
	if n.ClientUpdatedAt != nil {
		t := *n.ClientUpdatedAt
		c.ClientUpdatedAt = &t
	}
	return &c
}
