package remote

import (
	"time"

	"github.com/scribepad/scribe/internal/note"
)

// NoteCreateRequest is the wire shape for creating a note remotely.
type NoteCreateRequest struct {
	UUID   string          `json:"uuid"`
	Title  string          `json:"title"`
	Body   string          `json:"body,omitempty"`
	Color  string          `json:"color,omitempty"`
	PosX   float64         `json:"pos_x"`
	PosY   float64         `json:"pos_y"`
	Tasks  []note.TaskItem `json:"tasks,omitempty"`
	Tags   []string        `json:"tags,omitempty"`
	Pinned bool            `json:"pinned"`
	Hidden bool            `json:"hidden"`
}

// NoteUpdateRequest is the wire shape for updating a note remotely.
// SyncVersion carries the client's last confirmed version so the server can
// assign the successor version.
type NoteUpdateRequest struct {
	ID          int64           `json:"id"`
	UUID        string          `json:"uuid"`
	Title       string          `json:"title"`
	Body        string          `json:"body,omitempty"`
	Color       string          `json:"color,omitempty"`
	PosX        float64         `json:"pos_x"`
	PosY        float64         `json:"pos_y"`
	Tasks       []note.TaskItem `json:"tasks,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Pinned      bool            `json:"pinned"`
	Hidden      bool            `json:"hidden"`
	SyncVersion int64           `json:"sync_version"`
}

// NoteDeleteRequest is the wire shape for deleting a note remotely. The UUID
// keys the per-item result in batch responses.
type NoteDeleteRequest struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`
}

// NoteResponse is the server's confirmation of a single write. It carries the
// authoritative id and sync version the client writes back to its store.
type NoteResponse struct {
	ID          int64     `json:"id"`
	UUID        string    `json:"uuid"`
	SyncVersion int64     `json:"sync_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RemoteNote is the full note payload as the server sees it, returned by
// GetAll and carried in push events.
type RemoteNote struct {
	ID          int64           `json:"id"`
	UUID        string          `json:"uuid"`
	UserID      int64           `json:"user_id"`
	Title       string          `json:"title"`
	Body        string          `json:"body,omitempty"`
	Color       string          `json:"color,omitempty"`
	PosX        float64         `json:"pos_x"`
	PosY        float64         `json:"pos_y"`
	Tasks       []note.TaskItem `json:"tasks,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Pinned      bool            `json:"pinned"`
	Hidden      bool            `json:"hidden"`
	SyncVersion int64           `json:"sync_version"`
}

// ToNote converts a server copy into a clean local note: both version
// counters sit at the server's sync version, so the note reports no pending
// local edits.
func (rn *RemoteNote) ToNote() *note.Note {
	now := time.Now()
	return &note.Note{
		UUID:         rn.UUID,
		ID:           rn.ID,
		UserID:       rn.UserID,
		Title:        rn.Title,
		Body:         rn.Body,
		Color:        rn.Color,
		PosX:         rn.PosX,
		PosY:         rn.PosY,
		Tasks:        append([]note.TaskItem(nil), rn.Tasks...),
		Tags:         append([]string(nil), rn.Tags...),
		Pinned:       rn.Pinned,
		Hidden:       rn.Hidden,
		LocalVersion: rn.SyncVersion,
		SyncVersion:  rn.SyncVersion,
		LastSyncedAt: &now,
	}
}

// CreateRequestFromNote builds the create payload for a local note.
func CreateRequestFromNote(n *note.Note) NoteCreateRequest {
	return NoteCreateRequest{
		UUID:   n.UUID,
		Title:  n.Title,
		Body:   n.Body,
		Color:  n.Color,
		PosX:   n.PosX,
		PosY:   n.PosY,
		Tasks:  n.Tasks,
		Tags:   n.Tags,
		Pinned: n.Pinned,
		Hidden: n.Hidden,
	}
}

// UpdateRequestFromNote builds the update payload for a local note.
func UpdateRequestFromNote(n *note.Note) NoteUpdateRequest {
	return NoteUpdateRequest{
		ID:          n.ID,
		UUID:        n.UUID,
		Title:       n.Title,
		Body:        n.Body,
		Color:       n.Color,
		PosX:        n.PosX,
		PosY:        n.PosY,
		Tasks:       n.Tasks,
		Tags:        n.Tags,
		Pinned:      n.Pinned,
		Hidden:      n.Hidden,
		SyncVersion: n.SyncVersion,
	}
}

// BatchFailure is one rejected item inside an otherwise delivered batch.
// Code carries the per-item HTTP-style status the server attached.
type BatchFailure struct {
	UUID  string `json:"uuid"`
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// Permanent reports whether the rejection is non-retryable (4xx-style).
func (f BatchFailure) Permanent() bool {
	return f.Code >= 400 && f.Code < 500
}

// BatchResult is the outcome of one batch call. Results carries the server
// confirmations for the successful uuids when the server provides them.
type BatchResult struct {
	Successful []string       `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
	Results    []NoteResponse `json:"results,omitempty"`
}
