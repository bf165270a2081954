// Package sqlite provides the durable local note store backed by embedded
// SQLite.
//
// The database runs in embedded mode (ncruces/go-sqlite3) with WAL enabled so
// the scheduler pass, the push listener, and direct UI mutations can read
// concurrently while one of them writes. Writes are whole-note upserts keyed
// by uuid; the reconciliation layer picks the winning copy before it gets here.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/scribepad/scribe/internal/note"
)

// Store wraps the SQLite connection implementing store.Store.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created along with the schema.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// initSchema creates the notes table and indexes. Idempotent.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		uuid TEXT PRIMARY KEY,
		id INTEGER NOT NULL DEFAULT 0,
		user_id INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		pos_x REAL NOT NULL DEFAULT 0,
		pos_y REAL NOT NULL DEFAULT 0,
		tasks TEXT,  -- JSON array
		tags TEXT,   -- JSON array
		pinned INTEGER NOT NULL DEFAULT 0,
		hidden INTEGER NOT NULL DEFAULT 0,
		local_version INTEGER NOT NULL DEFAULT 1,
		sync_version INTEGER NOT NULL DEFAULT 1,
		last_synced_at TEXT,
		client_updated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
	CREATE INDEX IF NOT EXISTS idx_notes_server_id ON notes(id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveNote upserts a note keyed by uuid. Last writer wins for the whole row.
func (s *Store) SaveNote(n *note.Note) error {
	return s.SaveNoteContext(context.Background(), n)
}

// SaveNoteContext upserts a note with context support.
func (s *Store) SaveNoteContext(ctx context.Context, n *note.Note) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	tasksJSON, err := json.Marshal(n.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}
	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO notes (
		uuid, id, user_id, title, body, color, pos_x, pos_y,
		tasks, tags, pinned, hidden, local_version, sync_version,
		last_synced_at, client_updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uuid) DO UPDATE SET
		id = excluded.id,
		user_id = excluded.user_id,
		title = excluded.title,
		body = excluded.body,
		color = excluded.color,
		pos_x = excluded.pos_x,
		pos_y = excluded.pos_y,
		tasks = excluded.tasks,
		tags = excluded.tags,
		pinned = excluded.pinned,
		hidden = excluded.hidden,
		local_version = excluded.local_version,
		sync_version = excluded.sync_version,
		last_synced_at = excluded.last_synced_at,
		client_updated_at = excluded.client_updated_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		n.UUID,
		n.ID,
		n.UserID,
		n.Title,
		n.Body,
		n.Color,
		n.PosX,
		n.PosY,
		string(tasksJSON),
		string(tagsJSON),
		boolToInt(n.Pinned),
		boolToInt(n.Hidden),
		n.LocalVersion,
		n.SyncVersion,
		timeToNullString(n.LastSyncedAt),
		timeToNullString(n.ClientUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note %s: %w", n.UUID, err)
	}

	return nil
}

// GetNote retrieves a note by uuid. Returns nil, nil when absent.
func (s *Store) GetNote(uuid string) (*note.Note, error) {
	return s.GetNoteContext(context.Background(), uuid)
}

// GetNoteContext retrieves a note by uuid with context support.
func (s *Store) GetNoteContext(ctx context.Context, uuid string) (*note.Note, error) {
	row := s.conn.QueryRowContext(ctx, selectColumns+" FROM notes WHERE uuid = ?", uuid)

	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note %s: %w", uuid, err)
	}
	return n, nil
}

// DeleteNote removes a note. Returns nil if the note doesn't exist (idempotent).
func (s *Store) DeleteNote(uuid string) error {
	return s.DeleteNoteContext(context.Background(), uuid)
}

// DeleteNoteContext removes a note with context support.
func (s *Store) DeleteNoteContext(ctx context.Context, uuid string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM notes WHERE uuid = ?", uuid); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", uuid, err)
	}
	return nil
}

// GetAllNotes returns every stored note.
func (s *Store) GetAllNotes() ([]*note.Note, error) {
	return s.GetAllNotesContext(context.Background())
}

// GetAllNotesContext returns every stored note with context support.
func (s *Store) GetAllNotesContext(ctx context.Context) ([]*note.Note, error) {
	rows, err := s.conn.QueryContext(ctx, selectColumns+" FROM notes ORDER BY uuid")
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// NoteCount returns the total number of stored notes.
func (s *Store) NoteCount() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

const selectColumns = `SELECT uuid, id, user_id, title, body, color, pos_x, pos_y,
	tasks, tags, pinned, hidden, local_version, sync_version,
	last_synced_at, client_updated_at`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanNote reads one note row. Malformed tasks/tags JSON degrades to empty
// slices rather than failing the read.
func scanNote(row scanner) (*note.Note, error) {
	var n note.Note
	var tasksJSON, tagsJSON sql.NullString
	var pinned, hidden int
	var lastSyncedAt, clientUpdatedAt sql.NullString

	err := row.Scan(
		&n.UUID,
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Body,
		&n.Color,
		&n.PosX,
		&n.PosY,
		&tasksJSON,
		&tagsJSON,
		&pinned,
		&hidden,
		&n.LocalVersion,
		&n.SyncVersion,
		&lastSyncedAt,
		&clientUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Pinned = pinned != 0
	n.Hidden = hidden != 0

	if tasksJSON.Valid && tasksJSON.String != "" && tasksJSON.String != "null" {
		if err := json.Unmarshal([]byte(tasksJSON.String), &n.Tasks); err != nil {
			n.Tasks = nil
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &n.Tags); err != nil {
			n.Tags = nil
		}
	}

	n.LastSyncedAt = nullStringToTime(lastSyncedAt)
	n.ClientUpdatedAt = nullStringToTime(clientUpdatedAt)

	return &n, nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
