// Package queue maintains the authoritative record of note mutations that
// still need to reach the remote service.
//
// Two collections are kept: the primary queue (actively retried) and the
// retry queue (rate-limited holding area for mutations that exhausted their
// retry budget). At most one item per note uuid exists in each queue; a newer
// mutation for the same note replaces the pending one.
package queue

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/scribepad/scribe/internal/store"
)

// Action is the kind of pending mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Names of the persisted queue collections.
const (
	PrimaryQueue = "primary"
	RetryQueue   = "retry"
)

// Item is one pending mutation for a note.
type Item struct {
	NoteUUID  string    `json:"note_uuid"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`

	// Snapshot of the note at enqueue time. NoteID lets a delete be sent
	// after the note is gone from the local store.
	NoteID       int64 `json:"note_id"`
	LocalVersion int64 `json:"local_version"`
	SyncVersion  int64 `json:"sync_version"`

	RetryCount   int        `json:"retry_count"`
	LastRetryAt  *time.Time `json:"last_retry_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Failure is a per-item sync failure reported by the batch executor.
// Permanent failures skip the retry budget and park immediately.
type Failure struct {
	NoteUUID  string
	Message   string
	Permanent bool
}

// Config holds tuning for the queue manager.
type Config struct {
	// MaxRetryCount is how many consecutive failures a primary-queue item
	// absorbs before being parked in the retry queue.
	MaxRetryCount int

	// RetryCooldown is how long a parked item waits before it becomes
	// eligible to re-enter the primary queue.
	RetryCooldown time.Duration

	// Logger for queue activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetryCount: 3,
		RetryCooldown: 5 * time.Minute,
		Logger:        log.New(os.Stderr, "[queue] ", log.LstdFlags),
	}
}

// Manager owns both queues. All read-modify-write cycles are serialized
// through one mutex so concurrent enqueues and batch results cannot lose
// updates.
type Manager struct {
	store   store.Store
	persist Persistence
	config  *Config

	mu      sync.Mutex
	primary []Item
	retry   []Item

	now func() time.Time // injectable clock for tests
}

// NewManager creates a queue manager and loads both persisted collections.
// Corrupt or absent snapshots start empty; pending work otherwise survives
// restarts.
func NewManager(st store.Store, persist Persistence, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}

	m := &Manager{
		store:   st,
		persist: persist,
		config:  config,
		now:     time.Now,
	}

	var err error
	if m.primary, err = persist.Load(PrimaryQueue); err != nil {
		config.Logger.Printf("WARNING: failed to load primary queue: %v", err)
		m.primary = nil
	}
	if m.retry, err = persist.Load(RetryQueue); err != nil {
		config.Logger.Printf("WARNING: failed to load retry queue: %v", err)
		m.retry = nil
	}

	return m
}

// Enqueue records a pending mutation for the note, after a precheck against
// the local store:
//
//   - delete of a note that is absent or never synced (id == 0) is not queued;
//     any stale entries for the uuid are purged from both queues instead.
//   - create/update of a note absent from the store is not queued.
//
// A permitted mutation replaces any existing primary-queue entry for the same
// uuid (latest action wins) with a fresh retry budget. The returned bool says
// whether the item was queued.
func (m *Manager) Enqueue(noteUUID string, action Action) (bool, error) {
	n, err := m.store.GetNote(noteUUID)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if action == ActionDelete && (n == nil || n.ID == 0) {
		// No remote counterpart exists, so nothing to delete remotely.
		// Drop any pending work for this note as moot.
		removedPrimary := m.removeLocked(&m.primary, noteUUID)
		removedRetry := m.removeLocked(&m.retry, noteUUID)
		if removedPrimary {
			m.persistLocked(PrimaryQueue, m.primary)
		}
		if removedRetry {
			m.persistLocked(RetryQueue, m.retry)
		}
		m.config.Logger.Printf("delete of never-synced note %s not queued", noteUUID)
		return false, nil
	}

	if n == nil {
		m.config.Logger.Printf("%s of absent note %s not queued", action, noteUUID)
		return false, nil
	}

	// Latest action wins across both queues: a parked copy of an older
	// mutation must not outlive the mutation that superseded it.
	m.removeLocked(&m.primary, noteUUID)
	if m.removeLocked(&m.retry, noteUUID) {
		m.persistLocked(RetryQueue, m.retry)
	}
	m.primary = append(m.primary, Item{
		NoteUUID:     noteUUID,
		Action:       action,
		Timestamp:    m.now(),
		NoteID:       n.ID,
		LocalVersion: n.LocalVersion,
		SyncVersion:  n.SyncVersion,
	})
	m.persistLocked(PrimaryQueue, m.primary)

	return true, nil
}

// ProcessRetryQueue moves parked items whose cooldown has elapsed back into
// the primary queue with a fresh retry budget. This is the only path by which
// retry-queue items re-enter active syncing; it runs before every scheduled
// sync pass. Returns the number of items revived.
func (m *Manager) ProcessRetryQueue() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviveLocked(func(it Item) bool {
		return it.LastRetryAt != nil && m.now().Sub(*it.LastRetryAt) >= m.config.RetryCooldown
	})
}

// RetryNow forces every parked item back into the primary queue regardless of
// cooldown. Backs the user-facing "retry failed items" action.
func (m *Manager) RetryNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviveLocked(func(Item) bool { return true })
}

// reviveLocked moves retry-queue items matching eligible back to the primary
// queue, resetting their failure state. A parked item whose note already has
// a primary-queue entry was superseded by a newer mutation and is dropped,
// never revived over it.
func (m *Manager) reviveLocked(eligible func(Item) bool) int {
	var kept []Item
	moved, dropped := 0, 0

	for _, it := range m.retry {
		if !eligible(it) {
			kept = append(kept, it)
			continue
		}

		if m.indexLocked(m.primary, it.NoteUUID) >= 0 {
			m.config.Logger.Printf("dropping superseded parked %s for note %s", it.Action, it.NoteUUID)
			dropped++
			continue
		}

		it.RetryCount = 0
		it.LastRetryAt = nil
		it.ErrorMessage = ""

		m.primary = append(m.primary, it)
		moved++
	}

	if moved > 0 || dropped > 0 {
		m.retry = kept
		m.persistLocked(RetryQueue, m.retry)
	}
	if moved > 0 {
		m.persistLocked(PrimaryQueue, m.primary)
		m.config.Logger.Printf("moved %d items from retry queue back to primary", moved)
	}

	return moved
}

// ClearErrors discards every parked item. Backs the user-facing "clear
// errors" action; the abandoned mutations are logged. Returns the number of
// items dropped.
func (m *Manager) ClearErrors() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := len(m.retry)
	if dropped == 0 {
		return 0
	}

	for _, it := range m.retry {
		m.config.Logger.Printf("dropping parked %s for note %s: %s", it.Action, it.NoteUUID, it.ErrorMessage)
	}

	m.retry = nil
	m.persistLocked(RetryQueue, m.retry)
	return dropped
}

// HandleFailedSync increments the retry count of the matching primary-queue
// item. When the count reaches the configured maximum the item is parked in
// the retry queue and false is returned; true means the item stays retryable.
func (m *Manager) HandleFailedSync(noteUUID, errorMessage string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failLocked(noteUUID, errorMessage, false)
}

// HandleRejected parks the matching primary-queue item immediately, without
// consuming the retry budget. Used for permanent (non-retryable) remote
// rejections. Always returns false.
func (m *Manager) HandleRejected(noteUUID, errorMessage string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failLocked(noteUUID, errorMessage, true)
}

func (m *Manager) failLocked(noteUUID, errorMessage string, permanent bool) bool {
	idx := m.indexLocked(m.primary, noteUUID)
	if idx < 0 {
		m.config.Logger.Printf("failure reported for %s but no primary-queue entry exists", noteUUID)
		return true
	}

	it := m.primary[idx]
	it.RetryCount++

	if permanent || it.RetryCount >= m.config.MaxRetryCount {
		now := m.now()
		it.LastRetryAt = &now
		it.ErrorMessage = errorMessage

		m.primary = append(m.primary[:idx], m.primary[idx+1:]...)
		m.removeLocked(&m.retry, noteUUID)
		m.retry = append(m.retry, it)

		m.persistLocked(PrimaryQueue, m.primary)
		m.persistLocked(RetryQueue, m.retry)
		m.config.Logger.Printf("parked %s for note %s after %d attempts: %s", it.Action, noteUUID, it.RetryCount, errorMessage)
		return false
	}

	m.primary[idx] = it
	m.persistLocked(PrimaryQueue, m.primary)
	return true
}

// HandleBatchSyncResult applies one batch outcome to queue state: successful
// uuids are removed from the primary queue in one pass, failures are fed
// through the retry escalation. Each uuid's update is independent and
// idempotent, so a pass interrupted midway cannot corrupt the queue.
func (m *Manager) HandleBatchSyncResult(successful []string, failed []Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := false
	for _, uuid := range successful {
		if m.removeLocked(&m.primary, uuid) {
			removed = true
		}
	}
	if removed {
		m.persistLocked(PrimaryQueue, m.primary)
	}

	for _, f := range failed {
		if f.Permanent {
			m.failLocked(f.NoteUUID, f.Message, true)
		} else {
			m.failLocked(f.NoteUUID, f.Message, false)
		}
	}
}

// IsQueued reports whether the note has a pending primary-queue entry.
func (m *Manager) IsQueued(noteUUID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexLocked(m.primary, noteUUID) >= 0
}

// PrimaryItems returns a copy of the primary queue.
func (m *Manager) PrimaryItems() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.primary...)
}

// RetryItems returns a copy of the retry queue.
func (m *Manager) RetryItems() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.retry...)
}

// Counts returns the primary and retry queue lengths.
func (m *Manager) Counts() (primary, retry int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.primary), len(m.retry)
}

// SetClock replaces the manager's clock. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manager) indexLocked(items []Item, noteUUID string) int {
	for i, it := range items {
		if it.NoteUUID == noteUUID {
			return i
		}
	}
	return -1
}

func (m *Manager) removeLocked(items *[]Item, noteUUID string) bool {
	idx := m.indexLocked(*items, noteUUID)
	if idx < 0 {
		return false
	}
	*items = append((*items)[:idx], (*items)[idx+1:]...)
	return true
}

// persistLocked writes a snapshot; persistence failures are logged, never
// propagated, so queue state transitions always complete in memory.
func (m *Manager) persistLocked(name string, items []Item) {
	if err := m.persist.Save(name, items); err != nil {
		m.config.Logger.Printf("WARNING: failed to persist %s queue: %v", name, err)
	}
}
