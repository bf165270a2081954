package sync

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/scribepad/scribe/internal/note"
	"github.com/scribepad/scribe/internal/queue"
	"github.com/scribepad/scribe/internal/remote"
	"github.com/scribepad/scribe/internal/store"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

// newTestMerger builds a merger over fresh in-memory state.
func newTestMerger(t *testing.T) (*merger, *store.Memory, *queue.Manager) {
	t.Helper()

	st := store.NewMemory()
	q := queue.NewManager(st, queue.NewMemoryStore(), queue.DefaultConfig())
	return newMerger(st, q, testLogger()), st, q
}

// TestMergeRemote_LocalAheadWins tests the spec's precedence case: local 5/3
// against remote 4 keeps the local copy and queues an update.
func TestMergeRemote_LocalAheadWins(t *testing.T) {
	m, st, q := newTestMerger(t)

	local := note.New(1, "local edit", "")
	local.ID = 10
	local.LocalVersion = 5
	local.SyncVersion = 3
	if err := st.SaveNote(local); err != nil {
		t.Fatal(err)
	}

	err := m.MergeRemote([]remote.RemoteNote{
		{ID: 10, UUID: local.UUID, UserID: 1, Title: "server copy", SyncVersion: 4},
	})
	if err != nil {
		t.Fatalf("MergeRemote() failed: %v", err)
	}

	got, _ := st.GetNote(local.UUID)
	if got.Title != "local edit" {
		t.Errorf("local copy overwritten: %+v", got)
	}
	if got.LocalVersion != 5 {
		t.Errorf("LocalVersion = %d, want 5", got.LocalVersion)
	}

	items := q.PrimaryItems()
	if len(items) != 1 || items[0].Action != queue.ActionUpdate {
		t.Errorf("expected one queued update, got %+v", items)
	}
}

// TestMergeRemote_RemoteAheadWins tests that a clean local copy is replaced
// by a newer remote copy.
func TestMergeRemote_RemoteAheadWins(t *testing.T) {
	m, st, q := newTestMerger(t)

	local := note.New(1, "stale", "")
	local.ID = 10
	local.LocalVersion = 3
	local.SyncVersion = 3
	if err := st.SaveNote(local); err != nil {
		t.Fatal(err)
	}

	err := m.MergeRemote([]remote.RemoteNote{
		{ID: 10, UUID: local.UUID, UserID: 1, Title: "fresh", SyncVersion: 5},
	})
	if err != nil {
		t.Fatalf("MergeRemote() failed: %v", err)
	}

	got, _ := st.GetNote(local.UUID)
	if got.Title != "fresh" {
		t.Errorf("remote copy not adopted: %+v", got)
	}
	if got.LocalVersion != 5 || got.SyncVersion != 5 {
		t.Errorf("versions = %d/%d, want 5/5", got.LocalVersion, got.SyncVersion)
	}

	if primary, _ := q.Counts(); primary != 0 {
		t.Errorf("adopting remote queued %d items, want 0", primary)
	}
}

// TestMergeRemote_RemoteOnlyAdopted tests verbatim adoption of unknown
// remote notes.
func TestMergeRemote_RemoteOnlyAdopted(t *testing.T) {
	m, st, _ := newTestMerger(t)

	err := m.MergeRemote([]remote.RemoteNote{
		{ID: 20, UUID: "remote-only", UserID: 1, Title: "from server", SyncVersion: 2},
	})
	if err != nil {
		t.Fatalf("MergeRemote() failed: %v", err)
	}

	got, _ := st.GetNote("remote-only")
	if got == nil || got.Title != "from server" || got.ID != 20 {
		t.Errorf("remote-only note not adopted: %+v", got)
	}
}

// TestMergeRemote_LocalOnlyQueued tests that offline-created and
// previously-synced local notes are re-queued with the right action.
func TestMergeRemote_LocalOnlyQueued(t *testing.T) {
	m, st, q := newTestMerger(t)

	created := note.New(1, "offline note", "") // id 0
	synced := note.New(1, "known note", "")
	synced.ID = 30
	synced.Touch(time.Now())
	for _, n := range []*note.Note{created, synced} {
		if err := st.SaveNote(n); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.MergeRemote(nil); err != nil {
		t.Fatalf("MergeRemote() failed: %v", err)
	}

	actions := make(map[string]queue.Action)
	for _, it := range q.PrimaryItems() {
		actions[it.NoteUUID] = it.Action
	}

	if actions[created.UUID] != queue.ActionCreate {
		t.Errorf("offline note queued as %s, want create", actions[created.UUID])
	}
	if actions[synced.UUID] != queue.ActionUpdate {
		t.Errorf("synced note queued as %s, want update", actions[synced.UUID])
	}
}

// TestMergeRemote_AlreadyQueuedNotDuplicated tests that merge respects
// existing queue entries.
func TestMergeRemote_AlreadyQueuedNotDuplicated(t *testing.T) {
	m, st, q := newTestMerger(t)

	n := note.New(1, "pending", "")
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(n.UUID, queue.ActionCreate); err != nil {
		t.Fatal(err)
	}

	if err := m.MergeRemote(nil); err != nil {
		t.Fatalf("MergeRemote() failed: %v", err)
	}

	if primary, _ := q.Counts(); primary != 1 {
		t.Errorf("primary queue has %d entries, want 1", primary)
	}
}

// TestApplyDeletes_DirtyNotePreserved tests the delete-safety rule: a pushed
// delete never removes a note with unconfirmed local edits.
func TestApplyDeletes_DirtyNotePreserved(t *testing.T) {
	m, st, _ := newTestMerger(t)

	dirty := note.New(1, "edited", "")
	dirty.ID = 10
	dirty.Touch(time.Now()) // localVersion 2 > syncVersion 1
	if err := st.SaveNote(dirty); err != nil {
		t.Fatal(err)
	}

	m.applyDeletes([]remote.RemoteNote{{ID: 10, UUID: dirty.UUID, UserID: 1}})

	got, _ := st.GetNote(dirty.UUID)
	if got == nil {
		t.Fatal("pushed delete removed a note with pending local edits")
	}
}

// TestApplyDeletes_CleanNoteRemoved tests that a clean note honors the
// remote delete.
func TestApplyDeletes_CleanNoteRemoved(t *testing.T) {
	m, st, _ := newTestMerger(t)

	clean := note.New(1, "untouched", "")
	clean.ID = 10
	if err := st.SaveNote(clean); err != nil {
		t.Fatal(err)
	}

	m.applyDeletes([]remote.RemoteNote{{ID: 10, UUID: clean.UUID, UserID: 1}})

	got, _ := st.GetNote(clean.UUID)
	if got != nil {
		t.Error("pushed delete did not remove a clean note")
	}
}

// TestApplyUpserts_SameRuleAsLoad tests that push events use the identical
// winner rule as the full reload.
func TestApplyUpserts_SameRuleAsLoad(t *testing.T) {
	m, st, q := newTestMerger(t)

	ahead := note.New(1, "mine", "")
	ahead.ID = 10
	ahead.LocalVersion = 5
	ahead.SyncVersion = 3
	behind := note.New(1, "theirs", "")
	behind.ID = 11
	for _, n := range []*note.Note{ahead, behind} {
		if err := st.SaveNote(n); err != nil {
			t.Fatal(err)
		}
	}

	m.applyUpserts([]remote.RemoteNote{
		{ID: 10, UUID: ahead.UUID, UserID: 1, Title: "server", SyncVersion: 4},
		{ID: 11, UUID: behind.UUID, UserID: 1, Title: "server", SyncVersion: 6},
	})

	gotAhead, _ := st.GetNote(ahead.UUID)
	if gotAhead.Title != "mine" {
		t.Error("push overwrote a locally-ahead note")
	}
	if !q.IsQueued(ahead.UUID) {
		t.Error("locally-ahead note not re-queued after push")
	}

	gotBehind, _ := st.GetNote(behind.UUID)
	if gotBehind.Title != "server" || gotBehind.SyncVersion != 6 {
		t.Errorf("push did not adopt newer remote copy: %+v", gotBehind)
	}
}
