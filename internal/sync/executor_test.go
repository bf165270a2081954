package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scribepad/scribe/internal/auth"
	"github.com/scribepad/scribe/internal/note"
	"github.com/scribepad/scribe/internal/queue"
	"github.com/scribepad/scribe/internal/remote"
	"github.com/scribepad/scribe/internal/store"
)

// batchServer is a minimal remote API that accepts every batch call, assigns
// ids to creates, and records the order the batch endpoints were hit.
type batchServer struct {
	mu     sync.Mutex
	nextID int64
	calls  []string

	failCreates int // status code to reject /batch/create with; 0 accepts

	remoteNotes []remote.RemoteNote // served by GET /api/notes
}

func (s *batchServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notes", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		notes := append([]remote.RemoteNote(nil), s.remoteNotes...)
		s.mu.Unlock()
		json.NewEncoder(w).Encode(notes)
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/notes/batch/create", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, "create")
		fail := s.failCreates
		s.mu.Unlock()

		if fail != 0 {
			http.Error(w, "rejected", fail)
			return
		}

		var reqs []remote.NoteCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result remote.BatchResult
		for _, req := range reqs {
			s.mu.Lock()
			s.nextID++
			id := s.nextID
			s.mu.Unlock()
			result.Successful = append(result.Successful, req.UUID)
			result.Results = append(result.Results, remote.NoteResponse{
				ID: id, UUID: req.UUID, SyncVersion: 1, UpdatedAt: time.Now(),
			})
		}
		json.NewEncoder(w).Encode(result)
	})
	mux.HandleFunc("/api/notes/batch/update", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, "update")
		s.mu.Unlock()

		var reqs []remote.NoteUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result remote.BatchResult
		for _, req := range reqs {
			result.Successful = append(result.Successful, req.UUID)
			result.Results = append(result.Results, remote.NoteResponse{
				ID: req.ID, UUID: req.UUID, SyncVersion: req.SyncVersion + 1, UpdatedAt: time.Now(),
			})
		}
		json.NewEncoder(w).Encode(result)
	})
	mux.HandleFunc("/api/notes/batch/delete", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, "delete")
		s.mu.Unlock()

		var reqs []remote.NoteDeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result remote.BatchResult
		for _, req := range reqs {
			result.Successful = append(result.Successful, req.UUID)
		}
		json.NewEncoder(w).Encode(result)
	})
	return mux
}

func newTestExecutor(t *testing.T, srv *batchServer) (*Executor, *store.Memory, *queue.Manager) {
	t.Helper()

	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	st := store.NewMemory()
	q := queue.NewManager(st, queue.NewMemoryStore(), queue.DefaultConfig())
	client := remote.NewClient(ts.URL, auth.NewTokenHolder("session-token"), testLogger())
	return NewExecutor(st, q, client, testLogger()), st, q
}

// TestSyncAllQueuedItems_CreateConfirmed covers the offline-create round trip:
// queued create ships, server id and sync version land in the store, queue
// drains.
func TestSyncAllQueuedItems_CreateConfirmed(t *testing.T) {
	srv := &batchServer{}
	ex, st, q := newTestExecutor(t, srv)

	n := note.New(1, "offline note", "body")
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(n.UUID, queue.ActionCreate); err != nil {
		t.Fatal(err)
	}

	stats := ex.SyncAllQueuedItems(context.Background())

	if stats.Created != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 1 created", stats)
	}

	got, _ := st.GetNote(n.UUID)
	if got.ID == 0 {
		t.Error("server id not written back")
	}
	if got.Dirty() {
		t.Errorf("note still dirty after confirmation: local=%d sync=%d",
			got.LocalVersion, got.SyncVersion)
	}
	if got.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set")
	}

	if primary, retry := q.Counts(); primary != 0 || retry != 0 {
		t.Errorf("queues not drained: primary=%d retry=%d", primary, retry)
	}
}

// TestSyncAllQueuedItems_PhaseOrder verifies creates ship before updates and
// updates before deletes within one pass.
func TestSyncAllQueuedItems_PhaseOrder(t *testing.T) {
	srv := &batchServer{}
	ex, st, q := newTestExecutor(t, srv)

	created := note.New(1, "new", "")
	updated := note.New(1, "changed", "")
	updated.ID = 5
	updated.Touch(time.Now())
	doomed := note.New(1, "gone", "")
	doomed.ID = 6
	for _, n := range []*note.Note{created, updated, doomed} {
		if err := st.SaveNote(n); err != nil {
			t.Fatal(err)
		}
	}

	// Enqueue in reverse phase order to prove the order comes from the
	// executor, not enqueue time.
	if _, err := q.Enqueue(doomed.UUID, queue.ActionDelete); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(updated.UUID, queue.ActionUpdate); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(created.UUID, queue.ActionCreate); err != nil {
		t.Fatal(err)
	}

	ex.SyncAllQueuedItems(context.Background())

	want := []string{"create", "update", "delete"}
	srv.mu.Lock()
	calls := append([]string(nil), srv.calls...)
	srv.mu.Unlock()
	if len(calls) != len(want) {
		t.Fatalf("batch calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("batch calls = %v, want %v", calls, want)
		}
	}
}

// TestSyncAllQueuedItems_DeleteRemovesLocal verifies a confirmed remote
// delete drops the note locally and the pass works from the queued server id
// even when the note was already removed from the store.
func TestSyncAllQueuedItems_DeleteRemovesLocal(t *testing.T) {
	srv := &batchServer{}
	ex, st, q := newTestExecutor(t, srv)

	n := note.New(1, "doomed", "")
	n.ID = 7
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(n.UUID, queue.ActionDelete); err != nil {
		t.Fatal(err)
	}
	// Local removal happens before the pass; the queue keeps the server id.
	if err := st.DeleteNote(n.UUID); err != nil {
		t.Fatal(err)
	}

	stats := ex.SyncAllQueuedItems(context.Background())

	if stats.Deleted != 1 {
		t.Fatalf("stats = %+v, want 1 deleted", stats)
	}
	if primary, _ := q.Counts(); primary != 0 {
		t.Error("delete entry not cleared after confirmation")
	}
}

// TestSyncAllQueuedItems_NetworkFailureRetries verifies a transport-level
// failure keeps items queued with an incremented retry count.
func TestSyncAllQueuedItems_NetworkFailureRetries(t *testing.T) {
	st := store.NewMemory()
	q := queue.NewManager(st, queue.NewMemoryStore(), queue.DefaultConfig())
	// Port from a closed test server: connections are refused.
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	client := remote.NewClient(url, auth.NewTokenHolder("session-token"), testLogger())
	ex := NewExecutor(st, q, client, testLogger())

	n := note.New(1, "stuck", "")
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(n.UUID, queue.ActionCreate); err != nil {
		t.Fatal(err)
	}

	stats := ex.SyncAllQueuedItems(context.Background())

	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 1 failed", stats)
	}

	items := q.PrimaryItems()
	if len(items) != 1 {
		t.Fatalf("item dropped after network failure: %+v", items)
	}
	if items[0].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", items[0].RetryCount)
	}
	if items[0].ErrorMessage == "" {
		t.Error("failure message not recorded")
	}
}

// TestSyncAllQueuedItems_FailureSkipsVanished verifies a batch-level failure
// is reported only for items actually sent: entries already dropped as
// vanished must not be fed back into the queue as failures.
func TestSyncAllQueuedItems_FailureSkipsVanished(t *testing.T) {
	st := store.NewMemory()

	var qlog bytes.Buffer
	qcfg := queue.DefaultConfig()
	qcfg.Logger = log.New(&qlog, "[queue] ", log.LstdFlags)
	q := queue.NewManager(st, queue.NewMemoryStore(), qcfg)

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	client := remote.NewClient(url, auth.NewTokenHolder("session-token"), testLogger())
	ex := NewExecutor(st, q, client, testLogger())

	live := note.New(1, "still here", "")
	gone := note.New(1, "fleeting", "")
	for _, n := range []*note.Note{live, gone} {
		if err := st.SaveNote(n); err != nil {
			t.Fatal(err)
		}
		if _, err := q.Enqueue(n.UUID, queue.ActionCreate); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.DeleteNote(gone.UUID); err != nil {
		t.Fatal(err)
	}

	stats := ex.SyncAllQueuedItems(context.Background())

	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 1 failed", stats)
	}

	items := q.PrimaryItems()
	if len(items) != 1 || items[0].NoteUUID != live.UUID || items[0].RetryCount != 1 {
		t.Fatalf("primary queue = %+v, want only the live item with RetryCount 1", items)
	}

	if strings.Contains(qlog.String(), "no primary-queue entry exists") {
		t.Errorf("failure reported for an already-dropped item:\n%s", qlog.String())
	}
}

// TestSyncAllQueuedItems_PermanentRejectionParks verifies a 4xx batch
// response parks the items in the retry queue instead of burning retries.
func TestSyncAllQueuedItems_PermanentRejectionParks(t *testing.T) {
	srv := &batchServer{failCreates: http.StatusUnprocessableEntity}
	ex, st, q := newTestExecutor(t, srv)

	n := note.New(1, "rejected", "")
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(n.UUID, queue.ActionCreate); err != nil {
		t.Fatal(err)
	}

	ex.SyncAllQueuedItems(context.Background())

	primary, retry := q.Counts()
	if primary != 0 || retry != 1 {
		t.Fatalf("primary=%d retry=%d, want item parked in retry queue", primary, retry)
	}
}

// TestSyncAllQueuedItems_VanishedNoteDropped verifies a queued create whose
// note was deleted locally is dropped without a remote call.
func TestSyncAllQueuedItems_VanishedNoteDropped(t *testing.T) {
	srv := &batchServer{}
	ex, st, q := newTestExecutor(t, srv)

	n := note.New(1, "fleeting", "")
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(n.UUID, queue.ActionCreate); err != nil {
		t.Fatal(err)
	}

	// Bypass the engine's delete path so the queue entry survives while the
	// note itself is gone.
	if err := st.DeleteNote(n.UUID); err != nil {
		t.Fatal(err)
	}

	stats := ex.SyncAllQueuedItems(context.Background())

	if stats.Created != 0 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want all zero", stats)
	}
	if primary, _ := q.Counts(); primary != 0 {
		t.Error("vanished note's entry not dropped")
	}

	srv.mu.Lock()
	calls := len(srv.calls)
	srv.mu.Unlock()
	if calls != 0 {
		t.Errorf("remote called %d times for an empty batch", calls)
	}
}
