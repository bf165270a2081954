package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/scribepad/scribe/internal/queue"
	"github.com/scribepad/scribe/internal/remote"
	"github.com/scribepad/scribe/internal/store"
)

// PassStats summarizes one batch-sync pass.
type PassStats struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// Executor turns queued mutations into remote batch calls and translates the
// results back into queue and store state.
type Executor struct {
	store  store.Store
	queue  *queue.Manager
	client *remote.Client
	logger *log.Logger

	now func() time.Time
}

// NewExecutor creates a batch sync executor.
func NewExecutor(st store.Store, q *queue.Manager, client *remote.Client, logger *log.Logger) *Executor {
	return &Executor{
		store:  st,
		queue:  q,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// SyncAllQueuedItems drains the current primary queue in three phases:
// creates, then updates, then deletes. The fixed order lets a note created in
// this pass be updated or deleted with its now-known server id. Phases are
// best-effort; a failure in one does not stop the others. Batch-level
// failures never lose data: every affected item stays queued, either retried
// or parked.
func (e *Executor) SyncAllQueuedItems(ctx context.Context) PassStats {
	items := e.queue.PrimaryItems()

	var creates, updates, deletes []queue.Item
	for _, it := range items {
		switch it.Action {
		case queue.ActionCreate:
			creates = append(creates, it)
		case queue.ActionUpdate:
			updates = append(updates, it)
		case queue.ActionDelete:
			deletes = append(deletes, it)
		}
	}

	var stats PassStats
	stats.Created, stats.Failed = e.syncCreates(ctx, creates, stats.Failed)
	stats.Updated, stats.Failed = e.syncUpdates(ctx, updates, stats.Failed)
	stats.Deleted, stats.Failed = e.syncDeletes(ctx, deletes, stats.Failed)

	if len(items) > 0 {
		e.logger.Printf("sync pass complete: created=%d updated=%d deleted=%d failed=%d",
			stats.Created, stats.Updated, stats.Deleted, stats.Failed)
	}

	return stats
}

func (e *Executor) syncCreates(ctx context.Context, items []queue.Item, failed int) (int, int) {
	if len(items) == 0 {
		return 0, failed
	}

	reqs := make([]remote.NoteCreateRequest, 0, len(items))
	sent := make([]queue.Item, 0, len(items))
	var vanished []string
	for _, it := range items {
		n, err := e.store.GetNote(it.NoteUUID)
		if err != nil {
			e.logger.Printf("WARNING: failed to load %s for create: %v", it.NoteUUID, err)
			continue
		}
		if n == nil {
			// The note was deleted locally before the create shipped;
			// nothing remote to reconcile, drop the entry.
			vanished = append(vanished, it.NoteUUID)
			continue
		}
		reqs = append(reqs, remote.CreateRequestFromNote(n))
		sent = append(sent, it)
	}

	if len(vanished) > 0 {
		e.queue.HandleBatchSyncResult(vanished, nil)
	}
	if len(reqs) == 0 {
		return 0, failed
	}

	result, err := e.client.BatchCreate(ctx, reqs)
	if err != nil {
		return 0, failed + e.failAll(sent, err)
	}

	e.applyConfirmations(sent, result)
	e.queue.HandleBatchSyncResult(result.Successful, toFailures(result.Failed))
	return len(result.Successful), failed + len(result.Failed)
}

func (e *Executor) syncUpdates(ctx context.Context, items []queue.Item, failed int) (int, int) {
	if len(items) == 0 {
		return 0, failed
	}

	reqs := make([]remote.NoteUpdateRequest, 0, len(items))
	sent := make([]queue.Item, 0, len(items))
	var vanished []string
	for _, it := range items {
		n, err := e.store.GetNote(it.NoteUUID)
		if err != nil {
			e.logger.Printf("WARNING: failed to load %s for update: %v", it.NoteUUID, err)
			continue
		}
		if n == nil {
			vanished = append(vanished, it.NoteUUID)
			continue
		}
		reqs = append(reqs, remote.UpdateRequestFromNote(n))
		sent = append(sent, it)
	}

	if len(vanished) > 0 {
		e.queue.HandleBatchSyncResult(vanished, nil)
	}
	if len(reqs) == 0 {
		return 0, failed
	}

	result, err := e.client.BatchUpdate(ctx, reqs)
	if err != nil {
		return 0, failed + e.failAll(sent, err)
	}

	e.applyConfirmations(sent, result)
	e.queue.HandleBatchSyncResult(result.Successful, toFailures(result.Failed))
	return len(result.Successful), failed + len(result.Failed)
}

func (e *Executor) syncDeletes(ctx context.Context, items []queue.Item, failed int) (int, int) {
	if len(items) == 0 {
		return 0, failed
	}

	reqs := make([]remote.NoteDeleteRequest, 0, len(items))
	for _, it := range items {
		// The server id was snapshotted at enqueue time, so the request can
		// be built even after the note left the local store.
		reqs = append(reqs, remote.NoteDeleteRequest{ID: it.NoteID, UUID: it.NoteUUID})
	}

	result, err := e.client.BatchDelete(ctx, reqs)
	if err != nil {
		return 0, failed + e.failAll(items, err)
	}

	// Only confirmed remote deletions are safe to drop locally.
	for _, uuid := range result.Successful {
		if err := e.store.DeleteNote(uuid); err != nil {
			e.logger.Printf("WARNING: failed to remove deleted note %s locally: %v", uuid, err)
		}
	}

	e.queue.HandleBatchSyncResult(result.Successful, toFailures(result.Failed))
	return len(result.Successful), failed + len(result.Failed)
}

// applyConfirmations writes server-confirmed version state back into the
// local store for every successful create/update. When the server response
// omits a per-note confirmation, the version snapshotted at enqueue time is
// treated as confirmed.
func (e *Executor) applyConfirmations(items []queue.Item, result *remote.BatchResult) {
	confirmed := make(map[string]remote.NoteResponse, len(result.Results))
	for _, r := range result.Results {
		confirmed[r.UUID] = r
	}

	snapshot := make(map[string]queue.Item, len(items))
	for _, it := range items {
		snapshot[it.NoteUUID] = it
	}

	now := e.now()
	for _, uuid := range result.Successful {
		n, err := e.store.GetNote(uuid)
		if err != nil || n == nil {
			continue
		}

		if r, ok := confirmed[uuid]; ok {
			n.ConfirmSync(r.ID, r.SyncVersion, now)
		} else if it, ok := snapshot[uuid]; ok {
			n.ConfirmSync(0, it.LocalVersion, now)
		} else {
			continue
		}

		if err := e.store.SaveNote(n); err != nil {
			e.logger.Printf("WARNING: failed to write back confirmation for %s: %v", uuid, err)
		}
	}
}

// failAll reports a batch-level failure (the whole call failed, not
// individual items) as independent per-item failures so each item keeps its
// own retry count.
func (e *Executor) failAll(items []queue.Item, err error) int {
	var apiErr *remote.APIError
	permanent := errors.As(err, &apiErr) && apiErr.Permanent()

	e.logger.Printf("batch call failed for %d items: %v", len(items), err)
	for _, it := range items {
		if permanent {
			e.queue.HandleRejected(it.NoteUUID, err.Error())
		} else {
			e.queue.HandleFailedSync(it.NoteUUID, err.Error())
		}
	}
	return len(items)
}

func toFailures(failed []remote.BatchFailure) []queue.Failure {
	out := make([]queue.Failure, 0, len(failed))
	for _, f := range failed {
		out = append(out, queue.Failure{
			NoteUUID:  f.UUID,
			Message:   f.Error,
			Permanent: f.Permanent(),
		})
	}
	return out
}
