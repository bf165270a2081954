package sync

import (
	"log"

	"github.com/scribepad/scribe/internal/queue"
	"github.com/scribepad/scribe/internal/remote"
	"github.com/scribepad/scribe/internal/store"
)

// merger is the per-note winner-selection algorithm shared by the full reload
// and the push listener. A local edit the remote has not seen yet
// (localVersion ahead of the remote's syncVersion) always overrides the
// server copy; otherwise the remote copy wins outright.
type merger struct {
	store  store.Store
	queue  *queue.Manager
	logger *log.Logger
}

func newMerger(st store.Store, q *queue.Manager, logger *log.Logger) *merger {
	return &merger{store: st, queue: q, logger: logger}
}

// MergeRemote reconciles the full remote list against the local store:
//
//   - present both sides: local wins when its localVersion is ahead of the
//     remote syncVersion (and gets re-queued if not already pending);
//     otherwise the remote copy overwrites the local entry.
//   - remote only: adopted verbatim, nothing local to conflict with.
//   - local only: kept, and queued for create (id == 0) or update.
func (m *merger) MergeRemote(remotes []remote.RemoteNote) error {
	locals, err := m.store.GetAllNotes()
	if err != nil {
		return err
	}

	localSeen := make(map[string]bool, len(locals))

	remoteByUUID := make(map[string]remote.RemoteNote, len(remotes))
	for _, rn := range remotes {
		remoteByUUID[rn.UUID] = rn
	}

	for _, local := range locals {
		localSeen[local.UUID] = true

		rn, ok := remoteByUUID[local.UUID]
		if !ok {
			m.ensureQueued(local.UUID)
			continue
		}

		if local.LocalVersion > rn.SyncVersion {
			m.logger.Printf("merge: local %s ahead (v%d > remote v%d), keeping local copy",
				local.UUID, local.LocalVersion, rn.SyncVersion)
			m.ensureQueued(local.UUID)
			continue
		}

		if err := m.store.SaveNote(rn.ToNote()); err != nil {
			m.logger.Printf("WARNING: merge failed to adopt remote note %s: %v", rn.UUID, err)
		}
	}

	for _, rn := range remotes {
		if localSeen[rn.UUID] {
			continue
		}
		if err := m.store.SaveNote(rn.ToNote()); err != nil {
			m.logger.Printf("WARNING: merge failed to adopt remote note %s: %v", rn.UUID, err)
		}
	}

	return nil
}

// applyUpserts merges pushed create/update events using the same winner rule
// as MergeRemote.
func (m *merger) applyUpserts(notes []remote.RemoteNote) {
	for _, rn := range notes {
		local, err := m.store.GetNote(rn.UUID)
		if err != nil {
			m.logger.Printf("WARNING: push merge lookup failed for %s: %v", rn.UUID, err)
			continue
		}

		if local != nil && local.LocalVersion > rn.SyncVersion {
			m.logger.Printf("push: local %s ahead (v%d > remote v%d), keeping local copy",
				rn.UUID, local.LocalVersion, rn.SyncVersion)
			m.ensureQueued(rn.UUID)
			continue
		}

		if err := m.store.SaveNote(rn.ToNote()); err != nil {
			m.logger.Printf("WARNING: push merge failed to save %s: %v", rn.UUID, err)
		}
	}
}

// applyDeletes handles pushed delete events. The local copy is removed only
// when it carries no unconfirmed edits; a dirty note is preserved and will
// reassert itself on the next sync pass.
func (m *merger) applyDeletes(notes []remote.RemoteNote) {
	for _, rn := range notes {
		local, err := m.store.GetNote(rn.UUID)
		if err != nil {
			m.logger.Printf("WARNING: push delete lookup failed for %s: %v", rn.UUID, err)
			continue
		}
		if local == nil {
			continue
		}

		if local.Dirty() {
			m.logger.Printf("push: ignoring remote delete of %s, local edits pending", rn.UUID)
			continue
		}

		if err := m.store.DeleteNote(rn.UUID); err != nil {
			m.logger.Printf("WARNING: push delete failed for %s: %v", rn.UUID, err)
		}
	}
}

// ensureQueued queues a note that has local-only state, unless a primary
// queue entry already exists. The action is create for never-synced notes,
// update otherwise; the enqueue precheck settles the rest.
func (m *merger) ensureQueued(uuid string) {
	if m.queue.IsQueued(uuid) {
		return
	}

	n, err := m.store.GetNote(uuid)
	if err != nil || n == nil {
		return
	}

	action := queue.ActionUpdate
	if n.ID == 0 {
		action = queue.ActionCreate
	}

	if _, err := m.queue.Enqueue(uuid, action); err != nil {
		m.logger.Printf("WARNING: merge failed to queue %s for %s: %v", uuid, action, err)
	}
}
