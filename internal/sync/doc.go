// Package sync implements the offline-first synchronization engine.
//
// The engine accepts note mutations unconditionally into the local store,
// queues them for eventual delivery to the remote API, reconciles concurrent
// edits from other devices using version counters, and recovers from
// transient and permanent failures without losing or duplicating data.
//
// Moving parts:
//
//   - Executor drains the primary queue in action-grouped batches
//     (creates, then updates, then deletes) against the remote API.
//   - The reconciliation merge decides, per note, whether the local copy,
//     the remote copy, or a queued-but-unconfirmed copy wins. The same rule
//     serves the full reload and incoming push events.
//   - Scheduler triggers queue draining at a fixed interval, gated on
//     authentication, connectivity, and no pass already in flight.
//   - Listener consumes the remote push channel and feeds events into the
//     reconciliation merge, reconnecting with capped exponential backoff.
//   - Engine wires the parts together and owns their lifecycle.
//
// Failures inside the engine become state changes (queue transitions, status
// flags); they never escape as errors into callers except on the explicit
// user-initiated paths.
package sync
