package sync

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scribepad/scribe/internal/auth"
	"github.com/scribepad/scribe/internal/note"
	"github.com/scribepad/scribe/internal/queue"
	"github.com/scribepad/scribe/internal/remote"
	"github.com/scribepad/scribe/internal/store"
)

// Config holds engine tuning.
type Config struct {
	// SyncInterval is how often the scheduler drains the queue.
	SyncInterval time.Duration

	// ReconnectMinBackoff and ReconnectMaxBackoff bound the push channel's
	// reconnect delay.
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:        30 * time.Second,
		ReconnectMinBackoff: time.Second,
		ReconnectMaxBackoff: 30 * time.Second,
		Logger:              log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Status is the engine snapshot the UI derives its sync indicator from.
type Status struct {
	Pending       int
	Parked        int
	Syncing       bool
	Connected     bool
	Authenticated bool
	Online        bool
	LastSyncAt    time.Time
}

// Engine owns the sync subsystem: local store, queue manager, batch executor,
// scheduler, and push listener. It is constructed once at application start
// and passed by reference to consumers; there is no ambient global state.
type Engine struct {
	store  store.Store
	queue  *queue.Manager
	client *remote.Client
	tokens auth.TokenProvider
	logger *log.Logger

	executor  *Executor
	merger    *merger
	scheduler *Scheduler
	listener  *Listener

	online atomic.Bool

	mu         sync.Mutex
	lastSyncAt time.Time
}

// NewEngine wires an engine from its collaborators. wsURL is the push
// channel endpoint; when empty, no listener is created and push merging is
// disabled.
func NewEngine(st store.Store, q *queue.Manager, client *remote.Client, tokens auth.TokenProvider, wsURL string, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	e := &Engine{
		store:  st,
		queue:  q,
		client: client,
		tokens: tokens,
		logger: config.Logger,
	}

	e.executor = NewExecutor(st, q, client, config.Logger)
	e.merger = newMerger(st, q, config.Logger)
	e.scheduler = NewScheduler(
		config.SyncInterval,
		tokens.IsAuthenticated,
		e.Online,
		e.syncPass,
		config.Logger,
	)
	if wsURL != "" {
		e.listener = NewListener(wsURL, tokens, e.merger,
			config.ReconnectMinBackoff, config.ReconnectMaxBackoff, config.Logger)
	}

	// Assume connectivity until told otherwise; the health probe and batch
	// failures correct an optimistic default quickly.
	e.online.Store(true)

	return e
}

// Online reports the last known connectivity state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// SetOnline records a connectivity transition. Going online starts the
// scheduler (when authenticated); going offline stops it. The queues are
// never cleared, pending work waits for the next start.
func (e *Engine) SetOnline(online bool) {
	prev := e.online.Swap(online)
	if prev == online {
		return
	}

	if online {
		e.logger.Printf("network restored")
		if e.tokens.IsAuthenticated() {
			e.scheduler.Start()
		}
		return
	}

	e.logger.Printf("network lost")
	e.scheduler.Stop()
}

// SetSyncInterval applies a new scheduler interval. A running timer restarts
// so the change takes effect without waiting for the old tick.
func (e *Engine) SetSyncInterval(interval time.Duration) {
	e.logger.Printf("sync interval now %v", interval)
	e.scheduler.SetInterval(interval)
}

// HandleLogin starts the sync machinery after successful authentication:
// the scheduler begins draining and the push channel connects.
func (e *Engine) HandleLogin() {
	e.logger.Printf("session started")
	e.scheduler.Start()
	if e.listener != nil {
		e.listener.Start()
	}
}

// HandleLogout stops the scheduler and disconnects the push channel
// immediately. An in-flight pass is not cancelled; queued work is preserved
// for the next session.
func (e *Engine) HandleLogout() {
	e.logger.Printf("session ended")
	e.scheduler.Stop()
	if e.listener != nil {
		e.listener.Stop()
	}
}

// syncPass is one scheduled drain: revive cooled-down retry items, then run
// the batch executor.
func (e *Engine) syncPass(ctx context.Context) {
	e.queue.ProcessRetryQueue()
	e.executor.SyncAllQueuedItems(ctx)

	e.mu.Lock()
	e.lastSyncAt = time.Now()
	e.mu.Unlock()
}

// SyncNow runs one gated pass immediately. No-op while unauthenticated,
// offline, or already syncing.
func (e *Engine) SyncNow(ctx context.Context) {
	e.scheduler.PerformScheduledSync(ctx)
}

// ForceFullSync fetches the complete remote list, reconciles it against the
// local store, and then drains the queue. Used at initial load and for the
// manual refresh action.
func (e *Engine) ForceFullSync(ctx context.Context) error {
	remotes, err := e.client.GetAll(ctx)
	if err != nil {
		return err
	}

	if err := e.merger.MergeRemote(remotes); err != nil {
		return err
	}

	e.SyncNow(ctx)
	return nil
}

// CheckHealth probes the remote service and records the result as the
// connectivity state.
func (e *Engine) CheckHealth(ctx context.Context) bool {
	err := e.client.GetHealth(ctx)
	e.SetOnline(err == nil)
	return err == nil
}

// CreateNote writes a new note locally and queues its remote creation.
// The write always succeeds locally regardless of connectivity.
func (e *Engine) CreateNote(title, body string) (*note.Note, error) {
	userID, err := e.tokens.UserID()
	if err != nil {
		userID = 0 // offline-created notes adopt the session user on sync
	}

	n := note.New(userID, title, body)
	if err := e.store.SaveNote(n); err != nil {
		return nil, err
	}

	if _, err := e.queue.Enqueue(n.UUID, queue.ActionCreate); err != nil {
		e.logger.Printf("WARNING: failed to queue create for %s: %v", n.UUID, err)
	}

	return n, nil
}

// UpdateNote bumps the note's local version, persists it, and queues the
// remote update (or create, when the note has never synced).
func (e *Engine) UpdateNote(n *note.Note) error {
	n.Touch(time.Now())
	if err := e.store.SaveNote(n); err != nil {
		return err
	}

	action := queue.ActionUpdate
	if n.ID == 0 {
		action = queue.ActionCreate
	}
	if _, err := e.queue.Enqueue(n.UUID, action); err != nil {
		e.logger.Printf("WARNING: failed to queue %s for %s: %v", action, n.UUID, err)
	}

	return nil
}

// DeleteNote removes the note locally and, when a remote counterpart exists,
// queues its remote deletion. The enqueue runs first so the precheck still
// sees the note and can snapshot its server id.
func (e *Engine) DeleteNote(uuid string) error {
	if _, err := e.queue.Enqueue(uuid, queue.ActionDelete); err != nil {
		e.logger.Printf("WARNING: failed to queue delete for %s: %v", uuid, err)
	}

	return e.store.DeleteNote(uuid)
}

// RetryFailed forces parked items back into the primary queue and runs a
// pass. Backs the manual "retry" action.
func (e *Engine) RetryFailed(ctx context.Context) int {
	moved := e.queue.RetryNow()
	if moved > 0 {
		e.SyncNow(ctx)
	}
	return moved
}

// ClearErrors discards parked items. Backs the manual "clear errors" action.
func (e *Engine) ClearErrors() int {
	return e.queue.ClearErrors()
}

// Status returns the snapshot the UI renders its indicator from.
func (e *Engine) Status() Status {
	pending, parked := e.queue.Counts()

	e.mu.Lock()
	last := e.lastSyncAt
	e.mu.Unlock()

	connected := false
	if e.listener != nil {
		connected = e.listener.Connected()
	}

	return Status{
		Pending:       pending,
		Parked:        parked,
		Syncing:       e.scheduler.Syncing(),
		Connected:     connected,
		Authenticated: e.tokens.IsAuthenticated(),
		Online:        e.Online(),
		LastSyncAt:    last,
	}
}

// Close releases the engine's background resources.
func (e *Engine) Close() {
	e.scheduler.Stop()
	if e.listener != nil {
		e.listener.Stop()
	}
}
