package sync

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/scribepad/scribe/internal/auth"
	"github.com/scribepad/scribe/internal/remote"
)

// EventKind identifies a push-channel event.
type EventKind string

const (
	// EventNotesCreated signals notes created by another client.
	EventNotesCreated EventKind = "notes-created"
	// EventNotesUpdated signals notes updated by another client.
	EventNotesUpdated EventKind = "notes-updated"
	// EventNotesDeleted signals notes deleted by another client.
	EventNotesDeleted EventKind = "notes-deleted"
)

// Event is one push-channel message: the acting user and the affected notes,
// each carrying the server's sync version.
type Event struct {
	Kind   EventKind           `json:"kind"`
	UserID int64               `json:"user_id"`
	Notes  []remote.RemoteNote `json:"notes"`
}

// Listener maintains the persistent duplex channel that delivers change
// events from other clients. Events are merged into the local store using the
// same version-comparison rules as the full reload. Disconnects trigger
// automatic reconnects with exponential backoff capped at maxBackoff;
// stopping the listener closes the connection immediately.
type Listener struct {
	url    string
	tokens auth.TokenProvider
	merger *merger
	logger *log.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   *websocket.Conn
	wg     sync.WaitGroup

	connected atomic.Bool
}

// NewListener creates a push-channel listener for the given websocket URL.
func NewListener(url string, tokens auth.TokenProvider, m *merger, minBackoff, maxBackoff time.Duration, logger *log.Logger) *Listener {
	return &Listener{
		url:        url,
		tokens:     tokens,
		merger:     m,
		logger:     logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// Start launches the connect/read loop. Idempotent restart: a running
// listener is stopped first.
func (l *Listener) Start() {
	l.Stop()

	l.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go l.run(ctx)
}

// Stop disconnects the channel immediately and halts reconnect attempts.
// Safe to call when not running.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	conn := l.conn
	l.cancel = nil
	l.conn = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client stopping")
	}
	l.wg.Wait()
}

// Connected reports whether the channel is currently established.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// run dials, reads until the connection drops, and redials with capped
// exponential backoff until the context is cancelled.
func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	backoff := l.minBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.dial(ctx)
		if err != nil {
			l.logger.Printf("push channel connect failed: %v (retrying in %v)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > l.maxBackoff {
				backoff = l.maxBackoff
			}
			continue
		}

		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()
		l.connected.Store(true)
		l.logger.Printf("push channel connected")

		backoff = l.minBackoff
		l.readLoop(ctx, conn)

		l.connected.Store(false)
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()

		if ctx.Err() == nil {
			l.logger.Printf("push channel disconnected")
		}
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	header := http.Header{}
	if token := l.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(dialCtx, l.url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	return conn, err
}

// readLoop processes events in delivery order until the connection drops.
func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Printf("WARNING: malformed push event: %v", err)
			continue
		}

		l.handleEvent(ev)
	}
}

// handleEvent merges one event. Events from other users' sessions are
// ignored outright.
func (l *Listener) handleEvent(ev Event) {
	uid, err := l.tokens.UserID()
	if err != nil {
		l.logger.Printf("WARNING: dropping push event, no session user: %v", err)
		return
	}
	if ev.UserID != uid {
		return
	}

	switch ev.Kind {
	case EventNotesCreated, EventNotesUpdated:
		l.merger.applyUpserts(ev.Notes)
	case EventNotesDeleted:
		l.merger.applyDeletes(ev.Notes)
	default:
		l.logger.Printf("WARNING: unknown push event kind %q", ev.Kind)
	}
}
