// Package bridge runs the local WebSocket server that ferries JavaScript
// evaluation requests from the native side into a connected browser
// extension and correlates responses by request id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultAddr is where the extension expects the bridge.
const DefaultAddr = "127.0.0.1:17373"

// bindRetryDelay is how long the bridge waits before its single rebind
// attempt when the port is taken.
const bindRetryDelay = 2 * time.Second

type evalRequest struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	Code         string `json:"code"`
	AwaitPromise bool   `json:"await_promise"`
}

// incoming covers both eval responses ({id, ok, result|error}) and typed
// ancillary messages ({type: hello|pong|console_event|...}).
type incoming struct {
	ID     string          `json:"id,omitempty"`
	OK     *bool           `json:"ok,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`

	Type    string          `json:"type,omitempty"`
	From    string          `json:"from,omitempty"`
	Level   string          `json:"level,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	Entry   json.RawMessage `json:"entry,omitempty"`
}

type callResult struct {
	ok    bool
	value json.RawMessage
	err   string
}

type pendingCall struct {
	ch    chan callResult
	owner *client
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// shutdown tears the connection down once, no matter how many paths race
// to it.
func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Bridge is the extension bridge server. One instance per process; see
// Global. When binding fails even after the retry the bridge is inert:
// IsClientConnected reports false and every eval returns a missing result.
type Bridge struct {
	addr string

	mu      sync.Mutex
	clients []*client
	pending map[string]*pendingCall
	closed  bool

	srv *http.Server
	ln  net.Listener
}

var (
	globalOnce sync.Once
	globalB    *Bridge
)

// Global returns the process-wide bridge, starting it on the default
// address on first use.
func Global() *Bridge {
	globalOnce.Do(func() {
		globalB = New(DefaultAddr)
		globalB.Start()
	})
	return globalB
}

// New builds an unstarted bridge.
func New(addr string) *Bridge {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Bridge{addr: addr, pending: map[string]*pendingCall{}}
}

// Start binds the listener and begins accepting extension connections. On
// AddrInUse it waits 2 seconds and retries once; if binding still fails
// the bridge stays inert rather than failing the process.
func (b *Bridge) Start() {
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		if isAddrInUse(err) {
			log.Printf("bridge: %s in use, retrying once in %s", b.addr, bindRetryDelay)
			time.Sleep(bindRetryDelay)
			ln, err = net.Listen("tcp", b.addr)
		}
		if err != nil {
			log.Printf("bridge: bind %s failed, extension bridge inert: %v", b.addr, err)
			return
		}
	}
	b.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", b.serveWS)
	b.srv = &http.Server{Handler: mux}
	go func() {
		if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("bridge: serve: %v", err)
		}
	}()
	log.Printf("bridge: extension bridge listening on %s", ln.Addr())
}

// Addr returns the bound address, or "" when inert.
func (b *Bridge) Addr() string {
	if b.ln == nil {
		return ""
	}
	return b.ln.Addr().String()
}

// IsClientConnected reports whether at least one extension client is
// attached.
func (b *Bridge) IsClientConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients) > 0
}

// Shutdown stops the server, disconnects clients, and clears the pending
// map.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.mu.Lock()
	b.closed = true
	clients := b.clients
	b.clients = nil
	pending := b.pending
	b.pending = map[string]*pendingCall{}
	b.mu.Unlock()

	for _, p := range pending {
		p.ch <- callResult{ok: false, err: "bridge shutting down"}
	}
	for _, c := range clients {
		c.shutdown()
	}
	if b.srv != nil {
		_ = b.srv.Shutdown(ctx)
	}
}

// EvalInActiveTab sends an eval request to the first connected client and
// waits up to timeout for the correlated response. A missing result
// (ok=false) — no client, send failure, or timeout — is not an error;
// callers degrade gracefully. A client-side evaluation failure comes back
// as an "ERROR: ..." result string.
func (b *Bridge) EvalInActiveTab(ctx context.Context, code string, timeout time.Duration) (string, bool, error) {
	b.mu.Lock()
	if len(b.clients) == 0 {
		b.mu.Unlock()
		log.Printf("bridge: no clients connected; skipping extension path")
		return "", false, nil
	}
	first := b.clients[0]
	id := uuid.NewString()
	call := &pendingCall{ch: make(chan callResult, 1), owner: first}
	b.pending[id] = call
	b.mu.Unlock()

	payload, err := json.Marshal(evalRequest{ID: id, Action: "eval", Code: code, AwaitPromise: true})
	if err != nil {
		b.removePending(id)
		return "", false, fmt.Errorf("bridge serialize: %w", err)
	}

	select {
	case first.send <- payload:
	case <-first.done:
		b.removePending(id)
		log.Printf("bridge: first client disconnected before send")
		return "", false, nil
	default:
		b.removePending(id)
		log.Printf("bridge: failed to enqueue eval for first client")
		return "", false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-call.ch:
		if !res.ok {
			return "ERROR: " + res.err, true, nil
		}
		return rawToString(res.value), true, nil
	case <-timer.C:
		// Expired: the pending entry must not leak; a late response with
		// this id is logged and dropped.
		b.removePending(id)
		log.Printf("bridge: timed out waiting for eval result (id=%s)", id)
		return "", false, nil
	case <-ctx.Done():
		b.removePending(id)
		return "", false, nil
	}
}

func (b *Bridge) removePending(id string) *pendingCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pending[id]
	delete(b.pending, id)
	return p
}

// PendingCount reports in-flight requests; used by tests and diagnostics.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

var upgrader = websocket.Upgrader{
	// The bridge binds to loopback only; any local page may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (b *Bridge) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: ws handshake: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	b.clients = append(b.clients, c)
	b.mu.Unlock()

	go c.writeLoop()
	b.readLoop(c)
}

func (c *client) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("bridge: ws send: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (b *Bridge) readLoop(c *client) {
	defer b.dropClient(c)
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg incoming
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("bridge: invalid incoming JSON: %v", err)
			continue
		}
		if msg.Type != "" {
			b.handleTyped(msg)
			continue
		}
		if msg.OK != nil {
			b.handleEvalResult(msg)
			continue
		}
		log.Printf("bridge: unrecognized message shape: %s", truncateForLog(data))
	}
}

func (b *Bridge) handleEvalResult(msg incoming) {
	p := b.removePending(msg.ID)
	if p == nil {
		// Unknown or already-expired id: logged and dropped; the waiter (if
		// any) has already been released.
		log.Printf("bridge: dropping response with unknown id %s", msg.ID)
		return
	}
	if *msg.OK {
		p.ch <- callResult{ok: true, value: msg.Result}
		return
	}
	errStr := "unknown error"
	if msg.Error != nil {
		errStr = *msg.Error
	}
	log.Printf("bridge: eval result error (id=%s): %s", msg.ID, truncateForLog([]byte(errStr)))
	p.ch <- callResult{ok: false, err: errStr}
}

// handleTyped records ancillary extension messages; they carry no waiter.
func (b *Bridge) handleTyped(msg incoming) {
	switch msg.Type {
	case "hello":
		log.Printf("bridge: extension connected (from=%s)", msg.From)
	case "pong":
	case "console_event":
		log.Printf("bridge: console %s event (id=%s): %s", msg.Level, msg.ID, truncateForLog(msg.Args))
	case "exception_event":
		log.Printf("bridge: runtime exception (id=%s): %s", msg.ID, truncateForLog(msg.Details))
	case "log_event":
		log.Printf("bridge: log entry (id=%s): %s", msg.ID, truncateForLog(msg.Entry))
	default:
		log.Printf("bridge: unknown message type %q", msg.Type)
	}
}

// dropClient unregisters a disconnected client and resolves every pending
// request it owned with a disconnect error.
func (b *Bridge) dropClient(c *client) {
	b.mu.Lock()
	kept := b.clients[:0]
	for _, other := range b.clients {
		if other != c {
			kept = append(kept, other)
		}
	}
	b.clients = kept
	var orphaned []*pendingCall
	for id, p := range b.pending {
		if p.owner == c {
			orphaned = append(orphaned, p)
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	c.shutdown()
	for _, p := range orphaned {
		p.ch <- callResult{ok: false, err: "client disconnected"}
	}
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncateForLog(b []byte) string {
	const max = 400
	s := string(b)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return strings.TrimSpace(s)
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use") ||
			strings.Contains(opErr.Err.Error(), "in use")
	}
	return false
}
