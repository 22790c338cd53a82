package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/historian"
	"github.com/plantqc/historian-bridge/server/internal/metrics"
	"github.com/plantqc/historian-bridge/server/internal/store"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth. It holds
	// the connect burst (status + one cached frame per tag) plus several passes.
	sendBufSize = 64
)

// Event names carried in Message.Event.
const (
	EventConnectionStatus = "connection_status"
	EventReading          = "reading"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope of every frame sent to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StatusData is the payload of a connection_status frame.
type StatusData struct {
	Mode    types.ConnectionMode `json:"mode"`
	Message string               `json:"message"`
}

// ReadingData is the payload of a reading frame.
type ReadingData struct {
	Tag     string            `json:"tag"`
	Line    types.ReactorLine `json:"line"`
	Signal  types.SignalKind  `json:"signal"`
	Reading types.Reading     `json:"reading"`
}

// Hub polls the latest sample of every tag and fans each one out to all
// connected clients. One poller serves every client, so historian query
// volume does not grow with the number of clients.
type Hub struct {
	historian *historian.Client
	tags      []types.Tag
	store     *store.Store
	interval  atomic.Int64 // time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}

	// wake nudges an idle poller when the first client connects.
	wake chan struct{}
}

// client represents one connected WebSocket client.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// mode is the connection mode last reported to this client. After
	// registration only the Run goroutine touches it.
	mode types.ConnectionMode
}

// New creates a Hub that polls tags through hc, caches the latest readings
// in st and pauses interval between passes.
func New(hc *historian.Client, tags []types.Tag, st *store.Store, interval time.Duration) *Hub {
	h := &Hub{
		historian: hc,
		tags:      tags,
		store:     st,
		clients:   make(map[*client]struct{}),
		wake:      make(chan struct{}, 1),
	}
	h.SetInterval(interval)
	return h
}

// SetInterval changes the pause between passes, effective after the current
// pass. Non-positive values are ignored.
func (h *Hub) SetInterval(d time.Duration) {
	if d > 0 {
		h.interval.Store(int64(d))
	}
}

// Run polls until ctx is cancelled, then closes all active connections.
// A pass queries every tag in order and broadcasts each reading as soon as it
// resolves; after a full pass Run waits the configured interval. While no
// client is connected Run issues no historian queries.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	for {
		if ctx.Err() != nil {
			return
		}
		if h.Count() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-h.wake:
				continue
			}
		}

		h.pass(ctx)

		if ctx.Err() != nil || h.Count() == 0 {
			continue
		}
		t := time.NewTimer(time.Duration(h.interval.Load()))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends a connection_status frame and the cached latest readings
// immediately, then the client receives every poller broadcast. Blocks until
// the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}

	// Acquire so the status reflects the historian right now, not the last pass.
	h.historian.Manager().Acquire(r.Context())
	st := h.historian.Manager().State()
	if data, err := statusMessage(st); err == nil {
		c.send <- data
		c.mode = st.Mode
		metrics.FramesBroadcast.WithLabelValues(EventConnectionStatus).Inc()
	}
	// Replay only cached readings whose quality matches the announced mode.
	fallback := st.Mode == types.ModeFallback
	for _, e := range h.store.List() {
		if len(c.send) == cap(c.send) {
			break
		}
		if e.Reading.Synthetic() != fallback {
			continue
		}
		if data, err := h.readingMessage(e.Reading); err == nil {
			c.send <- data
			metrics.FramesBroadcast.WithLabelValues(EventReading).Inc()
		}
	}

	h.register(c)
	defer h.unregister(c)
	slog.Info("ws: client connected", "client", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump() // blocks until connection closes
	slog.Info("ws: client disconnected", "client", c.id)
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveClients.Inc()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.LiveClients.Dec()
	}
}

// pass queries every tag once. It stops early when ctx is cancelled or the
// last client has left.
func (h *Hub) pass(ctx context.Context) {
	for _, tag := range h.tags {
		if ctx.Err() != nil || h.Count() == 0 {
			return
		}
		r, err := h.historian.Latest(ctx, tag)
		// Each Latest acquires a connection, so a mode change is announced
		// before the first reading served in the new mode.
		h.notifyModeChange(h.historian.Manager().State())
		if err != nil {
			slog.Warn("ws: latest reading unavailable", "tag", tag.Name, "err", err)
			continue
		}
		h.store.Put(r)
		data, err := h.readingMessage(r)
		if err != nil {
			continue
		}
		h.broadcast(EventReading, data)
	}
}

// notifyModeChange sends a connection_status frame to every client that was
// last told a different mode.
func (h *Hub) notifyModeChange(st types.ConnectionState) {
	data, err := statusMessage(st)
	if err != nil {
		return
	}
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		if c.mode == st.Mode {
			continue
		}
		select {
		case c.send <- data:
			slog.Info("ws: historian mode changed", "client", c.id, "from", c.mode, "to", st.Mode)
			c.mode = st.Mode
			metrics.FramesBroadcast.WithLabelValues(EventConnectionStatus).Inc()
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

// broadcast queues data for every client. Clients whose buffer is full are
// disconnected; nobody else waits on them.
func (h *Hub) broadcast(event string, data []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
			metrics.FramesBroadcast.WithLabelValues(event).Inc()
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) dropSlow(slow []*client) {
	for _, c := range slow {
		slog.Warn("ws: client too slow, disconnecting", "client", c.id)
		metrics.SlowClientsDropped.Inc()
		h.unregister(c)
	}
}

func (h *Hub) readingMessage(r types.Reading) ([]byte, error) {
	d := ReadingData{Tag: r.Tag, Reading: r}
	for _, t := range h.tags {
		if t.Name == r.Tag {
			d.Line, d.Signal = t.Line, t.Kind
			break
		}
	}
	return json.Marshal(Message{Event: EventReading, Data: d})
}

func statusMessage(st types.ConnectionState) ([]byte, error) {
	msg := "historian connected"
	if st.Mode == types.ModeFallback {
		msg = "historian unavailable, serving synthetic readings"
		if st.LastError != "" {
			msg += ": " + st.LastError
		}
	}
	return json.Marshal(Message{
		Event: EventConnectionStatus,
		Data:  StatusData{Mode: st.Mode, Message: msg},
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
		metrics.LiveClients.Dec()
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
