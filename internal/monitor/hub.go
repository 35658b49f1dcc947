// Package monitor exposes live and recent window results for people
// watching a session: a websocket feed, HTML charts and per-window PNG
// plots.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/stepcount"
)

// DefaultHistory is how many windows a Hub keeps when none is given.
const DefaultHistory = 512

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

var upgrader = websocket.Upgrader{
	// The dashboard is served from the same host or opened from a file.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is a stepcount.Sink that remembers recent windows and fans each new
// one out to connected websocket clients. Slow clients lose messages
// rather than stall the pipeline.
type Hub struct {
	mu      sync.Mutex
	history []stepcount.WindowResult
	next    int
	full    bool
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub keeps the last size windows. size <= 0 uses DefaultHistory.
func NewHub(size int) *Hub {
	if size <= 0 {
		size = DefaultHistory
	}
	return &Hub{
		history: make([]stepcount.WindowResult, size),
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleWindow records r and broadcasts it.
func (h *Hub) HandleWindow(r stepcount.WindowResult) {
	msg, err := json.Marshal(r)
	if err != nil {
		monitoring.Logf("[monitor] marshal window %d: %v", r.Index, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.history[h.next] = r
	h.next = (h.next + 1) % len(h.history)
	if h.next == 0 {
		h.full = true
	}
	if msg == nil {
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			monitoring.Debugf("[monitor] client %s lagging, window %d dropped", c.conn.RemoteAddr(), r.Index)
		}
	}
}

// History returns the retained windows, oldest first.
func (h *Hub) History() []stepcount.WindowResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]stepcount.WindowResult(nil), h.history[:h.next]...)
	}
	out := make([]stepcount.WindowResult, 0, len(h.history))
	out = append(out, h.history[h.next:]...)
	return append(out, h.history[:h.next]...)
}

// Latest returns the most recent window, if any.
func (h *Hub) Latest() (stepcount.WindowResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full && h.next == 0 {
		return stepcount.WindowResult{}, false
	}
	i := (h.next - 1 + len(h.history)) % len(h.history)
	return h.history[i], true
}

// Reset forgets the retained windows. Connected clients stay connected.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.history)
	h.next = 0
	h.full = false
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams window results as JSON text
// messages until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[monitor] websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, clientSend)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go c.writeLoop(done)

	// Reads only detect the close; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
	conn.Close()
}

func (c *wsClient) writeLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				monitoring.Debugf("[monitor] write to %s: %v", c.conn.RemoteAddr(), err)
				c.conn.Close()
				return
			}
		}
	}
}

var _ stepcount.Sink = (*Hub)(nil)
