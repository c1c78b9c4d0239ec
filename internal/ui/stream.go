package ui

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zombor/label-scan/internal/workflow"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The view is served from this process but may be loaded through a webview
	// with an opaque origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// hub fans workflow transitions out to every connected view
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan statePayload
	once sync.Once
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

// add registers c and queues the current state as its first message. Holding mu
// orders it before any transition broadcast after registration.
func (h *hub) add(c *client, current func() workflow.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	c.send <- newStatePayload(current())
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// broadcast queues state for every client. A client too slow to keep up
// is dropped; it reconnects and receives the current state.
func (h *hub) broadcast(state workflow.State) {
	payload := newStatePayload(state)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slog.Warn("Dropping slow view stream")
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// handleStream upgrades to a websocket, sends the current state, then every transition
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Error upgrading to websocket", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan statePayload, sendBuffer)}
	s.hub.add(c, s.workflow.State)

	go c.readLoop(s.hub)
	c.writeLoop()
}

// readLoop only handles control frames; the view never sends data on the stream
func (c *client) readLoop(h *hub) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("View stream closed", "error", err)
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(payload); err != nil {
				slog.Debug("Error writing to view stream", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
