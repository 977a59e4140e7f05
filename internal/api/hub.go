package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Event is the envelope broadcast to every observer socket. Instructors
// watch games live through these; the payload is the same JSON the REST
// response carries.
type Event struct {
	Type      string `json:"type"` // round_played | contract_accepted | game_ended
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload"`
}

// Hub fans events out to all connected observer sockets. Run once in a
// goroutine; handlers publish through Publish. A nil *Hub drops events,
// so the server works without the hub wired.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	log        *slog.Logger
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		log:        log,
	}
}

// Run is the hub's event loop; it owns the clients map so no lock is
// needed. Blocks until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("observer connected", "observers", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer; drop the connection rather
					// than stall every other observer.
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Publish serializes an event and hands it to the broadcast loop.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("event marshal failed", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.log.Warn("event dropped, broadcast queue full", "type", ev.Type)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin handled by the HTTP CORS layer; observer sockets are
	// read-only so any origin may listen.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades a GET request to an observer websocket.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

// readPump drains the socket so pings and closes are processed. Observer
// messages are ignored; the stream is one-way.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("observer read error", "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
