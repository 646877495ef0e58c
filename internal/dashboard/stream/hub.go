// Package stream pushes live snapshots and command state changes to
// subscribed operator UIs over WebSocket.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types pushed to subscribers
const (
	EventLiveSnapshot = "live_snapshot"
	EventCommandState = "command_state"
)

// Event represents one message pushed over the stream
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// client represents one connected subscriber
type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// Hub fans events out to every connected subscriber. Slow subscribers
// drop events instead of blocking the broadcast path.
type Hub struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	clients    map[string]*client
	broadcast  chan Event
	register   chan *client
	unregister chan string
	done       chan struct{}
	once       sync.Once
}

// NewHub creates a hub; call Run to start its event loop
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the CORS middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[string]*client),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan string),
		done:       make(chan struct{}),
	}
}

// Run manages the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, cl := range h.clients {
				close(cl.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case cl := <-h.register:
			h.mu.Lock()
			h.clients[cl.id] = cl
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Stream client connected",
				zap.String("client_id", cl.id),
				zap.Int("total", total))

		case id := <-h.unregister:
			h.mu.Lock()
			if cl, ok := h.clients[id]; ok {
				delete(h.clients, id)
				close(cl.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Stream client disconnected",
				zap.String("client_id", id),
				zap.Int("total", total))

		case ev := <-h.broadcast:
			h.mu.RLock()
			for _, cl := range h.clients {
				select {
				case cl.send <- ev:
				default:
					// Subscriber is not keeping up; skip this event.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop terminates the event loop and disconnects all subscribers
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Broadcast queues an event for every subscriber
func (h *Hub) Broadcast(eventType string, data interface{}) {
	ev := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// ServeWS upgrades the request and subscribes the connection
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, 64),
	}

	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(cl)
	go h.readPump(cl)
}

// writePump drains the client's send channel onto the connection
func (h *Hub) writePump(cl *client) {
	defer cl.conn.Close()
	for ev := range cl.send {
		if err := cl.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// readPump consumes inbound frames until the peer goes away
func (h *Hub) readPump(cl *client) {
	defer func() {
		select {
		case h.unregister <- cl.id:
		case <-h.done:
		}
		_ = cl.conn.Close()
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
