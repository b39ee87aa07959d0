package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is the envelope pushed to WebSocket clients.
type Event struct {
	Type      string      `json:"type"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type message struct {
	tenantID uuid.UUID
	data     []byte
}

type client struct {
	conn     *websocket.Conn
	tenantID uuid.UUID
}

// Hub fans tenant events out to the connections of that tenant only.
type Hub struct {
	clients    map[*websocket.Conn]uuid.UUID
	register   chan client
	unregister chan *websocket.Conn
	broadcast  chan message
	done       chan struct{}
	log        *zap.Logger
	mutex      sync.Mutex
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]uuid.UUID),
		register:   make(chan client),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
		log:        log.Named("ws"),
	}
}

// Register and Unregister return immediately once Run has stopped.
func (h *Hub) Register(conn *websocket.Conn, tenantID uuid.UUID) {
	select {
	case h.register <- client{conn: conn, tenantID: tenantID}:
	case <-h.done:
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues an event for the tenant's clients. It never blocks the
// caller: when the queue is full the event is dropped and logged.
func (h *Hub) Publish(tenantID uuid.UUID, eventType string, payload interface{}) {
	if h == nil {
		return
	}
	data, err := json.Marshal(Event{Type: eventType, TenantID: tenantID, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		h.log.Error("encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{tenantID: tenantID, data: data}:
	default:
		h.log.Warn("event dropped, broadcast queue full", zap.String("type", eventType))
	}
}

// ClientCount reports connected clients of a tenant.
func (h *Hub) ClientCount(tenantID uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	n := 0
	for _, t := range h.clients {
		if t == tenantID {
			n++
		}
	}
	return n
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.conn] = c.tenantID
			h.mutex.Unlock()
			h.log.Debug("client connected", zap.Stringer("tenant_id", c.tenantID))

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for conn, tenantID := range h.clients {
				if tenantID != msg.tenantID {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}
