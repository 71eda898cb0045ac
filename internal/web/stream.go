package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/coinsight/crypto_screener/internal/domain"
)

// Event is one message pushed to connected dashboards: a toast, a fresh
// scan result, or a navigation order.
type Event struct {
	Type    string `json:"type"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Hub manages websocket clients and fans events out to all of them. It
// also implements domain.Notifier, so the gateway's toasts reach every
// open dashboard tab.
type Hub struct {
	clients    map[*streamClient]bool
	broadcast  chan []byte
	register   chan *streamClient
	unregister chan *streamClient
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		logger:     logger,
	}
}

// Run is the hub's event loop; launch it as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// push queues an event, dropping it when nothing is draining the hub.
// Events are fire-and-forget; a dashboard that missed one recovers on its
// next fetch.
func (h *Hub) push(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode stream event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Event stream saturated, dropping event", zap.String("type", ev.Type))
	}
}

// Notify implements domain.Notifier.
func (h *Hub) Notify(level, message string) {
	h.push(Event{Type: "toast", Level: level, Message: message})
}

// BroadcastScan announces a fresh scan result.
func (h *Hub) BroadcastScan(res *domain.ScanResult) {
	h.push(Event{Type: "scan", Payload: res})
}

// Navigate orders connected dashboards to a new path. Wired into the
// gateway as its navigation capability.
func (h *Hub) Navigate(path string) {
	h.push(Event{Type: "navigate", Payload: path})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type streamClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *streamClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Inbound messages are ignored; reading only detects closure.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := credentialFrom(r); !ok {
		writeAuthRequired(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &streamClient{hub: s.hub, conn: conn, send: make(chan []byte, 16)}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}
