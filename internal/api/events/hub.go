// Package events pushes core domain events (claim grants, raffle
// draws) to connected presentation clients over websockets.
package events

import (
	"net/http"
	"sync"
	"time"

	"questhub/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Hub fans events out through per-connection buffered channels, each
// drained by its own writer goroutine. Publish never writes to a
// socket itself, so a stalled client cannot block the claim path.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]chan []byte),
	}
}

func NewEventRoutes(handler *gin.RouterGroup, hub *Hub) {
	handler.GET("/events/ws", hub.handleWebSocket)
}

func (h *Hub) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Logger().Error("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, sendBuffer)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()

	go h.writeLoop(conn, send)
	go h.drain(conn)
}

// remove unregisters a connection and closes it. Safe to call from
// both loops; only the call that finds the connection registered tears
// it down.
func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()

	if ok {
		close(send)
		conn.Close()
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	defer h.remove(conn)

	for body := range send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			return
		}
	}
}

// drain discards inbound frames and removes the connection on close.
// The feed is one-way.
func (h *Hub) drain(conn *websocket.Conn) {
	defer h.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Logger().Info("websocket unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// Publish broadcasts an event to every connected client. A client
// whose send buffer is full is dropped rather than waited on.
func (h *Hub) Publish(eventType string, payload map[string]any) {
	body, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		logger.Logger().Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, send := range h.conns {
		select {
		case send <- body:
		default:
			delete(h.conns, conn)
			close(send)
			conn.Close()
		}
	}
}
