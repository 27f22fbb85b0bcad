package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	router := gin.New()
	NewEventRoutes(router.Group("/"), hub)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		got := len(hub.conns)
		hub.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", want)
}

func TestHubDeliversPublishedEvents(t *testing.T) {
	hub, srv := newHubServer(t)
	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	hub.Publish("claim_granted", map[string]any{"quest_id": "q-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, body, err := conn.ReadMessage()
	assert.NoError(t, err)

	var msg Message
	assert.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "claim_granted", msg.Type)
	assert.Equal(t, "q-1", msg.Payload["quest_id"])
}

func TestHubPublishDoesNotBlockOnStalledClient(t *testing.T) {
	hub, srv := newHubServer(t)
	dialHub(t, srv) // connects but never reads
	waitForClients(t, hub, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish("winners_drawn", map[string]any{"seq": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("publish blocked behind a stalled client")
	}
}
