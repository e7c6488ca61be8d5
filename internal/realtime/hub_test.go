package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, w, r)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Connections() >= 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHubPublishesToUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1")

	hub.PublishToUser("someone-else", Event{Type: "notification.created"})
	hub.PublishToUser("user-1", Event{Type: "notification.created", Data: map[string]string{"title": "Tugas Baru"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "notification.created", event.Type)
	require.Equal(t, "Tugas Baru", event.Data["title"])
}

func TestHubAnswersPing(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-2")

	require.NoError(t, conn.WriteJSON(Event{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "pong", event.Type)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-3")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub("https://app.tuntasinaja.id")

	req := httptest.NewRequest(http.MethodGet, "http://api.tuntasinaja.id/ws", nil)
	req.Host = "api.tuntasinaja.id"

	req.Header.Set("Origin", "https://app.tuntasinaja.id")
	require.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	require.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	require.False(t, hub.upgrader.CheckOrigin(req))
}
