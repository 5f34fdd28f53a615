package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlink/internal/auth"
)

func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(hub, auth.NewValidator("secret"), 100).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	token, err := auth.Generate("secret", userID, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	srv := startServer(t, NewHub())

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionReceivesPublishedEvents(t *testing.T) {
	hub := NewHub()
	srv := startServer(t, hub)
	conn := dial(t, srv, "bob")

	require.Eventually(t, func() bool { return hub.SessionCount("bob") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), "bob", UserTyping("alice", "room_alice_bob", true)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, UserTypingPayload{UserID: "alice", RoomID: "room_alice_bob", IsTyping: true}, ev.Payload)

	conn.Close()
	require.Eventually(t, func() bool { return hub.SessionCount("bob") == 0 }, time.Second, 10*time.Millisecond)
}

func TestInboundFramesAreDispatchedWithSessionIdentity(t *testing.T) {
	hub := NewHub()

	var (
		mu       sync.Mutex
		received []TypingPayload
	)
	sub := hub.Subscribe(KindTypingStart, func(_ context.Context, userID string, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev.Payload.(TypingPayload))
	})
	defer sub.Close()

	srv := startServer(t, hub)
	conn := dial(t, srv, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"session-opened","payload":{"user_id":"mallory"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"typing-start","payload":{"sender_id":"mallory","receiver_id":"bob"}}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, TypingPayload{SenderID: "alice", ReceiverID: "bob"}, received[0])
}
