package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlink/internal/apperrors"
	"crewlink/internal/auth"
	"crewlink/internal/chatclient"
	"crewlink/internal/config"
	"crewlink/internal/db/dbtest"
	"crewlink/internal/models"
	"crewlink/internal/rabbitmq"
)

const testSecret = "cmd-test-secret"

func newTestApp(t *testing.T, debug bool) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Environment:     "test",
		JWTSecret:       testSecret,
		OTelServiceName: "crewlink",
		TypingTTL:       time.Second,
		EventsPerSecond: 20,
		DebugEnabled:    debug,
	}
	a := newApp(cfg, dbtest.NewSQLite(t), rabbitmq.NewPublisher("", "crewlink.events"))
	t.Cleanup(a.bindings.Close)
	return a
}

func serve(a *app, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestAppHealthAndMetrics(t *testing.T) {
	a := newTestApp(t, false)

	w := serve(a, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(a, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crewlink_http_requests_total")
}

func TestAppProtectsAPIRoutes(t *testing.T) {
	a := newTestApp(t, false)

	w := serve(a, http.MethodGet, "/chat/rooms", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.Generate(testSecret, "alice", time.Minute)
	require.NoError(t, err)
	w = serve(a, http.MethodGet, "/chat/rooms", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":[]}`, w.Body.String())

	w = serve(a, http.MethodGet, "/connections/status/bob", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"bob","status":"none"}`, w.Body.String())
}

func TestAppDebugRoutesFollowConfig(t *testing.T) {
	token, err := auth.Generate(testSecret, "alice", time.Minute)
	require.NoError(t, err)

	w := serve(newTestApp(t, false), http.MethodGet, "/debug/audit-test", token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(newTestApp(t, true), http.MethodGet, "/debug/audit-test", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientAgainstApp(t *testing.T) {
	a := newTestApp(t, false)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	alice, err := auth.Generate(testSecret, "alice", time.Minute)
	require.NoError(t, err)
	bob, err := auth.Generate(testSecret, "bob", time.Minute)
	require.NoError(t, err)
	aliceAPI := chatclient.NewHTTPClient(srv.URL, alice, nil)
	bobAPI := chatclient.NewHTTPClient(srv.URL, bob, nil)
	ctx := context.Background()

	sender := chatclient.NewSender(aliceAPI, chatclient.NewCache(), "alice")
	_, err = sendWithRetry(ctx, sender, "bob", "Crew bar at 10?", models.MessageText, 3)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotConnected, apperrors.CodeOf(err))

	req, err := aliceAPI.SendConnectionRequest(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, bobAPI.Respond(ctx, req.ID, models.ActionAccept))

	res, err := sendWithRetry(ctx, sender, "bob", "Crew bar at 10?", models.MessageText, 3)
	require.NoError(t, err)
	assert.Equal(t, "room_alice_bob", res.Message.RoomID)

	history, err := bobAPI.Conversation(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Message.ID, history[0].ID)
}

func TestSendWithRetryRecovers(t *testing.T) {
	api := &flakyAPI{failures: 1}
	sender := chatclient.NewSender(api, chatclient.NewCache(), "alice")

	res, err := sendWithRetry(context.Background(), sender, "bob", "Boat drill moved", models.MessageText, 2)
	require.NoError(t, err)
	assert.Equal(t, "m1", res.Message.ID)
	require.Len(t, api.clientIDs, 2)
	assert.Equal(t, api.clientIDs[0], api.clientIDs[1])
}

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8083":       "ws://localhost:8083/ws",
		"https://chat.example.com/":   "wss://chat.example.com/ws",
		"http://gateway/crewlink/api": "ws://gateway/crewlink/api/ws",
	}
	for base, want := range cases {
		got, err := websocketURL(base)
		require.NoError(t, err)
		assert.Equal(t, want, got, base)
	}
}

func TestTokenCommand(t *testing.T) {
	v.Set("auth.jwt_secret", testSecret)
	t.Cleanup(func() { v.Set("auth.jwt_secret", "") })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "alice", "--ttl", "5m"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	userID, err := auth.NewValidator(testSecret).Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

type flakyAPI struct {
	failures  int
	clientIDs []string
}

func (a *flakyAPI) SendMessage(_ context.Context, req chatclient.SendRequest) (models.ChatMessage, error) {
	a.clientIDs = append(a.clientIDs, req.ClientMessageID)
	if a.failures > 0 {
		a.failures--
		return models.ChatMessage{}, apperrors.Internal("upstream hiccup", nil)
	}
	return models.ChatMessage{
		ID:          "m1",
		RoomID:      models.RoomID("alice", req.ReceiverID),
		SenderID:    "alice",
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: models.MessageText,
		Status:      models.MessageSent,
		Timestamp:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}
