package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crewlink/internal/auth"
	"crewlink/internal/db/dbtest"
	"crewlink/internal/middleware"
	"crewlink/internal/mocks"
	"crewlink/internal/models"
	"crewlink/internal/repositories"
	"crewlink/internal/services"
	"crewlink/internal/telemetry"
	"crewlink/internal/ws"
)

const testSecret = "handler-test-secret"

type testAPI struct {
	router   *gin.Engine
	profiles *repositories.ProfileRepo
	audit    *mocks.PublisherMock
	jobs     *mocks.PublisherMock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := dbtest.NewSQLite(t)
	hub := ws.NewHub()
	profiles := repositories.NewProfileRepo(database)
	presence := services.NewPresenceTracker(services.DefaultTypingTTL)

	jobs := new(mocks.PublisherMock)
	jobs.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	auditPub := new(mocks.PublisherMock)
	auditPub.On("Publish", mock.Anything, "audit.crewlink", mock.Anything).Return(nil).Maybe()
	emitter := telemetry.NewAuditEmitter(auditPub, "audit.crewlink", "crewlink", "test")

	notifications := services.NewNotificationService(
		repositories.NewNotificationRepo(database),
		repositories.NewPreferenceRepo(database),
		profiles,
		hub,
		jobs,
	)
	connections := services.NewConnectionService(repositories.NewConnectionRepo(database), notifications)
	chat := services.NewChatService(
		repositories.NewChatRepo(database),
		repositories.NewMessageRepo(database),
		profiles,
		connections,
		presence,
		hub,
		notifications,
	)

	router := gin.New()
	protected := router.Group("/", middleware.AuthMiddleware(auth.NewValidator(testSecret)))
	NewChatHandler(chat, presence, emitter).Register(protected)
	NewConnectionHandler(connections, emitter).Register(protected)
	NewNotificationHandler(notifications).Register(protected)
	RegisterDebugRoutes(protected, emitter, hub, true)

	return &testAPI{router: router, profiles: profiles, audit: auditPub, jobs: jobs}
}

func (a *testAPI) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := auth.Generate(testSecret, userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) connect(t *testing.T, from, to string) string {
	t.Helper()
	rec := a.do(t, from, http.MethodPost, "/connections/requests", gin.H{"receiver_id": to})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Request models.ConnectionRequest `json:"request"`
	}
	decode(t, rec, &created)

	rec = a.do(t, to, http.MethodPut, "/connections/requests/"+created.Request.ID, gin.H{"action": "accept"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return created.Request.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	decode(t, rec, &body)
	require.NotEmpty(t, body.Error)
	return body.Code
}
