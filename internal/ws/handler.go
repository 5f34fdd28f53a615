package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/ratelimit"

	"crewlink/internal/apperrors"
	"crewlink/internal/auth"
	"crewlink/internal/observability"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// WebSocketHandler upgrades authenticated requests and joins the connection to its user's channel.
type WebSocketHandler struct {
	hub             *Hub
	validator       TokenValidator
	eventsPerSecond int
}

// NewWebSocketHandler constructs a WebSocketHandler. Inbound frames of one connection are
// throttled to eventsPerSecond.
func NewWebSocketHandler(hub *Hub, validator TokenValidator, eventsPerSecond int) *WebSocketHandler {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 20
	}
	return &WebSocketHandler{hub: hub, validator: validator, eventsPerSecond: eventsPerSecond}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs its read loop until the client goes away.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("crewlink/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	userID, err := h.validator.Validate(token)
	if token == "" || err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": apperrors.CodeUnauthorized})
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := newConnInfo(userID, span.SpanContext().TraceID().String(), observability.ClientFromRequest(c.Request))

	// the request context ends with the handler; the session outlives it
	sessionCtx := context.WithoutCancel(ctx)
	h.hub.Join(sessionCtx, conn, info)
	info.publishSession(sessionCtx, "ws_connect", "")
	observability.IncWSActive("session")

	go h.readLoop(sessionCtx, conn, info)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Leave(ctx, info.UserID, conn)
		observability.DecWSActive("session")
		info.publishSession(ctx, "ws_disconnect", closeReason)
		conn.Close()
	}()

	limiter := ratelimit.New(h.eventsPerSecond)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				info.publishSession(ctx, "ws_error", closeReason)
			}
			return
		}

		limiter.Take()
		ev, err := Decode(frame)
		if err != nil || !ev.Kind.Inbound() {
			jww.DEBUG.Printf("ws rejected frame user=%s conn=%s: %v", info.UserID, info.ConnID, err)
			observability.IncWSEvent("inbound", "rejected")
			continue
		}
		observability.IncWSEvent("inbound", string(ev.Kind))
		h.hub.Dispatch(ctx, info.UserID, bindSender(ev, info.UserID))
	}
}

// bindSender replaces client-claimed identity with the session's user.
func bindSender(ev Event, userID string) Event {
	if p, ok := ev.Payload.(TypingPayload); ok {
		p.SenderID = userID
		ev.Payload = p
	}
	return ev
}
