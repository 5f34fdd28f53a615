package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"crewlink/internal/observability"
)

// ConnInfo identifies one websocket session for logs, metrics and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Client      observability.Client
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(userID, traceID string, client observability.Client) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		Client:      client,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

// sessionEvent builds the broker record for name (ws_connect, ws_disconnect, ws_error).
func (info ConnInfo) sessionEvent(name, reason string) observability.SessionEvent {
	return observability.SessionEvent{
		EventType: "ws_events",
		EventName: name,
		Payload: observability.SessionPayload{
			ConnID:     info.ConnID,
			UserID:     info.UserID,
			DeviceID:   info.Client.DeviceID,
			IP:         info.Client.IP,
			DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
	}
}

func (info ConnInfo) publishSession(ctx context.Context, name, reason string) {
	observability.IncWSEvent("session", name)
	_ = observability.PublishEvent(ctx, observability.SessionRoutingKey, info.sessionEvent(name, reason),
		observability.TraceHeaders(info.Client.RequestID, info.TraceID))
}
