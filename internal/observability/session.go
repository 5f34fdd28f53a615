package observability

import (
	"net"
	"net/http"
	"strings"
)

// SessionRoutingKey carries websocket session transitions to the broker.
const SessionRoutingKey = "ws_events.sessions"

// SessionEvent is the broker record of one websocket session transition
// (ws_connect, ws_disconnect or ws_error).
type SessionEvent struct {
	EventType string         `json:"event_type"`
	EventName string         `json:"event_name"`
	Payload   SessionPayload `json:"payload"`
}

type SessionPayload struct {
	ConnID     string `json:"conn_id"`
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	IP         string `json:"ip,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// Client is what the edge proxy tells us about the caller.
type Client struct {
	RequestID string
	DeviceID  string
	IP        string
}

// ClientFromRequest reads the proxy headers of r. The first X-Forwarded-For hop wins
// over the socket address.
func ClientFromRequest(r *http.Request) Client {
	return Client{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// TraceHeaders are the AMQP headers correlating a broker message with its request.
func TraceHeaders(requestID, traceID string) map[string]string {
	headers := make(map[string]string, 2)
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
