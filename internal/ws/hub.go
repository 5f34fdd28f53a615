package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/apperrors"
	"crewlink/internal/observability"
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler receives an event on behalf of userID. For inbound kinds userID is the
// authenticated user of the session the frame arrived on.
type Handler func(ctx context.Context, userID string, ev Event)

type session struct {
	conn Conn
	info ConnInfo
	mu   sync.Mutex
}

func (s *session) write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub keeps the live websocket sessions of every user and the handlers subscribed to
// inbound and lifecycle events.
type Hub struct {
	sessions map[string]map[*session]struct{}
	handlers map[Kind]map[*Subscription]Handler
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*session]struct{}),
		handlers: make(map[Kind]map[*Subscription]Handler),
	}
}

// Join registers conn as a session of info.UserID and emits session-opened.
func (h *Hub) Join(ctx context.Context, conn Conn, info ConnInfo) {
	s := &session{conn: conn, info: info}
	h.mu.Lock()
	if _, ok := h.sessions[info.UserID]; !ok {
		h.sessions[info.UserID] = make(map[*session]struct{})
	}
	h.sessions[info.UserID][s] = struct{}{}
	h.mu.Unlock()

	h.Dispatch(ctx, info.UserID, SessionOpened(info.UserID, info.ConnID))
}

// Leave removes the session owning conn and emits session-closed. Unknown conns are
// ignored, so Leave may be called after a failed write already removed the session.
func (h *Hub) Leave(ctx context.Context, userID string, conn Conn) {
	if info, ok := h.remove(userID, conn); ok {
		h.Dispatch(ctx, userID, SessionClosed(userID, info.ConnID))
	}
}

func (h *Hub) remove(userID string, conn Conn) (ConnInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions[userID] {
		if s.conn != conn {
			continue
		}
		delete(h.sessions[userID], s)
		if len(h.sessions[userID]) == 0 {
			delete(h.sessions, userID)
		}
		return s.info, true
	}
	return ConnInfo{}, false
}

// SessionCount returns the number of live sessions of userID.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Publish writes ev to every live session of userID. Delivery is at most once; when the
// user has no session the event is dropped and ErrChannelUnavailable returned.
func (h *Hub) Publish(ctx context.Context, userID string, ev Event) error {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[userID]))
	for s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return apperrors.ErrChannelUnavailable
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return apperrors.Internal("encode realtime event", err)
	}

	delivered := 0
	for _, s := range targets {
		if err := s.write(payload); err != nil {
			jww.WARN.Printf("websocket write error user=%s conn=%s: %v", userID, s.info.ConnID, err)
			s.conn.Close()
			h.publishWSError(ctx, s.info, err)
			h.Leave(ctx, userID, s.conn)
			continue
		}
		delivered++
	}
	observability.IncWSEvent("outbound", string(ev.Kind))
	if delivered == 0 {
		return apperrors.ErrChannelUnavailable
	}
	return nil
}

// Subscription is a registered handler. Close releases it; calling Close more than once
// is safe.
type Subscription struct {
	hub  *Hub
	kind Kind
	once sync.Once
}

// Close unregisters the handler.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		delete(s.hub.handlers[s.kind], s)
		if len(s.hub.handlers[s.kind]) == 0 {
			delete(s.hub.handlers, s.kind)
		}
	})
}

// Subscribe registers handler for events of kind and returns its handle.
func (h *Hub) Subscribe(kind Kind, handler Handler) *Subscription {
	sub := &Subscription{hub: h, kind: kind}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[kind]; !ok {
		h.handlers[kind] = make(map[*Subscription]Handler)
	}
	h.handlers[kind][sub] = handler
	return sub
}

// Dispatch runs the handlers subscribed to ev.Kind synchronously.
func (h *Hub) Dispatch(ctx context.Context, userID string, ev Event) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.handlers[ev.Kind]))
	for _, fn := range h.handlers[ev.Kind] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, userID, ev)
	}
}

func (h *Hub) publishWSError(ctx context.Context, info ConnInfo, err error) {
	info.publishSession(ctx, "ws_error", err.Error())
}
