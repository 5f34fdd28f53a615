package services

import (
	"context"
	"errors"

	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/apperrors"
	"crewlink/internal/models"
	"crewlink/internal/ws"
)

// EventSource delivers inbound client events and session lifecycle events.
type EventSource interface {
	Subscribe(kind ws.Kind, handler ws.Handler) *ws.Subscription
}

// RealtimeBindings routes events arriving from websocket sessions to the presence
// tracker and chat store.
type RealtimeBindings struct {
	bus         RealtimeBus
	presence    *PresenceTracker
	chat        *ChatService
	connections ConnectionChecker
	subs        []*ws.Subscription
}

// BindRealtime subscribes to every event the services consume. Close releases them.
func BindRealtime(src EventSource, bus RealtimeBus, presence *PresenceTracker, chat *ChatService, connections ConnectionChecker) *RealtimeBindings {
	b := &RealtimeBindings{bus: bus, presence: presence, chat: chat, connections: connections}
	b.subs = []*ws.Subscription{
		src.Subscribe(ws.KindSessionOpened, b.onSessionOpened),
		src.Subscribe(ws.KindSessionClosed, b.onSessionClosed),
		src.Subscribe(ws.KindTypingStart, b.onTyping),
		src.Subscribe(ws.KindTypingStop, b.onTyping),
		src.Subscribe(ws.KindMessageStatusUpdate, b.onStatusUpdate),
	}
	return b
}

// Close releases all subscriptions.
func (b *RealtimeBindings) Close() {
	for _, sub := range b.subs {
		sub.Close()
	}
}

func (b *RealtimeBindings) onSessionOpened(_ context.Context, userID string, _ ws.Event) {
	b.presence.MarkOnline(userID)
}

func (b *RealtimeBindings) onSessionClosed(ctx context.Context, userID string, _ ws.Event) {
	room := b.presence.MarkOffline(userID)
	if room == "" {
		return
	}
	if peer, ok := models.RoomPeer(room, userID); ok {
		b.publish(ctx, peer, ws.UserTyping(userID, room, false))
	}
}

func (b *RealtimeBindings) onTyping(ctx context.Context, userID string, ev ws.Event) {
	p, ok := ev.Payload.(ws.TypingPayload)
	if !ok || p.ReceiverID == "" || p.ReceiverID == userID {
		return
	}
	connected, err := b.connections.IsConnected(ctx, userID, p.ReceiverID)
	if err != nil || !connected {
		return
	}

	isTyping := ev.Kind == ws.KindTypingStart
	room := models.RoomID(userID, p.ReceiverID)
	b.presence.SetTyping(userID, room, isTyping)
	b.publish(ctx, p.ReceiverID, ws.UserTyping(userID, room, isTyping))
}

func (b *RealtimeBindings) onStatusUpdate(ctx context.Context, userID string, ev ws.Event) {
	p, ok := ev.Payload.(ws.StatusUpdatePayload)
	if !ok {
		return
	}
	if _, err := b.chat.UpdateStatus(ctx, userID, p.MessageID, p.Status); err != nil {
		jww.DEBUG.Printf("ws status update rejected user=%s message=%s: %v", userID, p.MessageID, err)
	}
}

func (b *RealtimeBindings) publish(ctx context.Context, userID string, ev ws.Event) {
	if err := b.bus.Publish(ctx, userID, ev); err != nil && !errors.Is(err, apperrors.ErrChannelUnavailable) {
		jww.WARN.Printf("realtime %s to %s failed: %v", ev.Kind, userID, err)
	}
}
