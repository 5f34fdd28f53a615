package ws

import (
	"encoding/json"
	"fmt"

	"crewlink/internal/models"
)

// Kind names a realtime event. The set is closed: Decode rejects anything else.
type Kind string

const (
	KindTypingStart          Kind = "typing-start"
	KindTypingStop           Kind = "typing-stop"
	KindUserTyping           Kind = "user-typing"
	KindNewMessage           Kind = "new-message"
	KindMessageStatusUpdate  Kind = "message-status-update"
	KindRealtimeNotification Kind = "realtime-notification"
	KindSessionOpened        Kind = "session-opened"
	KindSessionClosed        Kind = "session-closed"
)

// Inbound reports whether clients may send events of this kind.
func (k Kind) Inbound() bool {
	switch k {
	case KindTypingStart, KindTypingStop, KindMessageStatusUpdate:
		return true
	}
	return false
}

// TypingPayload is sent by a client while its user types to receiver.
type TypingPayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// UserTypingPayload tells a client that the other member of a room is typing.
type UserTypingPayload struct {
	UserID   string `json:"user_id"`
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// NewMessagePayload carries a persisted message.
type NewMessagePayload struct {
	Message models.ChatMessage `json:"message"`
}

// StatusUpdatePayload moves a message to a new status. RoomID is optional inbound.
type StatusUpdatePayload struct {
	MessageID string               `json:"message_id"`
	RoomID    string               `json:"room_id,omitempty"`
	Status    models.MessageStatus `json:"status"`
}

// NotificationPayload carries a routed notification record for live display.
type NotificationPayload struct {
	Notification models.Notification `json:"notification"`
}

// SessionPayload describes a websocket session that opened or closed.
type SessionPayload struct {
	UserID string `json:"user_id"`
	ConnID string `json:"conn_id"`
}

// Event is one realtime frame. Payload always holds the struct matching Kind; build
// events with the constructors below.
type Event struct {
	Kind    Kind
	Payload any
}

type wireEvent struct {
	Kind    Kind            `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// TypingStart is sent by a client when its user starts typing to receiverID.
func TypingStart(senderID, receiverID string) Event {
	return Event{Kind: KindTypingStart, Payload: TypingPayload{SenderID: senderID, ReceiverID: receiverID}}
}

// TypingStop is sent by a client when its user stops typing to receiverID.
func TypingStop(senderID, receiverID string) Event {
	return Event{Kind: KindTypingStop, Payload: TypingPayload{SenderID: senderID, ReceiverID: receiverID}}
}

// UserTyping tells a user that userID started or stopped typing in roomID.
func UserTyping(userID, roomID string, isTyping bool) Event {
	return Event{Kind: KindUserTyping, Payload: UserTypingPayload{UserID: userID, RoomID: roomID, IsTyping: isTyping}}
}

// NewMessage carries a freshly stored message to both participants.
func NewMessage(msg models.ChatMessage) Event {
	return Event{Kind: KindNewMessage, Payload: NewMessagePayload{Message: msg}}
}

// MessageStatusUpdate tells the sender that a message moved forward.
func MessageStatusUpdate(messageID, roomID string, status models.MessageStatus) Event {
	return Event{Kind: KindMessageStatusUpdate, Payload: StatusUpdatePayload{MessageID: messageID, RoomID: roomID, Status: status}}
}

// RealtimeNotification pushes a stored notification to its recipient.
func RealtimeNotification(n models.Notification) Event {
	return Event{Kind: KindRealtimeNotification, Payload: NotificationPayload{Notification: n}}
}

// SessionOpened is dispatched by the hub when a websocket session joins.
func SessionOpened(userID, connID string) Event {
	return Event{Kind: KindSessionOpened, Payload: SessionPayload{UserID: userID, ConnID: connID}}
}

// SessionClosed is dispatched by the hub when a websocket session leaves.
func SessionClosed(userID, connID string) Event {
	return Event{Kind: KindSessionClosed, Payload: SessionPayload{UserID: userID, ConnID: connID}}
}

// MarshalJSON encodes the event as {"event": kind, "payload": {...}}.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Kind: e.Kind, Payload: payload})
}

// UnmarshalJSON is the inverse of MarshalJSON and fails on unknown kinds.
func (e *Event) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// Decode parses a frame into an Event with a typed payload.
func Decode(data []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	var (
		payload any
		err     error
	)
	switch wire.Kind {
	case KindTypingStart, KindTypingStop:
		payload, err = decodePayload[TypingPayload](wire.Payload)
	case KindUserTyping:
		payload, err = decodePayload[UserTypingPayload](wire.Payload)
	case KindNewMessage:
		payload, err = decodePayload[NewMessagePayload](wire.Payload)
	case KindMessageStatusUpdate:
		payload, err = decodePayload[StatusUpdatePayload](wire.Payload)
	case KindRealtimeNotification:
		payload, err = decodePayload[NotificationPayload](wire.Payload)
	case KindSessionOpened, KindSessionClosed:
		payload, err = decodePayload[SessionPayload](wire.Payload)
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", wire.Kind)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", wire.Kind, err)
	}
	return Event{Kind: wire.Kind, Payload: payload}, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
