package models

import "time"

// MessageStatus moves forward only: sent, delivered, read.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Rank orders statuses; unknown statuses rank zero.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

// MessageType is the kind of content carried by a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}

// ChatMessage represents a direct message inside a room.
type ChatMessage struct {
	ID              string        `db:"id" json:"id"`
	RoomID          string        `db:"room_id" json:"room_id"`
	SenderID        string        `db:"sender_id" json:"sender_id"`
	ReceiverID      string        `db:"receiver_id" json:"receiver_id"`
	Content         string        `db:"content" json:"content"`
	MessageType     MessageType   `db:"message_type" json:"message_type"`
	Status          MessageStatus `db:"status" json:"status"`
	ClientMessageID *string       `db:"client_message_id" json:"client_message_id,omitempty"`
	Timestamp       time.Time     `db:"created_at" json:"timestamp"`
}

// Before reports whether m sorts before other in room order (timestamp, then id).
func (m ChatMessage) Before(other ChatMessage) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.ID < other.ID
}
