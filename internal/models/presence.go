package models

import "time"

// PresenceState is the ephemeral online and typing state of a user.
type PresenceState struct {
	UserID       string     `json:"user_id"`
	IsOnline     bool       `json:"is_online"`
	LastSeenAt   *time.Time `json:"last_seen,omitempty"`
	TypingInRoom string     `json:"typing_in_room,omitempty"`
}
