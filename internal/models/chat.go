package models

import (
	"strings"
	"time"
)

const roomPrefix = "room_"

// ChatRoom is the single conversation between two connected users.
type ChatRoom struct {
	RoomID              string         `db:"room_id" json:"room_id"`
	Participant1ID      string         `db:"participant1_id" json:"participant1_id"`
	Participant2ID      string         `db:"participant2_id" json:"participant2_id"`
	LastMessageID       *string        `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageContent  *string        `db:"last_message_content" json:"last_message_content,omitempty"`
	LastMessageSenderID *string        `db:"last_message_sender_id" json:"last_message_sender_id,omitempty"`
	LastMessageStatus   *MessageStatus `db:"last_message_status" json:"last_message_status,omitempty"`
	LastMessageAt       *time.Time     `db:"last_message_at" json:"last_message_time,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two room members.
func (r ChatRoom) HasParticipant(userID string) bool {
	return r.Participant1ID == userID || r.Participant2ID == userID
}

// OtherParticipant returns the member that is not userID.
func (r ChatRoom) OtherParticipant(userID string) string {
	if r.Participant1ID == userID {
		return r.Participant2ID
	}
	return r.Participant1ID
}

// RoomSummary is a ChatRoom row plus the caller's unread count.
type RoomSummary struct {
	ChatRoom
	UnreadCount int `db:"unread_count" json:"unread_count"`
}

// RoomView is what the room list returns to a user.
type RoomView struct {
	RoomSummary
	OtherUserID       string     `json:"other_user_id"`
	OtherUserName     string     `json:"other_user_name,omitempty"`
	OtherUserAvatar   string     `json:"other_user_avatar,omitempty"`
	OtherUserOnline   bool       `json:"other_user_online"`
	OtherUserLastSeen *time.Time `json:"other_user_last_seen,omitempty"`
}

// Ids are escaped inside room ids so the "_" separator never occurs within one.
var (
	roomIDEscaper   = strings.NewReplacer("%", "%25", "_", "%5F")
	roomIDUnescaper = strings.NewReplacer("%5F", "_", "%25", "%")
)

// RoomID derives the room identifier of a pair so both clients compute the same id.
// Distinct pairs always get distinct ids, whatever characters the user ids contain.
func RoomID(a, b string) string {
	low, high := OrderedPair(a, b)
	return roomPrefix + roomIDEscaper.Replace(low) + "_" + roomIDEscaper.Replace(high)
}

// RoomMembers recovers the pair roomID was derived from. ok is false for ids RoomID
// would not produce.
func RoomMembers(roomID string) (low, high string, ok bool) {
	rest, found := strings.CutPrefix(roomID, roomPrefix)
	if !found {
		return "", "", false
	}
	first, second, found := strings.Cut(rest, "_")
	if !found || strings.Contains(second, "_") {
		return "", "", false
	}
	low, high = roomIDUnescaper.Replace(first), roomIDUnescaper.Replace(second)
	if RoomID(low, high) != roomID {
		return "", "", false
	}
	return low, high, true
}

// RoomIncludes reports whether roomID is the derived id of a pair containing userID.
func RoomIncludes(roomID, userID string) bool {
	_, ok := RoomPeer(roomID, userID)
	return ok
}

// RoomPeer returns the member of roomID that is not userID. ok is false when roomID is
// not the derived id of a pair containing userID.
func RoomPeer(roomID, userID string) (peer string, ok bool) {
	low, high, ok := RoomMembers(roomID)
	switch {
	case !ok:
		return "", false
	case low == userID:
		return high, true
	case high == userID:
		return low, true
	}
	return "", false
}
