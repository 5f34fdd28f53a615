package models

import "time"

// RequestStatus is the persisted state of a connection request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// RespondAction is what the receiver decides to do with a pending request.
type RespondAction string

const (
	ActionAccept  RespondAction = "accept"
	ActionDecline RespondAction = "decline"
)

// Valid reports whether the action is one of accept or decline.
func (a RespondAction) Valid() bool {
	return a == ActionAccept || a == ActionDecline
}

// ConnectionStatus is the relationship between two users as seen by one of them.
type ConnectionStatus string

const (
	StatusNone            ConnectionStatus = "none"
	StatusPendingOutgoing ConnectionStatus = "pending-outgoing"
	StatusPendingIncoming ConnectionStatus = "pending-incoming"
	StatusConnected       ConnectionStatus = "connected"
	StatusDeclined        ConnectionStatus = "declined"
)

// ConnectionRequest is one attempt by SenderID to connect with ReceiverID.
type ConnectionRequest struct {
	ID          string        `db:"id" json:"id"`
	SenderID    string        `db:"sender_id" json:"sender_id"`
	ReceiverID  string        `db:"receiver_id" json:"receiver_id"`
	UserLow     string        `db:"user_low" json:"-"`
	UserHigh    string        `db:"user_high" json:"-"`
	Message     *string       `db:"message" json:"message,omitempty"`
	Status      RequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	RespondedAt *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
}

// StatusFor derives the relationship status from the point of view of userID.
func (r ConnectionRequest) StatusFor(userID string) ConnectionStatus {
	switch r.Status {
	case RequestAccepted:
		return StatusConnected
	case RequestDeclined:
		return StatusDeclined
	case RequestPending:
		if r.SenderID == userID {
			return StatusPendingOutgoing
		}
		return StatusPendingIncoming
	}
	return StatusNone
}

// Counterpart returns the other member of the request.
func (r ConnectionRequest) Counterpart(userID string) string {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// RequestView is a request enriched with the counterpart's profile for listings.
type RequestView struct {
	ConnectionRequest
	Profile
}

// ConnectionView is an accepted connection from one member's point of view.
type ConnectionView struct {
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	RoomID      string    `json:"room_id"`
	Profile
}

// OrderedPair returns the two ids sorted ascending.
func OrderedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
