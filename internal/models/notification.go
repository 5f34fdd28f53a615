package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType is the closed set of routed domain events.
type NotificationType string

const (
	NotifyConnectionRequest  NotificationType = "connection_request"
	NotifyConnectionAccepted NotificationType = "connection_accepted"
	NotifyConnectionDeclined NotificationType = "connection_declined"
	NotifyMessage            NotificationType = "message"
	NotifySystem             NotificationType = "system"
	NotifyAssignment         NotificationType = "assignment"
	NotifyPortConnection     NotificationType = "port_connection"
	NotifyModeration         NotificationType = "moderation"
)

// NotificationTypes lists every type in display order.
var NotificationTypes = []NotificationType{
	NotifyConnectionRequest,
	NotifyConnectionAccepted,
	NotifyConnectionDeclined,
	NotifyMessage,
	NotifySystem,
	NotifyAssignment,
	NotifyPortConnection,
	NotifyModeration,
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	_, ok := defaultPreferences[t]
	return ok
}

// Notification is a durable per-recipient notification record.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Data        types.JSONText   `db:"data" json:"data"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	EmailQueued bool             `db:"email_queued" json:"-"`
	PushQueued  bool             `db:"push_queued" json:"-"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// NotificationPreference controls delivery channels for one type.
type NotificationPreference struct {
	UserID       string           `db:"user_id" json:"-"`
	Type         NotificationType `db:"type" json:"type"`
	EmailEnabled bool             `db:"email_enabled" json:"email_enabled"`
	PushEnabled  bool             `db:"push_enabled" json:"push_enabled"`
	InAppEnabled bool             `db:"in_app_enabled" json:"in_app_enabled"`
	CreatedAt    *time.Time       `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt    *time.Time       `db:"updated_at" json:"updated_at,omitempty"`
}

// PreferenceUpdate is a partial change to one type's channels.
type PreferenceUpdate struct {
	Type         NotificationType `json:"type"`
	EmailEnabled *bool            `json:"email_enabled,omitempty"`
	PushEnabled  *bool            `json:"push_enabled,omitempty"`
	InAppEnabled *bool            `json:"in_app_enabled,omitempty"`
}

// Apply returns p with the non-nil fields of u applied.
func (u PreferenceUpdate) Apply(p NotificationPreference) NotificationPreference {
	if u.EmailEnabled != nil {
		p.EmailEnabled = *u.EmailEnabled
	}
	if u.PushEnabled != nil {
		p.PushEnabled = *u.PushEnabled
	}
	if u.InAppEnabled != nil {
		p.InAppEnabled = *u.InAppEnabled
	}
	return p
}

type channels struct{ email, push, inApp bool }

var defaultPreferences = map[NotificationType]channels{
	NotifyConnectionRequest:  {email: true, push: true, inApp: true},
	NotifyConnectionAccepted: {email: true, push: true, inApp: true},
	NotifyConnectionDeclined: {email: false, push: true, inApp: true},
	NotifyMessage:            {email: false, push: true, inApp: true},
	NotifySystem:             {email: true, push: true, inApp: true},
	NotifyAssignment:         {email: true, push: true, inApp: true},
	NotifyPortConnection:     {email: false, push: true, inApp: true},
	NotifyModeration:         {email: true, push: true, inApp: true},
}

// DefaultPreference is the preference used when a user has not stored one for t.
func DefaultPreference(userID string, t NotificationType) NotificationPreference {
	ch := defaultPreferences[t]
	return NotificationPreference{
		UserID:       userID,
		Type:         t,
		EmailEnabled: ch.email,
		PushEnabled:  ch.push,
		InAppEnabled: ch.inApp,
	}
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Pagination    Pagination     `json:"pagination"`
}

// Pagination mirrors the page metadata returned with list endpoints.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}
