package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/apperrors"
	"crewlink/internal/models"
	"crewlink/internal/observability"
	"crewlink/internal/repositories"
	"crewlink/internal/ws"
)

// Broker routing keys for delivery jobs handled by the external email and push workers.
const (
	RoutingKeyEmail = "notifications.email"
	RoutingKeyPush  = "notifications.push"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RealtimeBus pushes events to the live sessions of a user.
type RealtimeBus interface {
	Publish(ctx context.Context, userID string, ev ws.Event) error
}

// JobPublisher hands delivery jobs to the broker.
type JobPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NotificationRouter turns domain events into notification records.
type NotificationRouter interface {
	Route(ctx context.Context, ev DomainEvent) (models.Notification, error)
}

// DomainEvent is something a user should be told about. Title and Message may be left
// empty for connection events; they are then worded from the actor's profile.
type DomainEvent struct {
	Type        models.NotificationType
	RecipientID string
	ActorID     string
	Title       string
	Message     string
	Data        map[string]any
}

// DeliveryJob is the broker message consumed by the email and push workers.
type DeliveryJob struct {
	NotificationID string                  `json:"notification_id"`
	UserID         string                  `json:"user_id"`
	Type           models.NotificationType `json:"type"`
	Channel        string                  `json:"channel"`
	Title          string                  `json:"title"`
	Message        string                  `json:"message"`
	Data           types.JSONText          `json:"data"`
	CreatedAt      time.Time               `json:"created_at"`
}

// NotificationService persists notifications and fans them out to the enabled channels.
type NotificationService struct {
	notifications repositories.NotificationRepository
	preferences   repositories.PreferenceRepository
	profiles      repositories.ProfileRepository
	bus           RealtimeBus
	jobs          JobPublisher
	now           func() time.Time
}

// NewNotificationService wires a NotificationService.
func NewNotificationService(
	notifications repositories.NotificationRepository,
	preferences repositories.PreferenceRepository,
	profiles repositories.ProfileRepository,
	bus RealtimeBus,
	jobs JobPublisher,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		preferences:   preferences,
		profiles:      profiles,
		bus:           bus,
		jobs:          jobs,
		now:           utcNow,
	}
}

// Route stores a record for the recipient, then signals it live and queues email or
// push delivery according to the recipient's preference for the event type.
func (s *NotificationService) Route(ctx context.Context, ev DomainEvent) (models.Notification, error) {
	if !ev.Type.Valid() {
		return models.Notification{}, apperrors.InvalidArg(fmt.Sprintf("unknown notification type %q", ev.Type))
	}
	if ev.RecipientID == "" {
		return models.Notification{}, apperrors.InvalidArg("notification recipient is required")
	}

	pref, err := s.preference(ctx, ev.RecipientID, ev.Type)
	if err != nil {
		return models.Notification{}, err
	}

	data := types.JSONText("{}")
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return models.Notification{}, apperrors.InvalidArg("notification data is not valid JSON")
		}
		data = raw
	}

	title, message := ev.Title, ev.Message
	if title == "" || message == "" {
		defTitle, defMessage := s.describe(ctx, ev)
		if title == "" {
			title = defTitle
		}
		if message == "" {
			message = defMessage
		}
	}

	now := s.now()
	n := models.Notification{
		ID:          uuid.NewString(),
		UserID:      ev.RecipientID,
		Type:        ev.Type,
		Title:       title,
		Message:     message,
		Data:        data,
		EmailQueued: pref.EmailEnabled,
		PushQueued:  pref.PushEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return models.Notification{}, apperrors.Internal("failed to store notification", err)
	}
	observability.IncNotificationRouted(string(n.Type), "record")

	if pref.InAppEnabled {
		err := s.bus.Publish(ctx, n.UserID, ws.RealtimeNotification(n))
		switch {
		case err == nil:
			observability.IncNotificationRouted(string(n.Type), "in_app")
		case !errors.Is(err, apperrors.ErrChannelUnavailable):
			jww.WARN.Printf("realtime notification failed user=%s id=%s: %v", n.UserID, n.ID, err)
		}
	}
	if pref.EmailEnabled {
		s.enqueue(ctx, RoutingKeyEmail, "email", n)
	}
	if pref.PushEnabled {
		s.enqueue(ctx, RoutingKeyPush, "push", n)
	}
	return n, nil
}

func (s *NotificationService) enqueue(ctx context.Context, routingKey, channel string, n models.Notification) {
	job := DeliveryJob{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Channel:        channel,
		Title:          n.Title,
		Message:        n.Message,
		Data:           n.Data,
		CreatedAt:      n.CreatedAt,
	}
	if err := s.jobs.Publish(ctx, routingKey, job); err != nil {
		observability.IncAMQPPublishError()
		jww.ERROR.Printf("delivery job publish failed channel=%s id=%s: %v", channel, n.ID, err)
		return
	}
	observability.IncNotificationRouted(string(n.Type), channel)
}

func (s *NotificationService) describe(ctx context.Context, ev DomainEvent) (title, message string) {
	actor := "A crew member"
	if ev.ActorID != "" {
		profiles, err := s.profiles.GetProfiles(ctx, []string{ev.ActorID})
		if err != nil {
			jww.WARN.Printf("notification actor lookup failed actor=%s: %v", ev.ActorID, err)
		} else if p, ok := profiles[ev.ActorID]; ok && p.DisplayName != "" {
			actor = p.DisplayName
		}
	}

	switch ev.Type {
	case models.NotifyConnectionRequest:
		return "New connection request", actor + " wants to connect with you"
	case models.NotifyConnectionAccepted:
		return "Connection accepted", actor + " accepted your connection request"
	case models.NotifyConnectionDeclined:
		return "Connection request declined", actor + " declined your connection request"
	case models.NotifyMessage:
		return "New message from " + actor, actor + " sent you a message"
	}
	return string(ev.Type), ""
}

func (s *NotificationService) preference(ctx context.Context, userID string, t models.NotificationType) (models.NotificationPreference, error) {
	pref, err := s.preferences.Get(ctx, userID, t)
	if errors.Is(err, repositories.ErrPreferenceNotFound) {
		return models.DefaultPreference(userID, t), nil
	}
	if err != nil {
		return models.NotificationPreference{}, apperrors.Internal("failed to load notification preference", err)
	}
	return pref, nil
}

// List returns one page of the user's notifications, newest first. page starts at 1.
func (s *NotificationService) List(ctx context.Context, userID string, page, limit int, unreadOnly bool) (models.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	total, err := s.notifications.Count(ctx, userID, unreadOnly)
	if err != nil {
		return models.NotificationPage{}, apperrors.Internal("failed to count notifications", err)
	}
	items, err := s.notifications.List(ctx, userID, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return models.NotificationPage{}, apperrors.Internal("failed to load notifications", err)
	}

	return models.NotificationPage{
		Notifications: items,
		Pagination: models.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.Count(ctx, userID, true)
	if err != nil {
		return 0, apperrors.Internal("failed to count notifications", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Notifications of other users look missing.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	ok, err := s.notifications.MarkRead(ctx, notificationID, userID, s.now())
	if err != nil {
		return apperrors.Internal("failed to update notification", err)
	}
	if !ok {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read and returns how many.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperrors.Internal("failed to update notifications", err)
	}
	return n, nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, notificationID, userID string) error {
	ok, err := s.notifications.Delete(ctx, notificationID, userID)
	if err != nil {
		return apperrors.Internal("failed to delete notification", err)
	}
	if !ok {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// Preferences returns the user's preference for every type, defaults filled in.
func (s *NotificationService) Preferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	stored, err := s.preferences.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load notification preferences", err)
	}
	byType := make(map[models.NotificationType]models.NotificationPreference, len(stored))
	for _, p := range stored {
		byType[p.Type] = p
	}

	prefs := make([]models.NotificationPreference, 0, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		if p, ok := byType[t]; ok {
			prefs = append(prefs, p)
			continue
		}
		prefs = append(prefs, models.DefaultPreference(userID, t))
	}
	return prefs, nil
}

// UpdatePreferences applies partial updates. Unknown types reject the whole batch.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, updates []models.PreferenceUpdate) ([]models.NotificationPreference, error) {
	for _, u := range updates {
		if !u.Type.Valid() {
			return nil, apperrors.InvalidArg(fmt.Sprintf("unknown notification type %q", u.Type))
		}
	}

	now := s.now()
	for _, u := range updates {
		current, err := s.preference(ctx, userID, u.Type)
		if err != nil {
			return nil, err
		}
		next := u.Apply(current)
		if next.CreatedAt == nil {
			next.CreatedAt = &now
		}
		next.UpdatedAt = &now
		if err := s.preferences.Upsert(ctx, next); err != nil {
			return nil, apperrors.Internal("failed to save notification preference", err)
		}
	}
	return s.Preferences(ctx, userID)
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
