package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/apperrors"
	"crewlink/internal/models"
	"crewlink/internal/observability"
	"crewlink/internal/repositories"
	"crewlink/internal/ws"
)

const previewRunes = 100

// PresenceReader exposes the presence of other users to the room list.
type PresenceReader interface {
	Status(userID string) models.PresenceState
}

// SendMessageInput is a message as submitted by its sender. ClientMessageID is an
// optional idempotency key, unique per sender.
type SendMessageInput struct {
	SenderID        string
	ReceiverID      string
	Content         string
	MessageType     models.MessageType
	ClientMessageID string
}

// ChatService stores direct messages between connected users.
type ChatService struct {
	rooms       repositories.ChatRepository
	messages    repositories.MessageRepository
	profiles    repositories.ProfileRepository
	connections ConnectionChecker
	presence    PresenceReader
	bus         RealtimeBus
	router      NotificationRouter
	now         func() time.Time
}

// NewChatService wires a ChatService.
func NewChatService(
	rooms repositories.ChatRepository,
	messages repositories.MessageRepository,
	profiles repositories.ProfileRepository,
	connections ConnectionChecker,
	presence PresenceReader,
	bus RealtimeBus,
	router NotificationRouter,
) *ChatService {
	return &ChatService{
		rooms:       rooms,
		messages:    messages,
		profiles:    profiles,
		connections: connections,
		presence:    presence,
		bus:         bus,
		router:      router,
		now:         utcNow,
	}
}

// ListRooms returns the user's rooms by last activity with the other member's profile
// and presence.
func (s *ChatService) ListRooms(ctx context.Context, userID string) ([]models.RoomView, error) {
	summaries, err := s.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load chat rooms", err)
	}

	others := make([]string, 0, len(summaries))
	for _, room := range summaries {
		others = append(others, room.OtherParticipant(userID))
	}
	profiles, err := s.profiles.GetProfiles(ctx, others)
	if err != nil {
		// rooms are still usable without display names
		jww.WARN.Printf("room list profile lookup failed user=%s: %v", userID, err)
		profiles = map[string]models.Profile{}
	}

	views := make([]models.RoomView, 0, len(summaries))
	for _, room := range summaries {
		other := room.OtherParticipant(userID)
		presence := s.presence.Status(other)
		profile := profiles[other]
		views = append(views, models.RoomView{
			RoomSummary:       room,
			OtherUserID:       other,
			OtherUserName:     profile.DisplayName,
			OtherUserAvatar:   profile.AvatarURL,
			OtherUserOnline:   presence.IsOnline,
			OtherUserLastSeen: presence.LastSeenAt,
		})
	}
	return views, nil
}

// ListMessages returns the ordered messages of roomID. A room that has no messages yet
// but belongs to userID's pair reads as empty.
func (s *ChatService) ListMessages(ctx context.Context, roomID, userID string) ([]models.ChatMessage, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	switch {
	case errors.Is(err, repositories.ErrRoomNotFound):
		if !models.RoomIncludes(roomID, userID) {
			return nil, apperrors.ErrRoomForbidden
		}
		return []models.ChatMessage{}, nil
	case err != nil:
		return nil, apperrors.Internal("failed to load chat room", err)
	case !room.HasParticipant(userID):
		return nil, apperrors.ErrRoomForbidden
	}

	msgs, err := s.messages.ListRoomMessages(ctx, roomID)
	if err != nil {
		return nil, apperrors.Internal("failed to load messages", err)
	}
	return msgs, nil
}

// ConversationWith lists the messages between userID and otherUserID.
func (s *ChatService) ConversationWith(ctx context.Context, userID, otherUserID string) ([]models.ChatMessage, error) {
	if otherUserID == "" || otherUserID == userID {
		return nil, apperrors.InvalidArg("other user id must name someone else")
	}
	return s.ListMessages(ctx, models.RoomID(userID, otherUserID), userID)
}

// SendMessage persists a message between connected users, then pushes it to both and
// notifies the receiver. A retry carrying a known ClientMessageID returns the stored
// message without side effects.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (models.ChatMessage, error) {
	if strings.TrimSpace(in.Content) == "" {
		return models.ChatMessage{}, apperrors.InvalidArg("message content is required")
	}
	if in.ReceiverID == "" || in.ReceiverID == in.SenderID {
		return models.ChatMessage{}, apperrors.InvalidArg("receiver must be another crew member")
	}
	if in.MessageType == "" {
		in.MessageType = models.MessageText
	}
	if !in.MessageType.Valid() {
		return models.ChatMessage{}, apperrors.InvalidArg("message_type must be text, image or file")
	}

	connected, err := s.connections.IsConnected(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if !connected {
		return models.ChatMessage{}, apperrors.ErrNotConnected
	}

	msg := models.ChatMessage{
		ID:          uuid.NewString(),
		RoomID:      models.RoomID(in.SenderID, in.ReceiverID),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     in.Content,
		MessageType: in.MessageType,
		Status:      models.MessageSent,
		Timestamp:   s.now(),
	}
	if in.ClientMessageID != "" {
		clientID := in.ClientMessageID
		msg.ClientMessageID = &clientID
	}

	stored, created, err := s.messages.AppendMessage(ctx, msg)
	if err != nil {
		return models.ChatMessage{}, apperrors.Internal("failed to store message", err)
	}
	if !created {
		return stored, nil
	}
	observability.IncMessageSent(string(stored.MessageType))

	event := ws.NewMessage(stored)
	s.publish(ctx, stored.ReceiverID, event)
	s.publish(ctx, stored.SenderID, event)

	if _, err := s.router.Route(ctx, DomainEvent{
		Type:        models.NotifyMessage,
		RecipientID: stored.ReceiverID,
		ActorID:     stored.SenderID,
		Message:     preview(stored),
		Data: map[string]any{
			"room_id":    stored.RoomID,
			"message_id": stored.ID,
			"sender_id":  stored.SenderID,
		},
	}); err != nil {
		jww.ERROR.Printf("route message notification failed id=%s: %v", stored.ID, err)
	}
	return stored, nil
}

// UpdateStatus moves a message forward on behalf of its receiver and tells the sender.
// Setting the current status again is a no-op; moving backwards fails.
func (s *ChatService) UpdateStatus(ctx context.Context, actorID, messageID string, status models.MessageStatus) (models.ChatMessage, error) {
	if !status.Valid() {
		return models.ChatMessage{}, apperrors.InvalidArg("status must be sent, delivered or read")
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.ChatMessage{}, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, apperrors.Internal("failed to load message", err)
	}
	if msg.ReceiverID != actorID {
		return models.ChatMessage{}, apperrors.ErrStatusForbidden
	}

	switch {
	case status.Rank() < msg.Status.Rank():
		return models.ChatMessage{}, apperrors.ErrInvalidStatusTransition
	case status == msg.Status:
		return msg, nil
	}

	changed, err := s.messages.AdvanceStatus(ctx, messageID, status)
	if err != nil {
		return models.ChatMessage{}, apperrors.Internal("failed to update message status", err)
	}
	if !changed {
		// a concurrent update got there first
		current, err := s.messages.GetMessage(ctx, messageID)
		if err != nil {
			return models.ChatMessage{}, apperrors.Internal("failed to load message", err)
		}
		if current.Status.Rank() > status.Rank() {
			return models.ChatMessage{}, apperrors.ErrInvalidStatusTransition
		}
		return current, nil
	}

	msg.Status = status
	s.publish(ctx, msg.SenderID, ws.MessageStatusUpdate(msg.ID, msg.RoomID, msg.Status))
	return msg, nil
}

// UnreadCount is the number of incoming messages userID has not read, across all rooms.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.rooms.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count unread messages", err)
	}
	return count, nil
}

func (s *ChatService) publish(ctx context.Context, userID string, ev ws.Event) {
	if err := s.bus.Publish(ctx, userID, ev); err != nil && !errors.Is(err, apperrors.ErrChannelUnavailable) {
		jww.WARN.Printf("realtime %s to %s failed: %v", ev.Kind, userID, err)
	}
}

func preview(msg models.ChatMessage) string {
	if msg.MessageType != models.MessageText {
		return "Sent you a " + string(msg.MessageType)
	}
	if utf8.RuneCountInString(msg.Content) <= previewRunes {
		return msg.Content
	}
	return string([]rune(msg.Content)[:previewRunes]) + "…"
}
