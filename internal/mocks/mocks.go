package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"crewlink/internal/models"
	"crewlink/internal/repositories"
)

type ConnectionRepositoryMock struct {
	mock.Mock
}

func (m *ConnectionRepositoryMock) CreateRequest(ctx context.Context, req models.ConnectionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) GetRequest(ctx context.Context, requestID string) (models.ConnectionRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionRepositoryMock) FindActive(ctx context.Context, userID, otherUserID string) (models.ConnectionRequest, error) {
	args := m.Called(ctx, userID, otherUserID)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionRepositoryMock) Latest(ctx context.Context, userID, otherUserID string) (models.ConnectionRequest, error) {
	args := m.Called(ctx, userID, otherUserID)
	var req models.ConnectionRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ConnectionRequest)
	}
	return req, args.Error(1)
}

func (m *ConnectionRepositoryMock) ResolvePending(ctx context.Context, requestID, receiverID string, status models.RequestStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, requestID, receiverID, status, at)
	return args.Bool(0), args.Error(1)
}

func (m *ConnectionRepositoryMock) ListIncomingPending(ctx context.Context, userID string) ([]models.RequestView, error) {
	args := m.Called(ctx, userID)
	var list []models.RequestView
	if val := args.Get(0); val != nil {
		list = val.([]models.RequestView)
	}
	return list, args.Error(1)
}

func (m *ConnectionRepositoryMock) ListOutgoingPending(ctx context.Context, userID string) ([]models.RequestView, error) {
	args := m.Called(ctx, userID)
	var list []models.RequestView
	if val := args.Get(0); val != nil {
		list = val.([]models.RequestView)
	}
	return list, args.Error(1)
}

func (m *ConnectionRepositoryMock) ListAccepted(ctx context.Context, userID string) ([]models.RequestView, error) {
	args := m.Called(ctx, userID)
	var list []models.RequestView
	if val := args.Get(0); val != nil {
		list = val.([]models.RequestView)
	}
	return list, args.Error(1)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *ChatRepositoryMock) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.RoomSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.RoomSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, bool, error) {
	args := m.Called(ctx, msg)
	var stored models.ChatMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.ChatMessage)
	}
	return stored, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) AdvanceStatus(ctx context.Context, messageID string, status models.MessageStatus) (bool, error) {
	args := m.Called(ctx, messageID, status)
	return args.Bool(0), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) Get(ctx context.Context, notificationID string) (models.Notification, error) {
	args := m.Called(ctx, notificationID)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationRepositoryMock) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	args := m.Called(ctx, userID, unreadOnly)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, notificationID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	args := m.Called(ctx, userID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) Delete(ctx context.Context, notificationID, userID string) (bool, error) {
	args := m.Called(ctx, notificationID, userID)
	return args.Bool(0), args.Error(1)
}

type PreferenceRepositoryMock struct {
	mock.Mock
}

func (m *PreferenceRepositoryMock) Get(ctx context.Context, userID string, notificationType models.NotificationType) (models.NotificationPreference, error) {
	args := m.Called(ctx, userID, notificationType)
	var pref models.NotificationPreference
	if val := args.Get(0); val != nil {
		pref = val.(models.NotificationPreference)
	}
	return pref, args.Error(1)
}

func (m *PreferenceRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	var list []models.NotificationPreference
	if val := args.Get(0); val != nil {
		list = val.([]models.NotificationPreference)
	}
	return list, args.Error(1)
}

func (m *PreferenceRepositoryMock) Upsert(ctx context.Context, pref models.NotificationPreference) error {
	args := m.Called(ctx, pref)
	return args.Error(0)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	args := m.Called(ctx, userIDs)
	var profiles map[string]models.Profile
	if val := args.Get(0); val != nil {
		profiles = val.(map[string]models.Profile)
	}
	return profiles, args.Error(1)
}

func (m *ProfileRepositoryMock) UpsertProfile(ctx context.Context, profile models.ProfileRecord) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

var (
	_ repositories.ConnectionRepository   = (*ConnectionRepositoryMock)(nil)
	_ repositories.ChatRepository         = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
	_ repositories.PreferenceRepository   = (*PreferenceRepositoryMock)(nil)
	_ repositories.ProfileRepository      = (*ProfileRepositoryMock)(nil)
)
