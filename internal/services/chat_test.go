package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crewlink/internal/apperrors"
	"crewlink/internal/mocks"
	"crewlink/internal/models"
	"crewlink/internal/repositories"
	"crewlink/internal/ws"
)

type staticConnections map[string]bool

func (s staticConnections) IsConnected(_ context.Context, userID, otherUserID string) (bool, error) {
	return s[models.RoomID(userID, otherUserID)], nil
}

type chatDeps struct {
	rooms    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	profiles *mocks.ProfileRepositoryMock
	bus      *mocks.BusMock
	router   *recordingRouter
}

func newChatService(connected staticConnections) (*ChatService, chatDeps) {
	deps := chatDeps{
		rooms:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		profiles: new(mocks.ProfileRepositoryMock),
		bus:      new(mocks.BusMock),
		router:   &recordingRouter{},
	}
	svc := NewChatService(deps.rooms, deps.messages, deps.profiles, connected, NewPresenceTracker(0), deps.bus, deps.router)
	svc.now = func() time.Time { return fixedNow }
	return svc, deps
}

func TestSendMessageValidation(t *testing.T) {
	svc, deps := newChatService(staticConnections{"room_alice_bob": true})
	ctx := context.Background()

	cases := []SendMessageInput{
		{SenderID: "alice", ReceiverID: "bob", Content: "   \n\t"},
		{SenderID: "alice", ReceiverID: "alice", Content: "hi me"},
		{SenderID: "alice", ReceiverID: "", Content: "hi"},
		{SenderID: "alice", ReceiverID: "bob", Content: "hi", MessageType: "video"},
	}
	for _, in := range cases {
		_, err := svc.SendMessage(ctx, in)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err), "input %+v", in)
	}
	deps.messages.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)
}

func TestSendMessageRequiresConnection(t *testing.T) {
	svc, deps := newChatService(staticConnections{})

	_, err := svc.SendMessage(context.Background(), SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
	deps.messages.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)
}

func TestSendMessagePublishesToBothAndNotifies(t *testing.T) {
	svc, deps := newChatService(staticConnections{"room_alice_bob": true})
	long := strings.Repeat("ö", 120)
	stored := models.ChatMessage{
		ID: "m1", RoomID: "room_alice_bob", SenderID: "alice", ReceiverID: "bob",
		Content: long, MessageType: models.MessageText, Status: models.MessageSent, Timestamp: fixedNow,
	}

	deps.messages.On("AppendMessage", mock.Anything, mock.MatchedBy(func(m models.ChatMessage) bool {
		return m.RoomID == "room_alice_bob" && m.Status == models.MessageSent &&
			m.MessageType == models.MessageText && m.Content == long && m.Timestamp.Equal(fixedNow)
	})).Return(stored, true, nil).Once()
	deps.bus.On("Publish", mock.Anything, "bob", mock.Anything).Return(nil).Once()
	deps.bus.On("Publish", mock.Anything, "alice", mock.Anything).Return(apperrors.ErrChannelUnavailable).Once()

	msg, err := svc.SendMessage(context.Background(), SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: long})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)

	routed := deps.router.routed()
	require.Len(t, routed, 1)
	assert.Equal(t, models.NotifyMessage, routed[0].Type)
	assert.Equal(t, "bob", routed[0].RecipientID)
	assert.Equal(t, strings.Repeat("ö", previewRunes)+"…", routed[0].Message)
	deps.bus.AssertExpectations(t)
}

func TestSendMessageRetryHasNoSideEffects(t *testing.T) {
	svc, deps := newChatService(staticConnections{"room_alice_bob": true})
	clientID := "c-1"
	stored := models.ChatMessage{ID: "m1", RoomID: "room_alice_bob", SenderID: "alice", ReceiverID: "bob", ClientMessageID: &clientID}

	deps.messages.On("AppendMessage", mock.Anything, mock.Anything).Return(stored, false, nil).Once()

	msg, err := svc.SendMessage(context.Background(), SendMessageInput{
		SenderID: "alice", ReceiverID: "bob", Content: "hi", ClientMessageID: clientID,
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	deps.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, deps.router.routed())
}

func TestUpdateStatusRules(t *testing.T) {
	delivered := models.ChatMessage{
		ID: "m1", RoomID: "room_alice_bob", SenderID: "alice", ReceiverID: "bob", Status: models.MessageDelivered,
	}

	t.Run("unknown status", func(t *testing.T) {
		svc, deps := newChatService(nil)
		_, err := svc.UpdateStatus(context.Background(), "bob", "m1", "seen")
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
		deps.messages.AssertNotCalled(t, "GetMessage", mock.Anything, mock.Anything)
	})

	t.Run("missing message", func(t *testing.T) {
		svc, deps := newChatService(nil)
		deps.messages.On("GetMessage", mock.Anything, "m404").Return(nil, repositories.ErrMessageNotFound).Once()
		_, err := svc.UpdateStatus(context.Background(), "bob", "m404", models.MessageRead)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("sender cannot update", func(t *testing.T) {
		svc, deps := newChatService(nil)
		deps.messages.On("GetMessage", mock.Anything, "m1").Return(delivered, nil).Once()
		_, err := svc.UpdateStatus(context.Background(), "alice", "m1", models.MessageRead)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("backwards", func(t *testing.T) {
		svc, deps := newChatService(nil)
		deps.messages.On("GetMessage", mock.Anything, "m1").Return(delivered, nil).Once()
		_, err := svc.UpdateStatus(context.Background(), "bob", "m1", models.MessageSent)
		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		deps.messages.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		svc, deps := newChatService(nil)
		deps.messages.On("GetMessage", mock.Anything, "m1").Return(delivered, nil).Once()
		msg, err := svc.UpdateStatus(context.Background(), "bob", "m1", models.MessageDelivered)
		require.NoError(t, err)
		assert.Equal(t, models.MessageDelivered, msg.Status)
		deps.messages.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
		deps.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("forward tells the sender", func(t *testing.T) {
		svc, deps := newChatService(nil)
		deps.messages.On("GetMessage", mock.Anything, "m1").Return(delivered, nil).Once()
		deps.messages.On("AdvanceStatus", mock.Anything, "m1", models.MessageRead).Return(true, nil).Once()
		deps.bus.On("Publish", mock.Anything, "alice", ws.MessageStatusUpdate("m1", "room_alice_bob", models.MessageRead)).
			Return(nil).Once()
		msg, err := svc.UpdateStatus(context.Background(), "bob", "m1", models.MessageRead)
		require.NoError(t, err)
		assert.Equal(t, models.MessageRead, msg.Status)
		deps.bus.AssertExpectations(t)
	})

	t.Run("concurrent update overtook", func(t *testing.T) {
		svc, deps := newChatService(nil)
		sent := delivered
		sent.Status = models.MessageSent
		read := delivered
		read.Status = models.MessageRead
		deps.messages.On("GetMessage", mock.Anything, "m1").Return(sent, nil).Once()
		deps.messages.On("AdvanceStatus", mock.Anything, "m1", models.MessageDelivered).Return(false, nil).Once()
		deps.messages.On("GetMessage", mock.Anything, "m1").Return(read, nil).Once()
		_, err := svc.UpdateStatus(context.Background(), "bob", "m1", models.MessageDelivered)
		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
	})
}

func TestListMessagesAccess(t *testing.T) {
	svc, deps := newChatService(nil)
	ctx := context.Background()

	deps.rooms.On("GetRoom", mock.Anything, "room_alice_bob").
		Return(models.ChatRoom{RoomID: "room_alice_bob", Participant1ID: "alice", Participant2ID: "bob"}, nil)
	deps.rooms.On("GetRoom", mock.Anything, "room_alice_carol").Return(nil, repositories.ErrRoomNotFound)
	deps.messages.On("ListRoomMessages", mock.Anything, "room_alice_bob").Return([]models.ChatMessage{{ID: "m1"}}, nil).Once()

	msgs, err := svc.ListMessages(ctx, "room_alice_bob", "bob")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = svc.ListMessages(ctx, "room_alice_bob", "mallory")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	msgs, err = svc.ListMessages(ctx, "room_alice_carol", "carol")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = svc.ListMessages(ctx, "room_alice_carol", "mallory")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestListRoomsSurvivesProfileFailure(t *testing.T) {
	svc, deps := newChatService(nil)

	deps.rooms.On("ListRoomsForUser", mock.Anything, "alice").Return([]models.RoomSummary{
		{ChatRoom: models.ChatRoom{RoomID: "room_alice_bob", Participant1ID: "alice", Participant2ID: "bob"}, UnreadCount: 2},
	}, nil).Once()
	deps.profiles.On("GetProfiles", mock.Anything, []string{"bob"}).Return(nil, assert.AnError).Once()

	rooms, err := svc.ListRooms(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "bob", rooms[0].OtherUserID)
	assert.Equal(t, 2, rooms[0].UnreadCount)
	assert.False(t, rooms[0].OtherUserOnline)
}
