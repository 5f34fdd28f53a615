package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crewlink/internal/apperrors"
	"crewlink/internal/mocks"
	"crewlink/internal/models"
	"crewlink/internal/repositories"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newConnectionService(repo *mocks.ConnectionRepositoryMock, router *recordingRouter) *ConnectionService {
	svc := NewConnectionService(repo, router)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestSendRequestSelfNeverTouchesStore(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	svc := newConnectionService(repo, &recordingRouter{})

	_, err := svc.SendRequest(context.Background(), "alice", "alice", nil)
	assert.ErrorIs(t, err, apperrors.ErrSelfRequest)
	repo.AssertNotCalled(t, "FindActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendRequestStoresPendingAndNotifies(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	router := &recordingRouter{}
	svc := newConnectionService(repo, router)
	note := "Met you at the crew bar"

	repo.On("FindActive", mock.Anything, "bob", "alice").Return(nil, repositories.ErrRequestNotFound).Once()
	repo.On("CreateRequest", mock.Anything, mock.MatchedBy(func(r models.ConnectionRequest) bool {
		return r.SenderID == "bob" && r.ReceiverID == "alice" && r.Status == models.RequestPending &&
			r.UserLow == "alice" && r.UserHigh == "bob" && r.CreatedAt.Equal(fixedNow) && *r.Message == note
	})).Return(nil).Once()

	req, err := svc.SendRequest(context.Background(), "bob", "alice", &note)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)

	routed := router.routed()
	require.Len(t, routed, 1)
	assert.Equal(t, models.NotifyConnectionRequest, routed[0].Type)
	assert.Equal(t, "alice", routed[0].RecipientID)
	assert.Equal(t, "bob", routed[0].ActorID)
	repo.AssertExpectations(t)
}

func TestSendRequestLosesInsertRace(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	router := &recordingRouter{}
	svc := newConnectionService(repo, router)

	repo.On("FindActive", mock.Anything, "alice", "bob").Return(nil, repositories.ErrRequestNotFound).Once()
	repo.On("CreateRequest", mock.Anything, mock.Anything).Return(repositories.ErrActivePairExists).Once()
	repo.On("FindActive", mock.Anything, "alice", "bob").Return(models.ConnectionRequest{Status: models.RequestPending}, nil).Once()

	_, err := svc.SendRequest(context.Background(), "alice", "bob", nil)
	assert.ErrorIs(t, err, apperrors.ErrRequestAlreadyPending)
	assert.Empty(t, router.routed())
	repo.AssertExpectations(t)
}

func TestSendRequestStoreFailureIsInternal(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	svc := newConnectionService(repo, &recordingRouter{})

	repo.On("FindActive", mock.Anything, "alice", "bob").Return(nil, assert.AnError).Once()

	_, err := svc.SendRequest(context.Background(), "alice", "bob", nil)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRespondRejectsNonReceiver(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	svc := newConnectionService(repo, &recordingRouter{})

	repo.On("GetRequest", mock.Anything, "r1").Return(models.ConnectionRequest{
		ID: "r1", SenderID: "alice", ReceiverID: "bob", Status: models.RequestPending,
	}, nil).Once()

	_, err := svc.Respond(context.Background(), "r1", "alice", models.ActionAccept)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	repo.AssertNotCalled(t, "ResolvePending", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRespondMissingRequest(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	svc := newConnectionService(repo, &recordingRouter{})

	repo.On("GetRequest", mock.Anything, "nope").Return(nil, repositories.ErrRequestNotFound).Once()

	_, err := svc.Respond(context.Background(), "nope", "bob", models.ActionDecline)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRespondLosingRaceIsNotFoundWithoutNotification(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	router := &recordingRouter{}
	svc := newConnectionService(repo, router)

	repo.On("GetRequest", mock.Anything, "r1").Return(models.ConnectionRequest{
		ID: "r1", SenderID: "alice", ReceiverID: "bob", Status: models.RequestPending,
	}, nil).Once()
	repo.On("ResolvePending", mock.Anything, "r1", "bob", models.RequestDeclined, fixedNow).Return(false, nil).Once()

	_, err := svc.Respond(context.Background(), "r1", "bob", models.ActionDecline)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, router.routed())
	repo.AssertExpectations(t)
}

func TestRespondAcceptRoutesToSender(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	router := &recordingRouter{}
	svc := newConnectionService(repo, router)

	repo.On("GetRequest", mock.Anything, "r1").Return(models.ConnectionRequest{
		ID: "r1", SenderID: "alice", ReceiverID: "bob", Status: models.RequestPending,
	}, nil).Once()
	repo.On("ResolvePending", mock.Anything, "r1", "bob", models.RequestAccepted, fixedNow).Return(true, nil).Once()

	res, err := svc.Respond(context.Background(), "r1", "bob", models.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, res.Request.Status)
	assert.Equal(t, "room_alice_bob", res.RoomID)
	require.NotNil(t, res.Request.RespondedAt)

	routed := router.routed()
	require.Len(t, routed, 1)
	assert.Equal(t, models.NotifyConnectionAccepted, routed[0].Type)
	assert.Equal(t, "alice", routed[0].RecipientID)
	assert.Equal(t, "room_alice_bob", routed[0].Data["room_id"])
}

func TestRespondRejectsUnknownAction(t *testing.T) {
	svc := newConnectionService(new(mocks.ConnectionRepositoryMock), &recordingRouter{})
	_, err := svc.Respond(context.Background(), "r1", "bob", models.RespondAction("block"))
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestGetStatusUsesNewestRequest(t *testing.T) {
	repo := new(mocks.ConnectionRepositoryMock)
	svc := newConnectionService(repo, &recordingRouter{})

	repo.On("Latest", mock.Anything, "alice", "bob").Return(models.ConnectionRequest{
		SenderID: "alice", ReceiverID: "bob", Status: models.RequestPending,
	}, nil).Once()
	repo.On("Latest", mock.Anything, "alice", "carol").Return(nil, repositories.ErrRequestNotFound).Once()

	status, err := svc.GetStatus(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingOutgoing, status)

	status, err = svc.GetStatus(context.Background(), "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNone, status)
}
