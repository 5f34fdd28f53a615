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
	"crewlink/internal/ws"
)

type notificationDeps struct {
	notifications *mocks.NotificationRepositoryMock
	preferences   *mocks.PreferenceRepositoryMock
	profiles      *mocks.ProfileRepositoryMock
	bus           *mocks.BusMock
	jobs          *recordingJobs
}

func newNotificationService() (*NotificationService, notificationDeps) {
	deps := notificationDeps{
		notifications: new(mocks.NotificationRepositoryMock),
		preferences:   new(mocks.PreferenceRepositoryMock),
		profiles:      new(mocks.ProfileRepositoryMock),
		bus:           new(mocks.BusMock),
		jobs:          &recordingJobs{},
	}
	svc := NewNotificationService(deps.notifications, deps.preferences, deps.profiles, deps.bus, deps.jobs)
	svc.now = func() time.Time { return fixedNow }
	return svc, deps
}

func TestRouteWordsConnectionRequestFromActor(t *testing.T) {
	svc, deps := newNotificationService()
	ctx := context.Background()

	deps.preferences.On("Get", mock.Anything, "bob", models.NotifyConnectionRequest).
		Return(nil, repositories.ErrPreferenceNotFound).Once()
	deps.profiles.On("GetProfiles", mock.Anything, []string{"alice"}).
		Return(map[string]models.Profile{"alice": {DisplayName: "Alice Moreau"}}, nil).Once()
	deps.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == "bob" && n.Title == "New connection request" &&
			n.Message == "Alice Moreau wants to connect with you" &&
			n.EmailQueued && n.PushQueued && !n.IsRead && string(n.Data) == `{"request_id":"r1"}`
	})).Return(nil).Once()
	deps.bus.On("Publish", mock.Anything, "bob", mock.MatchedBy(func(ev ws.Event) bool {
		return ev.Kind == ws.KindRealtimeNotification
	})).Return(apperrors.ErrChannelUnavailable).Once()

	n, err := svc.Route(ctx, DomainEvent{
		Type:        models.NotifyConnectionRequest,
		RecipientID: "bob",
		ActorID:     "alice",
		Data:        map[string]any{"request_id": "r1"},
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, n.CreatedAt)
	assert.Equal(t, 1, deps.jobs.count(RoutingKeyEmail))
	assert.Equal(t, 1, deps.jobs.count(RoutingKeyPush))
	deps.notifications.AssertExpectations(t)
	deps.bus.AssertExpectations(t)
}

func TestRouteKeepsExplicitTextAndHonoursPreference(t *testing.T) {
	svc, deps := newNotificationService()

	deps.preferences.On("Get", mock.Anything, "bob", models.NotifySystem).Return(models.NotificationPreference{
		UserID: "bob", Type: models.NotifySystem, EmailEnabled: true,
	}, nil).Once()
	deps.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Title == "Muster drill" && n.Message == "Deck 4 at 10:00" && string(n.Data) == "{}"
	})).Return(nil).Once()

	_, err := svc.Route(context.Background(), DomainEvent{
		Type:        models.NotifySystem,
		RecipientID: "bob",
		Title:       "Muster drill",
		Message:     "Deck 4 at 10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deps.jobs.count(RoutingKeyEmail))
	assert.Equal(t, 0, deps.jobs.count(RoutingKeyPush))
	deps.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	deps.profiles.AssertNotCalled(t, "GetProfiles", mock.Anything, mock.Anything)
}

func TestRouteFallsBackWhenActorUnknown(t *testing.T) {
	svc, deps := newNotificationService()

	deps.preferences.On("Get", mock.Anything, "alice", models.NotifyConnectionAccepted).
		Return(nil, repositories.ErrPreferenceNotFound).Once()
	deps.profiles.On("GetProfiles", mock.Anything, []string{"bob"}).Return(nil, assert.AnError).Once()
	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	deps.bus.On("Publish", mock.Anything, "alice", mock.Anything).Return(nil).Once()

	n, err := svc.Route(context.Background(), DomainEvent{
		Type:        models.NotifyConnectionAccepted,
		RecipientID: "alice",
		ActorID:     "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "A crew member accepted your connection request", n.Message)
}

func TestRouteRejectsUnknownType(t *testing.T) {
	svc, deps := newNotificationService()

	_, err := svc.Route(context.Background(), DomainEvent{Type: "fireworks", RecipientID: "bob"})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	deps.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRouteStoreFailure(t *testing.T) {
	svc, deps := newNotificationService()

	deps.preferences.On("Get", mock.Anything, "bob", models.NotifySystem).
		Return(nil, repositories.ErrPreferenceNotFound).Once()
	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := svc.Route(context.Background(), DomainEvent{
		Type: models.NotifySystem, RecipientID: "bob", Title: "t", Message: "m",
	})
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
	assert.Equal(t, 0, deps.jobs.count(RoutingKeyEmail))
}

func TestListClampsPaging(t *testing.T) {
	svc, deps := newNotificationService()

	deps.notifications.On("Count", mock.Anything, "bob", true).Return(250, nil).Once()
	deps.notifications.On("List", mock.Anything, "bob", true, 100, 100).Return([]models.Notification{}, nil).Once()

	page, err := svc.List(context.Background(), "bob", 2, 500, true)
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 100, Total: 250, Pages: 3}, page.Pagination)
	deps.notifications.AssertExpectations(t)
}

func TestListDefaults(t *testing.T) {
	svc, deps := newNotificationService()

	deps.notifications.On("Count", mock.Anything, "bob", false).Return(0, nil).Once()
	deps.notifications.On("List", mock.Anything, "bob", false, defaultPageSize, 0).Return([]models.Notification{}, nil).Once()

	page, err := svc.List(context.Background(), "bob", 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 0, page.Pagination.Pages)
}

func TestMarkReadForeignNotificationLooksMissing(t *testing.T) {
	svc, deps := newNotificationService()

	deps.notifications.On("MarkRead", mock.Anything, "n1", "mallory", fixedNow).Return(false, nil).Once()

	err := svc.MarkRead(context.Background(), "n1", "mallory")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdatePreferencesRejectsWholeBatch(t *testing.T) {
	svc, deps := newNotificationService()
	off := false

	_, err := svc.UpdatePreferences(context.Background(), "bob", []models.PreferenceUpdate{
		{Type: models.NotifyMessage, PushEnabled: &off},
		{Type: "karaoke", PushEnabled: &off},
	})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	deps.preferences.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUpdatePreferencesMergesWithDefaults(t *testing.T) {
	svc, deps := newNotificationService()
	off := false

	deps.preferences.On("Get", mock.Anything, "bob", models.NotifyMessage).
		Return(nil, repositories.ErrPreferenceNotFound).Once()
	deps.preferences.On("Upsert", mock.Anything, mock.MatchedBy(func(p models.NotificationPreference) bool {
		return p.Type == models.NotifyMessage && !p.PushEnabled && p.InAppEnabled && !p.EmailEnabled &&
			p.CreatedAt != nil && p.UpdatedAt != nil
	})).Return(nil).Once()
	deps.preferences.On("ListForUser", mock.Anything, "bob").Return([]models.NotificationPreference{
		{UserID: "bob", Type: models.NotifyMessage, InAppEnabled: true},
	}, nil).Once()

	prefs, err := svc.UpdatePreferences(context.Background(), "bob", []models.PreferenceUpdate{
		{Type: models.NotifyMessage, PushEnabled: &off},
	})
	require.NoError(t, err)
	require.Len(t, prefs, len(models.NotificationTypes))
	assert.Equal(t, models.NotifyConnectionRequest, prefs[0].Type)
	assert.False(t, prefs[3].PushEnabled)
	deps.preferences.AssertExpectations(t)
}
