package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crewlink/internal/db/dbtest"
	"crewlink/internal/models"
	"crewlink/internal/repositories"
	"crewlink/internal/ws"
)

type recordingRouter struct {
	mu     sync.Mutex
	events []DomainEvent
	err    error
}

func (r *recordingRouter) Route(_ context.Context, ev DomainEvent) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return models.Notification{UserID: ev.RecipientID, Type: ev.Type}, r.err
}

func (r *recordingRouter) routed() []DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DomainEvent(nil), r.events...)
}

type recordingBus struct {
	mu     sync.Mutex
	events map[string][]ws.Event
}

func newRecordingBus() *recordingBus {
	return &recordingBus{events: make(map[string][]ws.Event)}
}

func (b *recordingBus) Publish(_ context.Context, userID string, ev ws.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[userID] = append(b.events[userID], ev)
	return nil
}

func (b *recordingBus) kinds(userID string) []ws.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	kinds := make([]ws.Kind, 0, len(b.events[userID]))
	for _, ev := range b.events[userID] {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type recordingJobs struct {
	mu   sync.Mutex
	jobs map[string][]DeliveryJob
}

func (j *recordingJobs) Publish(_ context.Context, routingKey string, event any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.jobs == nil {
		j.jobs = make(map[string][]DeliveryJob)
	}
	j.jobs[routingKey] = append(j.jobs[routingKey], event.(DeliveryJob))
	return nil
}

func (j *recordingJobs) count(routingKey string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.jobs[routingKey])
}

// tickingClock hands out strictly increasing timestamps so ordering in tests never
// depends on the wall clock resolution.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// harness wires the real services over an in-memory database.
type harness struct {
	connections   *ConnectionService
	chat          *ChatService
	notifications *NotificationService
	presence      *PresenceTracker
	profiles      *repositories.ProfileRepo
	bus           *recordingBus
	jobs          *recordingJobs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := dbtest.NewSQLite(t)
	bus := newRecordingBus()
	jobs := &recordingJobs{}
	profiles := repositories.NewProfileRepo(database)
	presence := NewPresenceTracker(DefaultTypingTTL)

	notifications := NewNotificationService(
		repositories.NewNotificationRepo(database),
		repositories.NewPreferenceRepo(database),
		profiles,
		bus,
		jobs,
	)
	connections := NewConnectionService(repositories.NewConnectionRepo(database), notifications)
	chat := NewChatService(
		repositories.NewChatRepo(database),
		repositories.NewMessageRepo(database),
		profiles,
		connections,
		presence,
		bus,
		notifications,
	)
	clock := &tickingClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	notifications.now = clock.now
	connections.now = clock.now
	chat.now = clock.now
	presence.now = clock.now

	return &harness{
		connections:   connections,
		chat:          chat,
		notifications: notifications,
		presence:      presence,
		profiles:      profiles,
		bus:           bus,
		jobs:          jobs,
	}
}

func (h *harness) connect(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	req, err := h.connections.SendRequest(ctx, a, b, nil)
	require.NoError(t, err)
	_, err = h.connections.Respond(ctx, req.ID, b, models.ActionAccept)
	require.NoError(t, err)
}
