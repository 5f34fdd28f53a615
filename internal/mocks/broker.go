package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"crewlink/internal/ws"
)

// BusMock stands in for the realtime hub.
type BusMock struct {
	mock.Mock
}

func (m *BusMock) Publish(ctx context.Context, userID string, ev ws.Event) error {
	args := m.Called(ctx, userID, ev)
	return args.Error(0)
}

// PublisherMock stands in for the AMQP publisher on the job and audit paths.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}
