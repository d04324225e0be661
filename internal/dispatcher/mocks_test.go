package dispatcher

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/stretchr/testify/mock"
)

type mockOutbox struct {
	mock.Mock
}

func (m *mockOutbox) Pending(ctx context.Context, limit, maxAttempts int) ([]model.Notification, error) {
	args := m.Called(ctx, limit, maxAttempts)
	pending, _ := args.Get(0).([]model.Notification)
	return pending, args.Error(1)
}

func (m *mockOutbox) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockOutbox) MarkFailed(ctx context.Context, id string, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Notify(ctx context.Context, n model.Notification) error {
	return m.Called(ctx, n).Error(0)
}
