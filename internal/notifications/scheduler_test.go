package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRetrier struct {
	mock.Mock
}

func (m *MockRetrier) Retry(ctx context.Context, limit int) (RetryStats, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(RetryStats), args.Error(1)
}

func TestRetryScheduler_RunOnce(t *testing.T) {
	retrier := new(MockRetrier)
	retrier.On("Retry", mock.Anything, 25).Return(RetryStats{Attempted: 2, Sent: 1, Failed: 1}, nil).Once()
	retrier.On("Retry", mock.Anything, 25).Return(RetryStats{}, errors.New("store down")).Once()

	s := NewRetryScheduler(retrier, "@every 1m", 25, zap.NewNop())

	stats, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RetryStats{Attempted: 2, Sent: 1, Failed: 1}, stats)

	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
	retrier.AssertExpectations(t)
}

func TestRetryScheduler_StartStop(t *testing.T) {
	s := NewRetryScheduler(new(MockRetrier), "@every 1h", 10, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start is rejected")
	s.Stop()
	s.Stop()
}

func TestRetryScheduler_InvalidSpec(t *testing.T) {
	s := NewRetryScheduler(new(MockRetrier), "every now and then", 10, zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}
