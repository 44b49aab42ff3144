package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestSweeper_Sweep(t *testing.T) {
	samples := &MockExpirer{}
	incidents := &MockExpirer{}
	samples.On("DeleteExpired", mock.Anything, testNow).Return(int64(12), nil)
	incidents.On("DeleteExpired", mock.Anything, testNow).Return(int64(0), nil)

	s := NewSweeper(samples, incidents, testLogger(), time.Minute)
	s.now = func() time.Time { return testNow }

	removed := s.Sweep(context.Background())

	assert.Equal(t, map[string]int64{"location_samples": 12, "incidents": 0}, removed)
	samples.AssertExpectations(t)
	incidents.AssertExpectations(t)
}

func TestSweeper_ContinuesAfterError(t *testing.T) {
	samples := &MockExpirer{}
	incidents := &MockExpirer{}
	samples.On("DeleteExpired", mock.Anything, testNow).Return(int64(0), errors.New("db down"))
	incidents.On("DeleteExpired", mock.Anything, testNow).Return(int64(3), nil)

	s := NewSweeper(samples, incidents, testLogger(), 0)
	s.now = func() time.Time { return testNow }

	removed := s.Sweep(context.Background())

	assert.Equal(t, map[string]int64{"incidents": 3}, removed)
	assert.Equal(t, time.Minute, s.interval)
}

func TestSweeper_StartStop(t *testing.T) {
	samples := &MockExpirer{}
	incidents := &MockExpirer{}
	samples.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
	incidents.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil)

	s := NewSweeper(samples, incidents, testLogger(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
