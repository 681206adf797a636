package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

var errDial = errors.New("connection refused")

func failing() (interface{}, error) { return nil, errDial }

func succeeding() (interface{}, error) { return "ok", nil }

func TestSet_TripsAfterConsecutiveFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewSet(
		Config{Enabled: true, ConsecutiveFailures: 3, OpenTimeout: time.Hour, HalfOpenRequests: 1},
		WithLogger(observability.NewLoggerFromZap(zap.New(core))),
		WithMetrics(observability.NewMetrics("test")),
	)

	for i := 0; i < 3; i++ {
		_, err := s.Execute("users", failing)
		require.ErrorIs(t, err, errDial)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State("users"))

	called := false
	_, err := s.Execute("users", func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.True(t, IsOpen(err))
	assert.False(t, called)

	assert.Equal(t, gobreaker.StateClosed, s.State("payments"), "breakers are per service")
	assert.Equal(t, 1, logs.FilterMessage("circuit breaker state change").Len())
}

func TestSet_SuccessResetsConsecutiveCount(t *testing.T) {
	s := NewSet(Config{Enabled: true, ConsecutiveFailures: 2, OpenTimeout: time.Hour})

	_, _ = s.Execute("users", failing)
	v, err := s.Execute("users", succeeding)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	_, _ = s.Execute("users", failing)

	assert.Equal(t, gobreaker.StateClosed, s.State("users"))
}

func TestSet_Disabled(t *testing.T) {
	s := NewSet(Config{Enabled: false, ConsecutiveFailures: 1})

	for i := 0; i < 5; i++ {
		_, err := s.Execute("users", failing)
		assert.ErrorIs(t, err, errDial)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State("users"))

	var nilSet *Set
	v, err := nilSet.Execute("users", succeeding)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.NotPanics(t, func() { nilSet.Remove("users") })
}

func TestSet_Remove(t *testing.T) {
	s := NewSet(Config{Enabled: true, ConsecutiveFailures: 1, OpenTimeout: time.Hour})

	_, _ = s.Execute("users", failing)
	require.Equal(t, gobreaker.StateOpen, s.State("users"))

	s.Remove("users")
	assert.Equal(t, gobreaker.StateClosed, s.State("users"))
	_, err := s.Execute("users", succeeding)
	assert.NoError(t, err)
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(gobreaker.ErrOpenState))
	assert.True(t, IsOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsOpen(errDial))
	assert.False(t, IsOpen(nil))
}

func TestFromConfig(t *testing.T) {
	got := FromConfig(config.Default().Breaker)
	assert.Equal(t, DefaultConfig(), got)
}

func TestSafeIntToUint32(t *testing.T) {
	assert.Equal(t, uint32(1), safeIntToUint32(-1))
	assert.Equal(t, uint32(1), safeIntToUint32(0))
	assert.Equal(t, uint32(7), safeIntToUint32(7))
}
