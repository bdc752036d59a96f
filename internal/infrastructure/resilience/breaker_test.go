package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend failed")

func fail() (interface{}, error)    { return nil, errBackend }
func succeed() (interface{}, error) { return "ok", nil }

func TestStaysClosedOnSuccesses(t *testing.T) {
	b := New("fs", Settings{})

	for i := 0; i < 10; i++ {
		_, err := b.Execute(succeed)
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("fs", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(fail)
		assert.Equal(t, errBackend, err)
	}
	assert.Equal(t, StateOpen, b.State())

	// Open state rejects without invoking the request.
	invoked := false
	_, err := b.Execute(func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.Equal(t, ErrCircuitOpen, err)
	assert.False(t, invoked)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New("fs", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	})

	b.Execute(fail)
	b.Execute(fail)
	b.Execute(succeed)
	b.Execute(fail)
	b.Execute(fail)

	assert.Equal(t, StateClosed, b.State())

	counts := b.Counts()
	assert.Equal(t, uint32(5), counts.Requests)
	assert.Equal(t, uint32(4), counts.TotalFailures)
	assert.Equal(t, uint32(2), counts.ConsecutiveFailures)
}

func TestHalfOpenRecovery(t *testing.T) {
	var transitions []State
	b := New("fs", Settings{
		MaxRequests: 2,
		Timeout:     5 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, to)
		},
	})

	b.Execute(fail)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// Enough successful probes close the breaker.
	_, err := b.Execute(succeed)
	require.NoError(t, err)
	_, err = b.Execute(succeed)
	require.NoError(t, err)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("fs", Settings{
		Timeout:     5 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	b.Execute(fail)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	b.Execute(fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	b := New("fs", Settings{
		MaxRequests: 1,
		Timeout:     5 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	b.Execute(fail)
	time.Sleep(10 * time.Millisecond)

	// The allowance counts in-flight probes, so check it from inside one.
	_, err := b.Execute(func() (interface{}, error) {
		_, inner := b.Execute(succeed)
		assert.Equal(t, ErrTooManyRequests, inner)
		return nil, nil
	})
	require.NoError(t, err)
}
