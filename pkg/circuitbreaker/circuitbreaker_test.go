package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("dial tcp: connection refused")

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	cb := New("cache", WithFailureThreshold(3), WithTimeout(time.Hour))

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	ctx := context.Background()
	cb := New("cache", WithFailureThreshold(2))

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 3, cb.Counts().Requests)
	assert.Equal(t, 2, cb.Counts().TotalFailures)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var transitions []string
	cb := New("cache",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
		WithOnStateChange(func(_ string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(ctx, fail)
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"closed->open", "open->half-open", "half-open->closed",
		"closed->open", "open->half-open", "half-open->open",
	}, transitions)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ctx := context.Background()
	errBadInput := errors.New("nil value")
	cb := New("cache",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errBadInput) }),
	)

	assert.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return errBadInput }), errBadInput)
	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
