package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New("ratelimit-redis")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "ratelimit-redis", b.Name())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	for range 2 {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	// Already open: no second transition.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerRecovery(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(3))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure() // streak restarts
	b.RecordSuccess()
	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))
	b.RecordFailure()

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
}
