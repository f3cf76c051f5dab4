package window

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("counts within a window", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, resetAt, err := store.Increment(ctx, "k", time.Minute, base.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			assert.Equal(t, i, count)
			assert.Equal(t, base.Add(time.Minute), resetAt)
		}
	})

	t.Run("next window starts over", func(t *testing.T) {
		count, resetAt, err := store.Increment(ctx, "k", time.Minute, base.Add(61*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, base.Add(2*time.Minute), resetAt)
	})

	t.Run("keys are independent", func(t *testing.T) {
		count, _, err := store.Increment(ctx, "other", time.Minute, base.Add(61*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestInMemoryStorePrunesStaleWindows(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range pruneThreshold {
		_, _, err := store.Increment(ctx, fmt.Sprintf("k%d", i), time.Minute, base)
		require.NoError(t, err)
	}
	_, _, err := store.Increment(ctx, "fresh", time.Minute, base.Add(time.Minute))
	require.NoError(t, err)

	assert.Len(t, store.counters, 1)
}
