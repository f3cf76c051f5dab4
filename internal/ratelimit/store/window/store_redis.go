package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cardforge/internal/ratelimit/models"
)

// RedisStore counts hits with INCR on a per-window key that expires with the
// window, so counters are shared by every replica.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	start := models.WindowStart(now, window)
	windowKey := key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, window)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate counter: %w", err)
	}
	return incr.Val(), start.Add(window), nil
}
