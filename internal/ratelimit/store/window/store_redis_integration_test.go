//go:build integration

package window_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cardforge/internal/ratelimit/store/window"
	"cardforge/pkg/testutil/containers"
)

type RedisWindowSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *window.RedisStore
}

func TestRedisWindowSuite(t *testing.T) {
	suite.Run(t, new(RedisWindowSuite))
}

func (s *RedisWindowSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = window.NewRedis(s.redis.Client)
}

func (s *RedisWindowSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisWindowSuite) TestIncrementSharesCountAndExpires() {
	ctx := context.Background()
	now := time.Now()

	first, resetAt, err := s.store.Increment(ctx, "ratelimit:login:ip", 2*time.Second, now)
	s.Require().NoError(err)
	second, _, err := s.store.Increment(ctx, "ratelimit:login:ip", 2*time.Second, now)
	s.Require().NoError(err)

	s.Equal(int64(1), first)
	s.Equal(int64(2), second)
	s.False(resetAt.Before(now))

	keys, err := s.redis.Client.Keys(ctx, "ratelimit:login:ip:*").Result()
	s.Require().NoError(err)
	s.Require().Len(keys, 1)
	ttl, err := s.redis.Client.TTL(ctx, keys[0]).Result()
	s.Require().NoError(err)
	s.Positive(ttl)

	s.Eventually(func() bool {
		n, err := s.redis.Client.Exists(ctx, keys[0]).Result()
		return err == nil && n == 0
	}, 5*time.Second, 100*time.Millisecond)
}
