//go:build integration

package challenge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shardauth/internal/challenge"
	"shardauth/pkg/platform/sentinel"
	"shardauth/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *challenge.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = challenge.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSetGetDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "abc", "token-1", time.Minute))

	got, err := s.store.Get(ctx, "abc")
	s.Require().NoError(err)
	s.Equal("token-1", got)

	raw, err := s.redis.Client.Get(ctx, "challengeToken:abc").Result()
	s.Require().NoError(err)
	s.Equal("token-1", raw)

	ttl, err := s.redis.Client.TTL(ctx, "challengeToken:abc").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 50*time.Second)

	s.Require().NoError(s.store.Delete(ctx, "abc"))
	_, err = s.store.Get(ctx, "abc")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConsume() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "abc", "token-1", time.Minute))

	ok, err := s.store.Consume(ctx, "abc", "token-2")
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.store.Consume(ctx, "abc", "token-1")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Consume(ctx, "abc", "token-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisStoreSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "short", "token", time.Second))

	s.Eventually(func() bool {
		_, err := s.store.Get(ctx, "short")
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisStoreSuite) TestUnavailable() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.store.Set(ctx, "x", "y", time.Minute)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}
