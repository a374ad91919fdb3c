//go:build integration

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"yard-service/internal/model"
)

type RedisStoreSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	store     *RedisStore
}

func (s *RedisStoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.store = NewRedisStore(s.client, time.Minute)
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisStoreSuite) TestLifecycle() {
	ctx := context.Background()

	created, err := s.store.Create(ctx)
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionStatusPending, got.Status)

	s.Require().NoError(s.store.MarkProcessing(ctx, created.ID))
	s.Require().NoError(s.store.MarkCompleted(ctx, created.ID, "ABC1D23"))

	got, err = s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionStatusCompleted, got.Status)
	s.Require().NotNil(got.RecognizedPlate)
	s.Equal("ABC1D23", *got.RecognizedPlate)
	s.Nil(got.ErrorMessage)
	s.WithinDuration(created.CreatedAt, got.CreatedAt, time.Millisecond)

	ttl, err := s.client.TTL(ctx, s.store.key(created.ID)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestMissingSession() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, "missing")
	s.ErrorIs(err, ErrNotFound)

	s.ErrorIs(s.store.MarkProcessing(ctx, "missing"), ErrNotFound)
	s.NoError(s.store.MarkError(ctx, "missing", "boom"))
	exists, err := s.client.Exists(ctx, s.store.key("missing")).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func (s *RedisStoreSuite) TestProcessingIsExclusive() {
	ctx := context.Background()
	created, err := s.store.Create(ctx)
	s.Require().NoError(err)

	var (
		wg         sync.WaitGroup
		started    atomic.Int32
		inProgress atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.MarkProcessing(ctx, created.ID)
			switch {
			case err == nil:
				started.Add(1)
			case s.ErrorIs(err, ErrInProgress):
				inProgress.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), started.Load())
	s.Equal(int32(15), inProgress.Load())

	s.Require().NoError(s.store.MarkCompleted(ctx, created.ID, "ABC1D23"))
	s.Require().NoError(s.store.MarkProcessing(ctx, created.ID))
	got, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionStatusProcessing, got.Status)
	s.Nil(got.RecognizedPlate)
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container test skipped in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}
