package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func scheduled(id string, at time.Time) *model.ScheduledPost {
	return &model.ScheduledPost{
		ID:          id,
		CreatorID:   "creator-1",
		Platform:    model.PlatformTwitter,
		Payload:     model.ContentPayload{Caption: "post " + id},
		ScheduledAt: at,
		Status:      model.ScheduledPostStatusQueued,
	}
}

func TestRedisScheduleQueue_PopDueOrdersAndClaims(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisScheduleQueue(client, "test:scheduled")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, q.Enqueue(ctx, scheduled("late", now.Add(-time.Minute))))
	require.NoError(t, q.Enqueue(ctx, scheduled("early", now.Add(-time.Hour))))
	require.NoError(t, q.Enqueue(ctx, scheduled("future", now.Add(time.Hour))))

	due, err := q.PopDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)
	assert.Equal(t, "post late", due[1].Payload.Caption)

	again, err := q.PopDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	later, err := q.PopDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "future", later[0].ID)
}

func TestRedisScheduleQueue_PopDueHonoursLimit(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisScheduleQueue(client, "test:scheduled")
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, scheduled(id, now.Add(-time.Second))))
	}

	due, err := q.PopDue(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, due, 2)
	rest, err := q.PopDue(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestRedisScheduleQueue_Cancel(t *testing.T) {
	mr, client := newTestRedis(t)
	q := NewRedisScheduleQueue(client, "test:scheduled")
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, scheduled("x", time.Now().Add(time.Hour))))

	ok, err := q.Cancel(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("test:scheduled:posts"))

	ok, err = q.Cancel(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisScheduleQueue_EnqueueRequiresID(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisScheduleQueue(client, "test:scheduled")
	assert.Error(t, q.Enqueue(context.Background(), &model.ScheduledPost{}))
}

func TestRedisVerifierStore(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisVerifierStore(client)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "state-1", "verifier-1"))
	assert.True(t, mr.TTL("oauth:pkce:state-1") > 0)

	v, ok, err := s.Take(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "verifier-1", v)

	_, ok, err = s.Take(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "state-2", "verifier-2"))
	mr.FastForward(11 * time.Minute)
	_, ok, err = s.Take(ctx, "state-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
