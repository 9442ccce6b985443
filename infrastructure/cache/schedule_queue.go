package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// RedisScheduleQueue keeps scheduled posts in a sorted set scored by publish
// time (unix ms). Post bodies live in a hash next to it.
type RedisScheduleQueue struct {
	client *redis.Client
	key    string
}

func NewRedisScheduleQueue(client *redis.Client, key string) repository.IScheduleQueue {
	return &RedisScheduleQueue{client: client, key: key}
}

func (q *RedisScheduleQueue) postsKey() string { return q.key + ":posts" }

func (q *RedisScheduleQueue) Enqueue(ctx context.Context, post *model.ScheduledPost) error {
	if post == nil || post.ID == "" {
		return errors.New("schedule queue: post id is required")
	}
	payload, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.postsKey(), post.ID, payload)
		pipe.ZAdd(ctx, q.key, redis.Z{Score: float64(post.ScheduledAt.UnixMilli()), Member: post.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue post: %w", err)
	}
	return nil
}

// PopDue removes and returns up to limit posts whose time has come, oldest
// first. A post is returned to exactly one caller: the one whose ZREM wins.
func (q *RedisScheduleQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledPost, error) {
	if limit <= 0 {
		limit = 1
	}
	ids, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due posts: %w", err)
	}

	var due []*model.ScheduledPost
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, q.key, id).Result()
		if err != nil {
			return due, fmt.Errorf("claim post %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}
		raw, err := q.client.HGet(ctx, q.postsKey(), id).Bytes()
		if errors.Is(err, redis.Nil) {
			logger.GetLogger().WithField("schedule_id", id).Warn("scheduled post body missing, skipped")
			continue
		}
		if err != nil {
			return due, fmt.Errorf("load post %s: %w", id, err)
		}
		q.client.HDel(ctx, q.postsKey(), id)

		var post model.ScheduledPost
		if err := json.Unmarshal(raw, &post); err != nil {
			logger.GetLogger().WithField("schedule_id", id).WithError(err).Error("scheduled post is not decodable, dropped")
			continue
		}
		due = append(due, &post)
	}
	return due, nil
}

// Cancel removes a post that has not been popped yet.
func (q *RedisScheduleQueue) Cancel(ctx context.Context, id string) (bool, error) {
	removed, err := q.client.ZRem(ctx, q.key, id).Result()
	if err != nil {
		return false, err
	}
	if err := q.client.HDel(ctx, q.postsKey(), id).Err(); err != nil {
		return false, err
	}
	return removed > 0, nil
}
