package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
)

// RedisVerifierStore shares PKCE verifiers between API replicas.
type RedisVerifierStore struct {
	client *redis.Client
	prefix string
}

func NewRedisVerifierStore(client *redis.Client) platform.VerifierStore {
	return &RedisVerifierStore{client: client, prefix: "oauth:pkce:"}
}

func (s *RedisVerifierStore) Save(ctx context.Context, state, verifier string) error {
	return s.client.Set(ctx, s.prefix+state, verifier, platform.VerifierTTL).Err()
}

func (s *RedisVerifierStore) Take(ctx context.Context, state string) (string, bool, error) {
	v, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
