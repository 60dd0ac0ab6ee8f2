package presence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records which relay node holds each online user so other processes
// can answer presence queries.
type Store interface {
	Online(ctx context.Context, userId string, nodeId string, ttl time.Duration) error
	Offline(ctx context.Context, userId string, nodeId string) error
	Refresh(ctx context.Context, userIds []string, nodeId string, ttl time.Duration) error
	Lookup(ctx context.Context, userId string) (nodeId string, online bool, err error)
}

// offlineScript deletes the key only while it still names this node, so a
// node losing a user it no longer owns cannot erase another node's entry.
var offlineScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "relay:presence:"
	}

	return &RedisStore{
		client,
		prefix,
	}
}

func (s *RedisStore) key(userId string) string {
	return s.prefix + userId
}

func (s *RedisStore) Online(ctx context.Context, userId string, nodeId string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(userId), nodeId, ttl).Err()
}

func (s *RedisStore) Offline(ctx context.Context, userId string, nodeId string) error {
	return offlineScript.Run(ctx, s.client, []string{s.key(userId)}, nodeId).Err()
}

func (s *RedisStore) Refresh(ctx context.Context, userIds []string, nodeId string, ttl time.Duration) error {
	if len(userIds) == 0 {
		return nil
	}

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, userId := range userIds {
			pipe.Set(ctx, s.key(userId), nodeId, ttl)
		}

		return nil
	})

	return err
}

func (s *RedisStore) Lookup(ctx context.Context, userId string) (string, bool, error) {
	nodeId, err := s.client.Get(ctx, s.key(userId)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return nodeId, true, nil
}
