package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis"
)

const redisKeyPrefix = "glowguard:session"

// RedisStore keeps slots as plain string keys under a per-namespace prefix.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to Redis and verifies reachability with PING.
func NewRedisStore(ctx context.Context, opts redis.Options, namespace string) (*RedisStore, error) {
	if namespace == "" {
		return nil, ErrConfig
	}

	client := redis.NewClient(&opts)
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		_ = client.Close()
		return nil, storeErr("redis", "ping", err)
	}

	return &RedisStore{client: client, namespace: namespace}, nil
}

func (s *RedisStore) key(slot Slot) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, s.namespace, slot)
}

// Close closes the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Get returns the slot value or ErrSlotEmpty.
func (s *RedisStore) Get(ctx context.Context, slot Slot) (string, error) {
	if err := checkSlots(slot); err != nil {
		return "", err
	}

	v, err := s.client.WithContext(ctx).Get(s.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSlotEmpty
	}
	if err != nil {
		return "", storeErr("redis", "get", err)
	}
	return v, nil
}

// Set writes every value inside MULTI/EXEC.
func (s *RedisStore) Set(ctx context.Context, values map[Slot]string) error {
	if err := checkValues(values); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	_, err := s.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(s.key(k), v, 0)
		}
		return nil
	})
	return storeErr("redis", "set", err)
}

// Delete removes the named slots with a single DEL.
func (s *RedisStore) Delete(ctx context.Context, slots ...Slot) error {
	if err := checkSlots(slots...); err != nil {
		return err
	}
	if len(slots) == 0 {
		return nil
	}

	keys := make([]string, 0, len(slots))
	for _, k := range slots {
		keys = append(keys, s.key(k))
	}
	return storeErr("redis", "del", s.client.WithContext(ctx).Del(keys...).Err())
}
