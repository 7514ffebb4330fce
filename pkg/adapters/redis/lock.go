package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1], so a
// holder whose lock already expired cannot release a successor's lock.
var compareAndDelete = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// CompareAndDelete implements ports.KVStore.
func (s *Store) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{s.key(key)}, value).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release %s: %w", key, err)
	}
	return n == 1, nil
}

// compareAndExpire extends KEYS[1] to ARGV[2] milliseconds only while it
// still holds ARGV[1].
var compareAndExpire = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// CompareAndExpire implements ports.KVStore.
func (s *Store) CompareAndExpire(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	n, err := compareAndExpire.Run(ctx, s.client, []string{s.key(key)}, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to extend %s: %w", key, err)
	}
	return n == 1, nil
}
