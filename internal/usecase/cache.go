package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/face-match/internal/verifier"
)

// Cache abstracts the Redis operations used by the use case to make testing easier.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// IsMiss reports whether err means the key was not present.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

func digest(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// verdictKey identifies a verdict by model, detector and the content of
// both images, so renamed uploads still hit.
func verdictKey(opts verifier.Options, targetHash string, comparison []byte) string {
	return fmt.Sprintf("facematch:verdict:%s:%s:%s:%s", opts.Model, opts.Detector, targetHash, digest(comparison))
}

func encodeVerdict(verified bool) string {
	if verified {
		return "true"
	}
	return "false"
}

func decodeVerdict(value string) (bool, bool) {
	switch value {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
