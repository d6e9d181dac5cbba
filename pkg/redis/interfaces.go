package redis

import (
	"context"
	"time"
)

// ZMember represents a sorted set member with its score
type ZMember struct {
	Score  float64
	Member string
}

// Client represents a Redis client interface for testing and abstraction
type Client interface {
	// HSet sets several fields of a hash in one call
	HSet(ctx context.Context, key string, values map[string]interface{}) error

	// HGetAll gets all fields from a hash
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// ZAdd adds a member with a score to a sorted set
	ZAdd(ctx context.Context, key string, score float64, member interface{}) error

	// ZRemRangeByRank removes members by rank, lowest score first
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error

	// ZRevRangeByScoreWithScores returns members in a sorted set within a score range with their scores (reverse order - highest first)
	ZRevRangeByScoreWithScores(ctx context.Context, key string, max, min float64, offset, count int64) ([]ZMember, error)

	// LPush pushes values to the head of a list
	LPush(ctx context.Context, key string, values ...interface{}) error

	// LTrim trims a list to the specified range
	LTrim(ctx context.Context, key string, start, stop int64) error

	// LRange returns a range of elements from a list
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Expire sets a TTL on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks the connection to Redis
	Ping(ctx context.Context) error

	// Close closes the Redis connection
	Close() error
}
