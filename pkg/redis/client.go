package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saaga0h/motion-gate/pkg/config"
)

// redisClient implements the Client interface using go-redis
type redisClient struct {
	client *redis.Client
	cfg    *config.Config
	logger *slog.Logger
}

// NewClient creates a new Redis client with the given configuration
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddress(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 10,
	}

	client := redis.NewClient(opts)

	return &redisClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// HSet sets several fields of a hash in one call
func (r *redisClient) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	err := r.client.HSet(ctx, key, values).Err()
	if err != nil {
		return fmt.Errorf("failed to set hash %s: %w", key, err)
	}
	return nil
}

// HGetAll gets all fields from a hash
func (r *redisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	val, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get hash %s: %w", key, err)
	}
	return val, nil
}

// ZAdd adds a member with a score to a sorted set
func (r *redisClient) ZAdd(ctx context.Context, key string, score float64, member interface{}) error {
	err := r.client.ZAdd(ctx, key, redis.Z{
		Score:  score,
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add to sorted set %s: %w", key, err)
	}
	return nil
}

// ZRemRangeByRank removes members by rank, lowest score first
func (r *redisClient) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	err := r.client.ZRemRangeByRank(ctx, key, start, stop).Err()
	if err != nil {
		return fmt.Errorf("failed to remove from sorted set %s: %w", key, err)
	}
	return nil
}

// ZRevRangeByScoreWithScores returns members within a score range, highest first
func (r *redisClient) ZRevRangeByScoreWithScores(ctx context.Context, key string, max, min float64, offset, count int64) ([]ZMember, error) {
	vals, err := r.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Max:    strconv.FormatFloat(max, 'f', -1, 64),
		Min:    strconv.FormatFloat(min, 'f', -1, 64),
		Offset: offset,
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sorted set %s: %w", key, err)
	}

	members := make([]ZMember, 0, len(vals))
	for _, z := range vals {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		members = append(members, ZMember{Score: z.Score, Member: member})
	}
	return members, nil
}

// LPush pushes values to the head of a list
func (r *redisClient) LPush(ctx context.Context, key string, values ...interface{}) error {
	err := r.client.LPush(ctx, key, values...).Err()
	if err != nil {
		return fmt.Errorf("failed to push to list %s: %w", key, err)
	}
	return nil
}

// LTrim trims a list to the specified range
func (r *redisClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	err := r.client.LTrim(ctx, key, start, stop).Err()
	if err != nil {
		return fmt.Errorf("failed to trim list %s: %w", key, err)
	}
	return nil
}

// LRange returns a range of elements from a list
func (r *redisClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", key, err)
	}
	return vals, nil
}

// Expire sets a TTL on a key
func (r *redisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := r.client.Expire(ctx, key, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set expiration on key %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection to Redis
func (r *redisClient) Ping(ctx context.Context) error {
	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	r.logger.Info("Connected to Redis", "address", r.cfg.RedisAddress())
	return nil
}

// Close closes the Redis connection
func (r *redisClient) Close() error {
	r.logger.Info("Closing Redis connection")
	return r.client.Close()
}
