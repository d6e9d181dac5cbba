package gating

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/saaga0h/motion-gate/internal/motion"
	"github.com/saaga0h/motion-gate/pkg/config"
	"github.com/saaga0h/motion-gate/pkg/redis"
)

// Storage handles Redis storage of per-device motion state
type Storage struct {
	redis      redis.Client
	maxHistory int
	ttl        time.Duration
	logger     *slog.Logger
}

// NewStorage creates a new storage handler
func NewStorage(redisClient redis.Client, cfg *config.Config, logger *slog.Logger) *Storage {
	return &Storage{
		redis:      redisClient,
		maxHistory: cfg.MaxStateHistory,
		ttl:        cfg.StateTTL(),
		logger:     logger,
	}
}

// StoreState writes the latest state and appends it to the history.
// Pattern:
// - motion:state:{device} (hash: state JSON, is_moving, updated_at)
// - motion:history:{device} (sorted set scored by sample timestamp)
func (s *Storage) StoreState(ctx context.Context, deviceID string, state motion.State) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal motion state: %w", err)
	}

	stateKey := redis.MotionStateKey(deviceID)
	if err := s.redis.HSet(ctx, stateKey, map[string]interface{}{
		"state":      string(jsonData),
		"is_moving":  strconv.FormatBool(state.IsMoving),
		"updated_at": strconv.FormatInt(state.Timestamp, 10),
	}); err != nil {
		return fmt.Errorf("failed to store motion state: %w", err)
	}

	historyKey := redis.MotionHistoryKey(deviceID)
	if err := s.redis.ZAdd(ctx, historyKey, float64(state.Timestamp), string(jsonData)); err != nil {
		return fmt.Errorf("failed to add motion state to history: %w", err)
	}

	// Keep only the newest maxHistory entries
	if err := s.redis.ZRemRangeByRank(ctx, historyKey, 0, -int64(s.maxHistory)-1); err != nil {
		s.logger.Warn("Failed to trim motion history", "device", deviceID, "error", err)
	}

	if s.ttl > 0 {
		for _, key := range []string{stateKey, historyKey} {
			if err := s.redis.Expire(ctx, key, s.ttl); err != nil {
				s.logger.Warn("Failed to set TTL", "key", key, "error", err)
			}
		}
	}

	return nil
}

// StoreTransition prepends a moving/still transition to the device's list.
// Pattern: motion:transitions:{device} (list, newest first)
func (s *Storage) StoreTransition(ctx context.Context, deviceID string, state motion.State) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}

	key := redis.MotionTransitionsKey(deviceID)
	if err := s.redis.LPush(ctx, key, string(jsonData)); err != nil {
		return fmt.Errorf("failed to store transition: %w", err)
	}
	if err := s.redis.LTrim(ctx, key, 0, int64(s.maxHistory)-1); err != nil {
		s.logger.Warn("Failed to trim transitions", "device", deviceID, "error", err)
	}
	if s.ttl > 0 {
		if err := s.redis.Expire(ctx, key, s.ttl); err != nil {
			s.logger.Warn("Failed to set TTL", "key", key, "error", err)
		}
	}
	return nil
}

// LoadState reads the latest stored state. Returns nil without error when
// the device has no state.
func (s *Storage) LoadState(ctx context.Context, deviceID string) (*motion.State, error) {
	fields, err := s.redis.HGetAll(ctx, redis.MotionStateKey(deviceID))
	if err != nil {
		return nil, fmt.Errorf("failed to load motion state: %w", err)
	}

	raw, ok := fields["state"]
	if !ok {
		return nil, nil
	}

	var state motion.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode motion state: %w", err)
	}
	return &state, nil
}

// LoadHistory reads up to limit of the newest stored states, oldest first
func (s *Storage) LoadHistory(ctx context.Context, deviceID string, limit int) ([]motion.State, error) {
	members, err := s.redis.ZRevRangeByScoreWithScores(ctx, redis.MotionHistoryKey(deviceID),
		math.Inf(1), math.Inf(-1), 0, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load motion history: %w", err)
	}

	states := make([]motion.State, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		var state motion.State
		if err := json.Unmarshal([]byte(members[i].Member), &state); err != nil {
			s.logger.Warn("Skipping undecodable history entry", "device", deviceID, "error", err)
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// LoadTransitions reads up to limit of the newest transitions, newest first
func (s *Storage) LoadTransitions(ctx context.Context, deviceID string, limit int) ([]motion.State, error) {
	values, err := s.redis.LRange(ctx, redis.MotionTransitionsKey(deviceID), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}

	states := make([]motion.State, 0, len(values))
	for _, v := range values {
		var state motion.State
		if err := json.Unmarshal([]byte(v), &state); err != nil {
			s.logger.Warn("Skipping undecodable transition", "device", deviceID, "error", err)
			continue
		}
		states = append(states, state)
	}
	return states, nil
}
