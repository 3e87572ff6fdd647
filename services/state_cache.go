package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StateCache keeps the latest SessionState per session in Redis. A nil
// client turns every call into a miss so the service runs without Redis.
type StateCache struct {
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewStateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateCache {
	return &StateCache{redis: client, ttl: ttl, log: logger}
}

func stateKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

func (c *StateCache) Enabled() bool {
	return c != nil && c.redis != nil
}

func (c *StateCache) Get(ctx context.Context, sessionID string) (*SessionState, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.redis.Get(ctx, stateKey(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("state cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, false
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		c.log.Warn("state cache entry is corrupt", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	return &state, true
}

func (c *StateCache) Set(ctx context.Context, sessionID string, state *SessionState) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		c.log.Error("failed to marshal session state", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, stateKey(sessionID), data, c.ttl).Err(); err != nil {
		c.log.Warn("state cache write failed", zap.String("session_id", sessionID), zap.Error(err))
		// never leave an older snapshot behind a failed write
		if err := c.redis.Del(ctx, stateKey(sessionID)).Err(); err != nil {
			c.log.Warn("state cache eviction failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}
