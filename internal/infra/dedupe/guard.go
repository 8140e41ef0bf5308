// Package dedupe records keys that must only be acted upon once, so that
// redelivered feed events do not repeat a side effect.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "dedupe:"

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Once reports true the first time key is seen within the TTL.
func (g *Redis) Once(ctx context.Context, key string) (bool, error) {
	first, err := g.rdb.SetNX(ctx, keyPrefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe %s: %w", key, err)
	}
	return first, nil
}

// Memory is the single-process variant used when Redis is not configured.
// Expired keys are pruned at most once per TTL.
type Memory struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *Memory) Once(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if at, ok := g.seen[key]; ok && now.Sub(at) < g.ttl {
		return false, nil
	}
	if now.Sub(g.lastSweep) >= g.ttl {
		for k, at := range g.seen {
			if now.Sub(at) >= g.ttl {
				delete(g.seen, k)
			}
		}
		g.lastSweep = now
	}
	g.seen[key] = now
	return true, nil
}
