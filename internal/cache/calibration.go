package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quantcore/internal/domain/models"
)

// CalibrationCache holds recent calibration snapshots so API reads do
// not re-fit the law on every request. The decision engine bypasses
// this cache and always recomputes.
type CalibrationCache interface {
	Get(ctx context.Context, ticker string) (*models.Calibration, bool)
	Put(ctx context.Context, ticker string, cal *models.Calibration)
}

type memEntry struct {
	cal *models.Calibration
	exp time.Time
}

// MemoryCalibrationCache is an in-process TTL cache.
type MemoryCalibrationCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]memEntry
}

func NewMemoryCalibrationCache(ttl time.Duration) *MemoryCalibrationCache {
	return &MemoryCalibrationCache{ttl: ttl, m: make(map[string]memEntry)}
}

func (c *MemoryCalibrationCache) Get(_ context.Context, ticker string) (*models.Calibration, bool) {
	c.mu.RLock()
	e, ok := c.m[ticker]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, ticker)
		c.mu.Unlock()
		return nil, false
	}
	return e.cal, true
}

func (c *MemoryCalibrationCache) Put(_ context.Context, ticker string, cal *models.Calibration) {
	c.mu.Lock()
	c.m[ticker] = memEntry{cal: cal, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// RedisCalibrationCache shares calibration snapshots across processes.
// Misses and marshal failures degrade to a recompute, never an error.
type RedisCalibrationCache struct {
	cli *redis.Client
	ttl time.Duration
}

func NewRedisCalibrationCache(cli *redis.Client, ttl time.Duration) *RedisCalibrationCache {
	return &RedisCalibrationCache{cli: cli, ttl: ttl}
}

func (c *RedisCalibrationCache) Get(ctx context.Context, ticker string) (*models.Calibration, bool) {
	b, err := c.cli.Get(ctx, c.key(ticker)).Bytes()
	if err != nil {
		return nil, false
	}
	var cal models.Calibration
	if err := json.Unmarshal(b, &cal); err != nil {
		return nil, false
	}
	return &cal, true
}

func (c *RedisCalibrationCache) Put(ctx context.Context, ticker string, cal *models.Calibration) {
	b, err := json.Marshal(cal)
	if err != nil {
		return
	}
	c.cli.Set(ctx, c.key(ticker), b, c.ttl)
}

func (c *RedisCalibrationCache) key(ticker string) string {
	return "quantcore:calibration:" + ticker
}
