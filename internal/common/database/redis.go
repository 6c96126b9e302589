// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"forgevision/internal/common/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const readyTimeout = 2 * time.Second

// RedisClient holds the connection pool behind the Redis session backend.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds the pool from config. It does not dial; call Ping.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opTimeout := config.GetDuration(cfg.OpTimeout)
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping checks the server is reachable. Without a deadline on ctx it gives
// up after readyTimeout so /ready never hangs.
func (c *RedisClient) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, readyTimeout)
		defer cancel()
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// RegisterPoolMetrics exports connection pool gauges for the session
// backend.
func (c *RedisClient) RegisterPoolMetrics(reg prometheus.Registerer) error {
	gauges := []struct {
		name, help string
		value      func(*redis.PoolStats) uint32
	}{
		{"session_redis_pool_total_conns", "Connections in the session Redis pool", func(s *redis.PoolStats) uint32 { return s.TotalConns }},
		{"session_redis_pool_idle_conns", "Idle connections in the session Redis pool", func(s *redis.PoolStats) uint32 { return s.IdleConns }},
		{"session_redis_pool_timeouts", "Times a session Redis connection wait timed out", func(s *redis.PoolStats) uint32 { return s.Timeouts }},
	}

	for _, g := range gauges {
		value := g.value
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: g.name, Help: g.help}, func() float64 {
			return float64(value(c.Client.PoolStats()))
		})
		if err := reg.Register(collector); err != nil {
			return fmt.Errorf("register %s: %w", g.name, err)
		}
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
