package database

import (
	"context"
	"testing"
	"time"

	"forgevision/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, addr string) *RedisClient {
	t.Helper()
	rc, err := NewRedis(config.RedisConfig{
		Address:      addr,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  500,
		OpTimeout:    500,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	require.Error(t, err)
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := newTestClient(t, mr.Addr())

	require.NoError(t, rc.Ping(context.Background()))
	assert.Equal(t, 4, rc.GetClient().Options().PoolSize)
	assert.Equal(t, 500*time.Millisecond, rc.GetClient().Options().ReadTimeout)
}

func TestRedisClient_PingFailsWhenServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := newTestClient(t, mr.Addr())
	mr.Close()

	err := rc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRedisClient_RegisterPoolMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := newTestClient(t, mr.Addr())
	require.NoError(t, rc.Ping(context.Background()))

	reg := prometheus.NewRegistry()
	require.NoError(t, rc.RegisterPoolMetrics(reg))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Contains(t, values, "session_redis_pool_total_conns")
	assert.Contains(t, values, "session_redis_pool_idle_conns")
	assert.Contains(t, values, "session_redis_pool_timeouts")
	assert.GreaterOrEqual(t, values["session_redis_pool_total_conns"], float64(1))

	assert.Error(t, rc.RegisterPoolMetrics(reg), "duplicate registration is rejected")
}
