// internal/session/store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forgevision/internal/common/config"
	"forgevision/internal/common/database"
	"forgevision/internal/models"
)

var ErrNotFound = errors.New("RESULT_NOT_FOUND")

// Store holds at most one current RenderResult per session. Put replaces,
// Clear removes, and neither touches any other session.
type Store interface {
	Get(ctx context.Context, sessionID string) (*models.RenderResult, error)
	Put(ctx context.Context, sessionID string, result *models.RenderResult) error
	Clear(ctx context.Context, sessionID string) error
}

// New builds the store selected by cfg.Backend. rc is only used by the
// redis backend and may be nil otherwise.
func New(cfg config.SessionConfig, rc *database.RedisClient) (Store, error) {
	ttl := time.Duration(cfg.TTL) * time.Second

	switch cfg.Backend {
	case "", config.SessionBackendMemory:
		return NewMemoryStore(ttl), nil
	case config.SessionBackendRedis:
		if rc == nil || rc.Client == nil {
			return nil, fmt.Errorf("redis session backend requires a redis client")
		}
		return NewRedisStore(rc.Client, cfg.KeyPrefix, ttl), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
