package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/config"
)

const redisDialTimeout = 2 * time.Second

// Redis holds the identity cache connection. Reachability is checked by the
// readiness probe, and changes are logged once per transition.
type Redis struct {
	Client *redis.Client
	logger *zap.Logger

	mu        sync.Mutex
	reachable *bool
}

// NewRedis builds a lazily connecting client. Nothing is dialled until the first
// command or readiness check.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})
	logger.Info("identity cache configured", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Redis{Client: client, logger: logger}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity for the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	err := r.Client.Ping(ctx).Err()
	r.observe(err)
	return err
}

func (r *Redis) observe(err error) {
	up := err == nil

	r.mu.Lock()
	changed := r.reachable == nil || *r.reachable != up
	r.reachable = &up
	r.mu.Unlock()

	if !changed {
		return
	}
	if up {
		r.logger.Info("identity cache reachable")
		return
	}
	r.logger.Warn("identity cache unreachable", zap.Error(err))
}
