package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const userKeyPrefix = "grievance:identity:user:"

// CachedDirectory is a read-through Redis cache in front of another directory.
// Only successful user lookups are cached; supervisor resolution always goes to the source.
type CachedDirectory struct {
	next   IdentityDirectory
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next. A nil client or non-positive ttl returns next unchanged.
func NewCachedDirectory(next IdentityDirectory, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) IdentityDirectory {
	if client == nil || ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

// GetUser serves from cache when possible. Cache failures fall through to the source.
func (d *CachedDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	key := userKeyPrefix + id
	raw, err := d.client.Get(ctx, key).Bytes()
	if err == nil {
		var user User
		if jsonErr := json.Unmarshal(raw, &user); jsonErr == nil {
			return &user, nil
		}
	} else if err != redis.Nil {
		d.logger.Debug("identity cache read failed", zap.String("key", key), zap.Error(err))
	}

	user, err := d.next.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(user); jsonErr == nil {
		if setErr := d.client.Set(ctx, key, payload, d.ttl).Err(); setErr != nil {
			d.logger.Debug("identity cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return user, nil
}

// SupervisorForDepartment delegates without caching.
func (d *CachedDirectory) SupervisorForDepartment(ctx context.Context, departmentID string) (string, error) {
	return d.next.SupervisorForDepartment(ctx, departmentID)
}
