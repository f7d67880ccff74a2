package jurisdiction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisclient "custodia/internal/platform/redis"
	id "custodia/pkg/domain"
)

// permissionCacheTTL bounds staleness of cached permission lookups. Short on
// purpose: a withdrawn permission must stop working quickly.
const permissionCacheTTL = 30 * time.Second

// CachedPermissionStore decorates a PermissionStore with a Redis
// look-aside cache. Cache failures degrade to the underlying store; they
// never surface to the decision path.
type CachedPermissionStore struct {
	inner  PermissionStore
	client *redisclient.Client
	logger *slog.Logger
}

// NewCachedPermissionStore wraps inner with a Redis cache. If client is nil
// the inner store is returned unwrapped.
func NewCachedPermissionStore(inner PermissionStore, client *redisclient.Client, logger *slog.Logger) PermissionStore {
	if client == nil {
		return inner
	}
	return &CachedPermissionStore{inner: inner, client: client, logger: logger}
}

func (s *CachedPermissionStore) FindActivePermission(ctx context.Context, userID id.UserID, jurisdiction string) (bool, error) {
	key := "permission:" + userID.String() + ":" + jurisdiction

	val, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case errors.Is(err, goredis.Nil):
		// Cache miss; fall through to the store.
	default:
		if s.logger != nil {
			s.logger.WarnContext(ctx, "permission cache read failed", "error", err)
		}
	}

	found, err := s.inner.FindActivePermission(ctx, userID, jurisdiction)
	if err != nil {
		return false, err
	}

	cached := "0"
	if found {
		cached = "1"
	}
	if err := s.client.Set(ctx, key, cached, permissionCacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "permission cache write failed", "error", err)
	}
	return found, nil
}
