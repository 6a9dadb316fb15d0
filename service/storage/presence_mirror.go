package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceMirror writes online state into redis for dashboards and the
// rest of the marketplace. The gateway's in-process registry stays
// authoritative; the TTL is a liveness bound in case the gateway dies
// without cleaning up.
type PresenceMirror struct {
	ttl time.Duration
}

func NewPresenceMirror(ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &PresenceMirror{ttl: ttl}
}

// presence key: gw:presence:<identity>
func presenceKey(identityID string) string { return "gw:presence:" + identityID }

func (m *PresenceMirror) Online(ctx context.Context, identityID string) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(identityID), time.Now().Format(time.RFC3339), m.ttl).Err()
}

func (m *PresenceMirror) Offline(ctx context.Context, identityID string) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Del(ctx, presenceKey(identityID)).Err()
}

// Lookup reports mirrored online state; used by health/debug surfaces,
// never by gateway decisions.
func (m *PresenceMirror) Lookup(ctx context.Context, identityID string) (bool, error) {
	if rdb == nil {
		return false, errors.New("redis not initialized")
	}
	_, err := rdb.Get(ctx, presenceKey(identityID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
