package mockapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errRevocationStore = errors.New("revocation store unavailable")

// revocations records logged-out token IDs until the token would have
// expired anyway.
type revocations struct {
	redis  redis.UniversalClient
	prefix string
}

func (r *revocations) key(jti string) string {
	return r.prefix + ":revoked:" + jti
}

func (r *revocations) revoke(ctx context.Context, jti string, until time.Time, now time.Time) error {
	ttl := until.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRevocationStore, err)
	}
	return nil
}

func (r *revocations) revoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errRevocationStore, err)
	}
	return n > 0, nil
}
