package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock takes a named lease for ttl. When another holder owns it,
// acquired is false and unlock is nil. The lease expires on its own if the
// holder dies before calling unlock.
func (r *RedisClient) TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(context.Context), acquired bool, err error) {
	key := r.generateKey("lease", name)
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrapf(err, "acquire lease %s", name)
	}
	if !ok {
		return nil, false, nil
	}

	unlock = func(ctx context.Context) {
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}
