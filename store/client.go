package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const settingsChannel = "settings:invalidate"

// RedisClient carries cross-instance events. Settings edits are announced on
// a pub/sub channel so every instance drops its cached snapshot.
type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(ctx context.Context, addr, password string, db int, prefix string) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}

	return &RedisClient{
		client: rdb,
		prefix: prefix,
	}, nil
}

func (r *RedisClient) generateKey(keys ...string) string {
	return strings.Join(append([]string{r.prefix}, keys...), ":")
}

// PublishSettingsChanged tells every subscriber to reload settings.
func (r *RedisClient) PublishSettingsChanged(ctx context.Context) error {
	payload := strconv.FormatInt(time.Now().Unix(), 10)
	err := r.client.Publish(ctx, r.generateKey(settingsChannel), payload).Err()
	return errors.Wrap(err, "publish settings change")
}

// SettingsChanges delivers one signal per received invalidation. Bursts are
// coalesced. The channel closes when ctx is done.
func (r *RedisClient) SettingsChanges(ctx context.Context) <-chan struct{} {
	sub := r.client.Subscribe(ctx, r.generateKey(settingsChannel))
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
