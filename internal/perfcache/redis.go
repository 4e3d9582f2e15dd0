package perfcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Backend on a shared redis instance, for deployments running more
// than one engine replica.
type Redis struct {
	Client *redis.Client
}

func NewRedis(opt *redis.Options) *Redis {
	return &Redis{Client: redis.NewClient(opt)}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}
