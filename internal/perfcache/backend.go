package perfcache

import (
	"context"
	"time"
)

// Backend is the raw byte cache behind the read-through layer. Implementations
// must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
