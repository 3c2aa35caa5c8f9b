package ports

import (
	"context"
	"time"
)

// Cache is a best-effort key-value store for derived data such as the last
// allocation run summary. Nothing reads it for correctness.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
