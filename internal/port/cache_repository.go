package port

import "context"

// CacheRepository is advisory fast-path state: request idempotency keys
// and duplicate-notification bookkeeping. It is never the source of
// truth for orders or stock.
type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// IncrementCounter bumps an observability counter and returns the new value.
	IncrementCounter(ctx context.Context, key string) (int64, error)
}
