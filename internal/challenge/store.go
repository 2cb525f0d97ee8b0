package challenge

import (
	"context"
	"time"
)

// TokenStore is the expiring cache holding one challenge token per hashed
// identity. Get returns sentinel.ErrNotFound for absent or expired entries.
// Consume deletes the entry only if it still holds expected and reports
// whether this call removed it; of concurrent callers at most one sees true.
type TokenStore interface {
	Set(ctx context.Context, hashedID, token string, ttl time.Duration) error
	Get(ctx context.Context, hashedID string) (string, error)
	Consume(ctx context.Context, hashedID, expected string) (bool, error)
	Delete(ctx context.Context, hashedID string) error
}
