package catalog

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=catalog

import (
	"context"
	"time"

	"bookshelf/internal/library"
)

// Provider is the external catalog the service proxies.
type Provider interface {
	Search(ctx context.Context, query string) ([]library.Book, error)
	GetByID(ctx context.Context, id string) (library.Book, error)
}

// Cache stores encoded catalog responses. Get reports a miss with false and
// a nil error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
