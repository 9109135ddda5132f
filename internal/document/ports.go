package document

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=document

import (
	"context"
)

type Repository interface {
	// Get returns ErrNotFound when the user has no document yet.
	Get(ctx context.Context, userID string) (Document, error)
	// Merge creates the document if needed and replaces the fields set in p.
	Merge(ctx context.Context, userID string, p Patch) (Document, error)
}
