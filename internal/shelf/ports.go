package shelf

import (
	"context"

	"bookshelf/internal/library"
)

// Keys of the two local snapshot blobs.
const (
	LibraryKey  = "my_book_library"
	CabinetsKey = "my_book_cabinets"
)

// LocalStore holds string-keyed blobs on the user's machine. Get returns nil
// for a key that was never set.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RemoteStore holds one document per user. Merge replaces the document's
// library and cabinets without touching anything else stored with it.
type RemoteStore interface {
	Fetch(ctx context.Context, userID string) (snap library.Snapshot, exists bool, err error)
	Merge(ctx context.Context, userID string, snap library.Snapshot) error
}

// Identity is the signed-in user. A nil *Identity means anonymous.
type Identity struct {
	UserID      string
	DisplayName string
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID
}
