package cli

import (
	"context"

	"bookshelf/internal/apiclient"
	"bookshelf/internal/library"
)

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=cli

// Catalog looks books up on the server.
type Catalog interface {
	Search(ctx context.Context, query string) ([]library.Book, error)
	GetBook(ctx context.Context, id string) (library.Book, error)
}

// Accounts manages the server-side account and the client's tokens.
type Accounts interface {
	Register(ctx context.Context, email, username, password string) (apiclient.User, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (apiclient.Credentials, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (apiclient.User, error)
	SetCredentials(creds *apiclient.Credentials)
}

// KV is the local key-value store the session is kept in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
