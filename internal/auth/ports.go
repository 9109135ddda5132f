package auth

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=auth

import (
	"context"
	"time"

	"bookshelf/internal/session"
	"bookshelf/internal/user"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, sess *session.Session) error
	GetByTokenHash(ctx context.Context, hash string) (session.Session, error)
	DeleteByTokenHash(ctx context.Context, hash string) error
	AddToBlacklist(ctx context.Context, jti, userID string, expiresAt time.Time) error
}
