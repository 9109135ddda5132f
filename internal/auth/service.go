package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/logging"
	"bookshelf/internal/platform/crypto"
	"bookshelf/internal/session"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	accessTokenTTL     = 15 * time.Minute
	refreshTokenTTL    = 30 * 24 * time.Hour
	rememberRefreshTTL = 90 * 24 * time.Hour
	refreshTokenBytes  = 32
)

// Tokens is what a successful login or refresh hands back to the client.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
}

type Service struct {
	secret   string
	users    UserReader
	sessions SessionStore
	logger   logging.Logger
	now      func() time.Time
}

func NewService(secret string, users UserReader, sessions SessionStore, logger logging.Logger) *Service {
	return &Service{
		secret:   secret,
		users:    users,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func refreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return rememberRefreshTTL
	}
	return refreshTokenTTL
}

func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool, userAgent, ipAddress string) (Tokens, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || !crypto.VerifyPassword(u.PasswordHash, password) {
		return Tokens{}, ErrUnauthorized
	}

	refresh, err := crypto.RandomToken(refreshTokenBytes)
	if err != nil {
		return Tokens{}, err
	}
	sess := &session.Session{
		UserID:           u.ID,
		RefreshTokenHash: hashToken(refresh),
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		RememberMe:       rememberMe,
		ExpiresAt:        s.now().Add(refreshTTL(rememberMe)),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return Tokens{}, fmt.Errorf("create session: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn(ctx, "last login update failed", "user_id", u.ID, "error", err)
	}

	access, _, err := crypto.GenerateToken(s.secret, u.ID, u.Username, u.Role, accessTokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(accessTokenTTL.Seconds()),
		UserID:       u.ID,
		DisplayName:  u.Username,
	}, nil
}

// Refresh rotates a refresh token: the old session is deleted and a new one
// with the same remember-me policy is created.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	tokenHash := hashToken(refreshToken)
	sess, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return Tokens{}, ErrUnauthorized
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return Tokens{}, ErrUnauthorized
	}

	if err := s.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Tokens{}, ErrUnauthorized
		}
		return Tokens{}, err
	}

	refresh, err := crypto.RandomToken(refreshTokenBytes)
	if err != nil {
		return Tokens{}, err
	}
	next := sess
	next.ID = ""
	next.RefreshTokenHash = hashToken(refresh)
	next.ExpiresAt = s.now().Add(refreshTTL(sess.RememberMe))
	if err := s.sessions.Create(ctx, &next); err != nil {
		return Tokens{}, fmt.Errorf("create session: %w", err)
	}

	access, _, err := crypto.GenerateToken(s.secret, u.ID, u.Username, u.Role, accessTokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(accessTokenTTL.Seconds()),
		UserID:       u.ID,
		DisplayName:  u.Username,
	}, nil
}

// Logout revokes the access token and, when given, the refresh token.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken, userID string) error {
	claims, err := crypto.ParseToken(s.secret, accessToken)
	if err != nil {
		return ErrUnauthorized
	}

	expiresAt := s.now().Add(accessTokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.sessions.AddToBlacklist(ctx, claims.ID, userID, expiresAt); err != nil {
		return err
	}

	if refreshToken != "" {
		err := s.sessions.DeleteByTokenHash(ctx, hashToken(refreshToken))
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return err
		}
	}
	return nil
}
