package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgTable runs single statements against one table with a per-call deadline.
type pgTable struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	name    string
}

func (t pgTable) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	tag, err := t.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", t.name, err)
	}
	return tag.RowsAffected(), nil
}

func (t pgTable) scanOne(ctx context.Context, sql string, args []any, dest ...any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	err := t.pool.QueryRow(ctx, sql, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	return nil
}

func (t pgTable) purgeExpired(ctx context.Context) (int64, error) {
	return t.exec(ctx, "DELETE FROM "+t.name+" WHERE expires_at < now()")
}

// PostgresRepo stores refresh-token sessions.
type PostgresRepo struct {
	tbl pgTable
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{tbl: pgTable{pool: db, timeout: timeout, name: "sessions"}}
}

const insertSession = `
INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip_address, remember_me, expires_at)
VALUES (gen_random_uuid(), @user_id, @hash, @agent, @ip, @remember, @expires)
RETURNING id, created_at, last_used_at`

func (r *PostgresRepo) Create(ctx context.Context, s *Session) error {
	args := pgx.NamedArgs{
		"user_id":  s.UserID,
		"hash":     s.RefreshTokenHash,
		"agent":    s.UserAgent,
		"ip":       s.IPAddress,
		"remember": s.RememberMe,
		"expires":  s.ExpiresAt,
	}
	return r.tbl.scanOne(ctx, insertSession, []any{args}, &s.ID, &s.CreatedAt, &s.LastUsedAt)
}

const liveSessionByHash = `
SELECT id, user_id, refresh_token_hash, user_agent, ip_address, remember_me,
       expires_at, created_at, last_used_at
FROM sessions
WHERE refresh_token_hash = $1 AND expires_at > now()`

func (r *PostgresRepo) GetByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	var s Session
	err := r.tbl.scanOne(ctx, liveSessionByHash, []any{tokenHash},
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress,
		&s.RememberMe, &s.ExpiresAt, &s.CreatedAt, &s.LastUsedAt,
	)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// DeleteByTokenHash reports ErrNotFound when no row matched, so a refresh
// token can only be consumed once.
func (r *PostgresRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	n, err := r.tbl.exec(ctx, `DELETE FROM sessions WHERE refresh_token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CleanupExpired(ctx context.Context) (int64, error) {
	return r.tbl.purgeExpired(ctx)
}

// BlacklistPostgresRepo stores revoked access-token IDs until they expire.
type BlacklistPostgresRepo struct {
	tbl pgTable
}

func NewBlacklistPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *BlacklistPostgresRepo {
	return &BlacklistPostgresRepo{tbl: pgTable{pool: db, timeout: timeout, name: "token_blacklist"}}
}

func (r *BlacklistPostgresRepo) AddToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	_, err := r.tbl.exec(ctx, `
INSERT INTO token_blacklist (jti, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (jti) DO NOTHING`, jti, userID, expiresAt)
	return err
}

func (r *BlacklistPostgresRepo) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.tbl.scanOne(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1 AND expires_at > now())`,
		[]any{jti}, &revoked)
	return revoked, err
}

func (r *BlacklistPostgresRepo) CleanupExpired(ctx context.Context) (int64, error) {
	return r.tbl.purgeExpired(ctx)
}
