package session

import (
	"context"
	"time"

	"bookshelf/internal/logging"
)

type Service struct {
	repo          Repository
	blacklistRepo BlacklistRepository
	logger        logging.Logger
}

func NewService(repo Repository, blacklistRepo BlacklistRepository, logger logging.Logger) *Service {
	return &Service{
		repo:          repo,
		blacklistRepo: blacklistRepo,
		logger:        logger,
	}
}

func (s *Service) Create(ctx context.Context, sess *Session) error {
	return s.repo.Create(ctx, sess)
}

func (s *Service) GetByTokenHash(ctx context.Context, hash string) (Session, error) {
	return s.repo.GetByTokenHash(ctx, hash)
}

func (s *Service) DeleteByTokenHash(ctx context.Context, hash string) error {
	return s.repo.DeleteByTokenHash(ctx, hash)
}

func (s *Service) AddToBlacklist(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	return s.blacklistRepo.AddToken(ctx, jti, userID, expiresAt)
}

// IsBlacklisted satisfies httpx.BlacklistChecker.
func (s *Service) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return s.blacklistRepo.IsBlacklisted(ctx, jti)
}

// Cleanup removes expired sessions and blacklist rows.
func (s *Service) Cleanup(ctx context.Context) {
	if n, err := s.repo.CleanupExpired(ctx); err != nil {
		s.logger.Warn(ctx, "session cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info(ctx, "expired sessions removed", "count", n)
	}
	if n, err := s.blacklistRepo.CleanupExpired(ctx); err != nil {
		s.logger.Warn(ctx, "blacklist cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info(ctx, "expired blacklist entries removed", "count", n)
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}
