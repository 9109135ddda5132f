package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bookshelf/internal/library"
	"bookshelf/internal/logging"
)

var ErrNotFound = errors.New("book not found")

const (
	searchKeyPrefix = "catalog:search:"
	bookKeyPrefix   = "catalog:book:"
)

type Service struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	logger   logging.Logger
}

func NewService(provider Provider, cache Cache, ttl time.Duration, logger logging.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{provider: provider, cache: cache, ttl: ttl, logger: logger}
}

// Search never fails: provider errors are logged and yield an empty result.
func (s *Service) Search(ctx context.Context, query string) []library.Book {
	query = strings.TrimSpace(query)
	if query == "" {
		return []library.Book{}
	}

	key := searchKeyPrefix + strings.ToLower(query)
	var cached []library.Book
	if s.fromCache(ctx, key, &cached) {
		return cached
	}

	books, err := s.provider.Search(ctx, query)
	if err != nil {
		s.logger.Warn(ctx, "catalog search failed", "query", query, "error", err)
		return []library.Book{}
	}
	if books == nil {
		books = []library.Book{}
	}
	s.toCache(ctx, key, books)
	return books
}

// GetByID returns ErrNotFound both for unknown IDs and when the provider
// cannot be reached.
func (s *Service) GetByID(ctx context.Context, id string) (library.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return library.Book{}, ErrNotFound
	}

	key := bookKeyPrefix + id
	var cached library.Book
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	book, err := s.provider.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn(ctx, "catalog lookup failed", "book_id", id, "error", err)
		return library.Book{}, ErrNotFound
	}
	s.toCache(ctx, key, book)
	return book, nil
}

func (s *Service) fromCache(ctx context.Context, key string, target any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "catalog cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		s.logger.Warn(ctx, "catalog cache entry malformed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) toCache(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn(ctx, "catalog cache write failed", "key", key, "error", err)
	}
}
