package catalog

import (
	"context"
	"errors"

	"bookshelf/internal/library"
	"bookshelf/internal/logging"
)

// Fallback asks each provider in turn until one has an answer.
type Fallback struct {
	providers []Provider
	logger    logging.Logger
}

func NewFallback(logger logging.Logger, providers ...Provider) *Fallback {
	return &Fallback{providers: providers, logger: logger}
}

// Search returns the first non-empty result. When nothing matched and any
// provider failed, the empty answer is incomplete and Search reports the
// failures instead.
func (f *Fallback) Search(ctx context.Context, query string) ([]library.Book, error) {
	var errs []error
	for i, p := range f.providers {
		books, err := p.Search(ctx, query)
		if err != nil {
			f.logger.Debug(ctx, "catalog provider search failed", "provider", i, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(books) > 0 {
			return books, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return []library.Book{}, nil
}

func (f *Fallback) GetByID(ctx context.Context, id string) (library.Book, error) {
	errs := []error{ErrNotFound}
	for _, p := range f.providers {
		book, err := p.GetByID(ctx, id)
		if err == nil {
			return book, nil
		}
		errs = append(errs, err)
	}
	return library.Book{}, errors.Join(errs...)
}
