package document

import (
	"context"
	"errors"

	"bookshelf/internal/library"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's snapshot and whether a document exists. A missing
// document is not an error.
func (s *Service) Get(ctx context.Context, userID string) (library.Snapshot, bool, error) {
	doc, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return library.Snapshot{Library: []library.Entry{}, Cabinets: []library.Cabinet{}}, false, nil
		}
		return library.Snapshot{}, false, err
	}
	return doc.Snapshot(), true, nil
}

func (s *Service) Merge(ctx context.Context, userID string, p Patch) (library.Snapshot, error) {
	doc, err := s.repo.Merge(ctx, userID, p)
	if err != nil {
		return library.Snapshot{}, err
	}
	return doc.Snapshot(), nil
}
