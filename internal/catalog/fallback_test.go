package catalog

import (
	"errors"
	"testing"
	"time"

	"bookshelf/internal/library"
	"bookshelf/internal/logging"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_Search(t *testing.T) {
	books := []library.Book{{ID: "OL:OL1W"}}

	t.Run("primary results win", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
		primary.EXPECT().Search(gomock.Any(), "q").Return([]library.Book{{ID: "G1"}}, nil)

		got, err := NewFallback(logging.Nop(), primary, secondary).Search(t.Context(), "q")

		require.NoError(t, err)
		assert.Equal(t, "G1", got[0].ID)
	})

	t.Run("empty or failing primary falls through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
		primary.EXPECT().Search(gomock.Any(), "q").Return(nil, errors.New("quota"))
		secondary.EXPECT().Search(gomock.Any(), "q").Return(books, nil)

		got, err := NewFallback(logging.Nop(), primary, secondary).Search(t.Context(), "q")

		require.NoError(t, err)
		assert.Equal(t, books, got)
	})

	t.Run("all failing is an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
		primary.EXPECT().Search(gomock.Any(), "q").Return(nil, errors.New("down"))
		secondary.EXPECT().Search(gomock.Any(), "q").Return(nil, errors.New("down too"))

		_, err := NewFallback(logging.Nop(), primary, secondary).Search(t.Context(), "q")
		assert.Error(t, err)
	})

	t.Run("failing primary and empty secondary is an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
		quota := errors.New("quota")
		primary.EXPECT().Search(gomock.Any(), "dune").Return(nil, quota)
		secondary.EXPECT().Search(gomock.Any(), "dune").Return([]library.Book{}, nil)

		_, err := NewFallback(logging.Nop(), primary, secondary).Search(t.Context(), "dune")
		assert.ErrorIs(t, err, quota)
	})

	t.Run("empty primary and failing secondary is an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
		primary.EXPECT().Search(gomock.Any(), "q").Return([]library.Book{}, nil)
		secondary.EXPECT().Search(gomock.Any(), "q").Return(nil, errors.New("down"))

		_, err := NewFallback(logging.Nop(), primary, secondary).Search(t.Context(), "q")
		assert.Error(t, err)
	})

	t.Run("every provider empty is an empty result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
		primary.EXPECT().Search(gomock.Any(), "q").Return([]library.Book{}, nil)
		secondary.EXPECT().Search(gomock.Any(), "q").Return(nil, nil)

		got, err := NewFallback(logging.Nop(), primary, secondary).Search(t.Context(), "q")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFallback_GetByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary, secondary := NewMockProvider(ctrl), NewMockProvider(ctrl)
	primary.EXPECT().GetByID(gomock.Any(), "OL:OL1W").Return(library.Book{}, errors.New("404"))
	secondary.EXPECT().GetByID(gomock.Any(), "OL:OL1W").Return(library.Book{ID: "OL:OL1W"}, nil)
	primary.EXPECT().GetByID(gomock.Any(), "x").Return(library.Book{}, errors.New("404"))
	secondary.EXPECT().GetByID(gomock.Any(), "x").Return(library.Book{}, errors.New("404"))

	f := NewFallback(logging.Nop(), primary, secondary)

	b, err := f.GetByID(t.Context(), "OL:OL1W")
	require.NoError(t, err)
	assert.Equal(t, "OL:OL1W", b.ID)

	_, err = f.GetByID(t.Context(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DegradedSearchIsNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	google, openLibrary := NewMockProvider(ctrl), NewMockProvider(ctrl)
	cache := NewMockCache(ctrl)
	svc := NewService(NewFallback(logging.Nop(), google, openLibrary), cache, time.Minute, logging.Nop())

	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), "catalog:search:dune").Return(nil, false, nil),
		google.EXPECT().Search(gomock.Any(), "dune").Return(nil, errors.New("503")),
		openLibrary.EXPECT().Search(gomock.Any(), "dune").Return([]library.Book{}, nil),

		cache.EXPECT().Get(gomock.Any(), "catalog:search:dune").Return(nil, false, nil),
		google.EXPECT().Search(gomock.Any(), "dune").Return([]library.Book{{ID: "G1"}}, nil),
		cache.EXPECT().Set(gomock.Any(), "catalog:search:dune", gomock.Any(), time.Minute).Return(nil),
	)

	assert.Empty(t, svc.Search(t.Context(), "dune"))
	got := svc.Search(t.Context(), "dune")
	require.Len(t, got, 1)
	assert.Equal(t, "G1", got[0].ID)
}
