package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bookshelf/internal/library"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const volumeJSON = `{
  "id": "zyTCAlFPjgYC",
  "volumeInfo": {
    "title": "L'Étranger",
    "authors": ["Albert Camus"],
    "publisher": "Gallimard",
    "publishedDate": "1942",
    "pageCount": 184,
    "categories": ["Fiction"],
    "industryIdentifiers": [
      {"type": "ISBN_10", "identifier": "2070360024"},
      {"type": "ISBN_13", "identifier": "9782070360024"}
    ],
    "imageLinks": {"thumbnail": "http://books.google.com/thumb.jpg"}
  }
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, Language: "fr", RPS: 1000, MaxRetries: 2, HTTPClient: srv.Client()})
	c.backoff = time.Millisecond
	return c
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "camus", r.URL.Query().Get("q"))
		assert.Equal(t, "fr", r.URL.Query().Get("langRestrict"))
		assert.Equal(t, "20", r.URL.Query().Get("maxResults"))
		_, _ = w.Write([]byte(`{"totalItems": 2, "items": [` + volumeJSON + `, {"id": "x2", "volumeInfo": {"title": "Bare"}}]}`))
	})

	books, err := c.Search(context.Background(), "  camus ")
	require.NoError(t, err)
	require.Len(t, books, 2)

	want := library.Book{
		ID:            "zyTCAlFPjgYC",
		Title:         "L'Étranger",
		Authors:       []string{"Albert Camus"},
		Description:   noDescription,
		Thumbnail:     "https://books.google.com/thumb.jpg",
		ISBN:          "9782070360024",
		PublishedDate: "1942",
		PageCount:     184,
		Categories:    []string{"Fiction"},
		Publisher:     "Gallimard",
	}
	if diff := cmp.Diff(want, books[0]); diff != "" {
		t.Fatalf("book mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{unknownAuthor}, books[1].Authors)
	assert.Empty(t, books[1].ISBN)
}

func TestClient_SearchEmptyQuerySkipsAPI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})

	books, err := c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestClient_SearchNoItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})

	books, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestClient_GetByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/volumes/zyTCAlFPjgYC":
			_, _ = w.Write([]byte(volumeJSON))
		default:
			http.NotFound(w, r)
		}
	})

	book, err := c.GetByID(context.Background(), "zyTCAlFPjgYC")
	require.NoError(t, err)
	assert.Equal(t, "L'Étranger", book.Title)

	_, err = c.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(volumeJSON))
	})

	book, err := c.GetByID(context.Background(), "zyTCAlFPjgYC")
	require.NoError(t, err)
	assert.Equal(t, "zyTCAlFPjgYC", book.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "camus")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Search(context.Background(), "camus")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
