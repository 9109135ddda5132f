package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bookshelf/internal/library"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}))
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]any{"code": code, "message": msg},
	})
}

func TestLoginInstallsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/login", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])
		assert.Equal(t, true, body["remember_me"])
		writeData(t, w, http.StatusOK, Credentials{AccessToken: "acc", RefreshToken: "ref", UserID: "u1", DisplayName: "Ann"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	creds, err := c.Login(t.Context(), "a@b.c", "pw", true)

	require.NoError(t, err)
	assert.Equal(t, "u1", creds.UserID)
	assert.Equal(t, "acc", c.Credentials().AccessToken)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"conflict", http.StatusConflict, ErrConflict},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeErr(w, tt.status, "X", "nope")
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).GetBook(t.Context(), "b1")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("validation error keeps details", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error": map[string]any{
					"code": "VALIDATION_ERROR", "message": "Invalid input",
					"details": []map[string]string{{"field": "password", "message": "too weak"}},
				},
			})
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second).Register(t.Context(), "a@b.c", "ann", "x")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
		assert.Contains(t, apiErr.Error(), "password too weak")
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := New(url, time.Second).Search(t.Context(), "dune")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestAuthenticatedCallRefreshesOnce(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh":
			refreshes.Add(1)
			writeData(t, w, http.StatusOK, Credentials{AccessToken: "fresh", RefreshToken: "ref2", UserID: "u1"})
		case "/v1/me":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "expired")
				return
			}
			writeData(t, w, http.StatusOK, User{ID: "u1", Username: "ann"})
		}
	}))
	defer srv.Close()

	var persisted Credentials
	c := New(srv.URL, time.Second, WithRefreshHook(func(cr Credentials) { persisted = cr }))
	c.SetCredentials(&Credentials{AccessToken: "stale", RefreshToken: "ref1", UserID: "u1"})

	u, err := c.Me(t.Context())

	require.NoError(t, err)
	assert.Equal(t, "ann", u.Username)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, "ref2", persisted.RefreshToken)
	assert.Equal(t, "fresh", c.Credentials().AccessToken)
}

func TestRefreshFailureSurfacesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "no")
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	c.SetCredentials(&Credentials{AccessToken: "a", RefreshToken: "r", UserID: "u1"})

	_, err := c.Me(t.Context())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLibraryRoundTrip(t *testing.T) {
	var patched map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/me/library", r.URL.Path)
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			writeData(t, w, http.StatusOK, map[string]any{
				"exists":   true,
				"library":  []library.Entry{{Book: library.Book{ID: "B1"}, UserRating: 4}},
				"cabinets": []library.Cabinet{},
			})
		case http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			writeData(t, w, http.StatusOK, map[string]any{"exists": true})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	c.SetCredentials(&Credentials{AccessToken: "acc", UserID: "u1"})

	snap, exists, err := c.Fetch(t.Context(), "u1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, snap.Library, 1)
	assert.Equal(t, 4, snap.Library[0].UserRating)

	require.NoError(t, c.Merge(t.Context(), "u1", library.Snapshot{}))
	assert.JSONEq(t, `[]`, string(patched["library"]))
	assert.JSONEq(t, `[]`, string(patched["cabinets"]))

	assert.ErrorIs(t, c.Merge(t.Context(), "someone-else", library.Snapshot{}), ErrUnauthorized)
}

func TestLogoutClearsCredentialsEvenOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	c.SetCredentials(&Credentials{AccessToken: "a", RefreshToken: "r"})

	err := c.Logout(t.Context())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, c.Credentials())
}
