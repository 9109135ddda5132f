package main

import (
	"context"
	"net/http"
	"time"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/document"
	"bookshelf/internal/user"

	"golang.org/x/sync/errgroup"
)

// readinessCheck pings one backing service.
type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

type handlers struct {
	users     *user.HTTPHandler
	auth      *auth.HTTPHandler
	catalog   *catalog.HTTPHandler
	documents *document.HTTPHandler
}

func newRouter(h handlers, protect func(http.Handler) http.Handler, checks []readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", readyz(checks))

	mux.HandleFunc("POST /v1/users/register", h.users.RegisterUser)
	mux.HandleFunc("POST /v1/users/login", h.auth.Login)
	mux.HandleFunc("POST /v1/auth/refresh", h.auth.RefreshToken)
	mux.Handle("POST /v1/auth/logout", protect(http.HandlerFunc(h.auth.Logout)))
	mux.Handle("GET /v1/me", protect(http.HandlerFunc(h.users.GetCurrentUser)))

	mux.HandleFunc("GET /v1/catalog/search", h.catalog.Search)
	mux.HandleFunc("GET /v1/catalog/books/{id}", h.catalog.GetByID)

	mux.Handle("GET /v1/me/library", protect(http.HandlerFunc(h.documents.GetLibrary)))
	mux.Handle("PATCH /v1/me/library", protect(http.HandlerFunc(h.documents.PatchLibrary)))

	return mux
}

func readyz(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		for _, c := range checks {
			g.Go(func() error {
				if err := c.ping(ctx); err != nil {
					return &notReadyError{name: c.name, err: err}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

type notReadyError struct {
	name string
	err  error
}

func (e *notReadyError) Error() string { return e.name + " not ready" }

func (e *notReadyError) Unwrap() error { return e.err }
