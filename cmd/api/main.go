package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/config"
	"bookshelf/internal/document"
	"bookshelf/internal/httpx"
	"bookshelf/internal/logging"
	"bookshelf/internal/platform/googlebooks"
	"bookshelf/internal/platform/openlibrary"
	"bookshelf/internal/session"
	"bookshelf/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const sessionCleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	logger.Info(ctx, "database connection OK")

	checks := []readinessCheck{{name: "postgres", ping: dbPool.Ping}}

	var cache catalog.Cache = catalog.NopCache{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, catalog cache will miss until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		cache = catalog.NewRedisCache(rdb)
		checks = append(checks, readinessCheck{name: "redis", ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	userRepo := user.NewPostgresRepo(dbPool, cfg.DBTimeout)
	sessionRepo := session.NewPostgresRepo(dbPool, cfg.DBTimeout)
	blacklistRepo := session.NewBlacklistPostgresRepo(dbPool, cfg.DBTimeout)
	documentRepo := document.NewPostgresRepo(dbPool, cfg.DBTimeout)

	userService := user.NewService(userRepo)
	sessionService := session.NewService(sessionRepo, blacklistRepo, logger)
	authService := auth.NewService(cfg.JWTSecret, userService, sessionService, logger)
	documentService := document.NewService(documentRepo)

	books := googlebooks.NewClient(googlebooks.Options{
		BaseURL:    cfg.GoogleBooks.BaseURL,
		APIKey:     cfg.GoogleBooks.APIKey,
		Language:   cfg.GoogleBooks.Language,
		MaxResults: cfg.GoogleBooks.MaxResults,
		RPS:        cfg.GoogleBooks.RPS,
		MaxRetries: cfg.GoogleBooks.MaxRetries,
	})
	var provider catalog.Provider = books
	if cfg.OpenLibrary.Enabled {
		provider = catalog.NewFallback(logger, books, openlibrary.NewClient(openlibrary.Options{
			BaseURL:    cfg.OpenLibrary.BaseURL,
			UserAgent:  cfg.OpenLibrary.UserAgent,
			Limit:      cfg.GoogleBooks.MaxResults,
			RPS:        cfg.OpenLibrary.RPS,
			MaxRetries: cfg.OpenLibrary.MaxRetries,
		}))
	}
	catalogService := catalog.NewService(provider, cache, cfg.Redis.CacheTTL, logger)

	router := newRouter(handlers{
		users:     user.NewHTTPHandler(userService),
		auth:      auth.NewHTTPHandler(authService),
		catalog:   catalog.NewHTTPHandler(catalogService),
		documents: document.NewHTTPHandler(documentService),
	}, httpx.AuthMiddleware(cfg.JWTSecret, sessionService), checks)

	rateLimiter := httpx.NewRateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx)
	go sessionService.RunCleanup(ctx, sessionCleanupInterval)

	handler := httpx.Chain(router,
		httpx.RecoveryMiddleware(logger),
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(logger),
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
		rateLimiter.Middleware,
	)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", redactDSN(dsn), err)
	}
	return pool, nil
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
