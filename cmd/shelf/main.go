package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bookshelf/internal/apiclient"
	"bookshelf/internal/cli"
	"bookshelf/internal/config"
	"bookshelf/internal/localstore"
	"bookshelf/internal/logging"
	"bookshelf/internal/shelf"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
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

	kv, err := localstore.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer kv.Close()

	app := &cli.App{
		Sessions: cli.NewSessions(kv),
		Logger:   logger,
	}
	api := apiclient.New(cfg.APIURL, cfg.Timeout, apiclient.WithRefreshHook(app.RefreshHook()))
	store := shelf.New(kv, api, logger, shelf.WithWriteTimeout(cfg.Timeout))
	// Close drains pending writes before the database goes away.
	defer store.Close()

	app.Store = store
	app.Catalog = api
	app.Accounts = api

	return cli.NewRootCommand(app).ExecuteContext(ctx)
}
