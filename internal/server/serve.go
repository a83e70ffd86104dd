package server

import (
	"context"
	"fmt"

	"github.com/at-ishikawa/studydeck/internal/bootstrap"
	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
	"github.com/at-ishikawa/studydeck/internal/storage"
)

// Serve opens the configured store and serves the API until ctx is done or
// the process is signaled. The HTTP server is shut down before the store is
// closed.
func Serve(ctx context.Context, cfg *config.Config) error {
	app := bootstrap.New()

	repo, closeRepo, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage.Open() > %w", err)
	}
	app.AddShutdownHook(func(context.Context) error {
		return closeRepo()
	})

	sched := scheduler.New(repo)
	srv := NewHTTPServer(cfg.Server, New(cfg.Server, sched, repo))
	app.AddShutdownHook(srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		return ListenAndServe(srv, cfg.Server)
	})
}
