// Command jigsawd runs the jigsaw session/state-mutation server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pommicket/jigsaw/internal/config"
	"github.com/pommicket/jigsaw/internal/jigsawd"
	"github.com/pommicket/jigsaw/internal/logging"
	"github.com/pommicket/jigsaw/internal/potd"
	"github.com/pommicket/jigsaw/internal/presence"
	"github.com/pommicket/jigsaw/internal/store"
	"github.com/pommicket/jigsaw/internal/tasks"
)

func main() {
	setupLogger()
	config.Init()
	cfg := config.Load()

	featured, err := potd.LoadFeaturedList(cfg.FeaturedListPath)
	if err != nil {
		slog.Warn("jigsawd.featured.load.failed", "error", err.Error(), "path", cfg.FeaturedListPath)
		featured = nil
	}

	st := store.NewMemStore(slog.Default())
	pres := presence.New(cfg.MaxPlayersPerPuzzle, slog.Default())
	cache := &potd.Cache{}
	fetcher := &potd.PythonFetcher{ScriptPath: cfg.PotDScriptPath}

	runner := tasks.New(tasks.Config{
		PuzzleTTL:        cfg.PuzzleTTL,
		SweepInterval:    cfg.SweepInterval,
		PotDGracePeriod:  cfg.PotDGracePeriod,
		PotDFetchTimeout: cfg.PotDFetchTimeout,
	}, slog.Default(), st, fetcher, cache)

	srv := jigsawd.New(cfg, slog.Default(), st, pres, featured, cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return runner.Run(gctx) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		slog.Error("jigsawd.fatal", "error", err.Error())
		os.Exit(1)
	}
}

func setupLogger() {
	opts := logging.DefaultOptions()
	opts.SlogOpts.Level = slog.LevelInfo

	h := logging.NewPrettyHandler(os.Stdout, &opts)
	l := slog.New(h)
	slog.SetDefault(l)
}
