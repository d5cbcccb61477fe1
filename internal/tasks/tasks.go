// Package tasks runs the two background loops of spec §4.6, independent
// of any session: the daily picture-of-the-day refresh and the hourly
// puzzle sweep.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pommicket/jigsaw/internal/potd"
	"github.com/pommicket/jigsaw/internal/retry"
	"github.com/pommicket/jigsaw/internal/store"
)

// Config controls the timing of both loops.
type Config struct {
	PuzzleTTL        time.Duration
	SweepInterval    time.Duration
	PotDGracePeriod  time.Duration
	PotDFetchTimeout time.Duration
}

// Runner owns the PotD cache, the fetcher, and the store, and drives both
// loops. It is grounded on the teacher's peer.Swarm, which runs several
// independent ticker loops under one errgroup.Group (statsLoop,
// chokeLoop, maintenanceLoop) alongside the accept-adjacent peerDialerLoop.
type Runner struct {
	cfg     Config
	log     *slog.Logger
	store   store.Store
	fetcher potd.Fetcher
	cache   *potd.Cache

	// now is overridable in tests so the daily-refresh scheduling logic
	// doesn't have to wait for a real UTC midnight.
	now func() time.Time
}

// New returns a Runner. cache is shared with the session layer, which
// reads it to answer wikimediaPotd.
func New(cfg Config, log *slog.Logger, st store.Store, fetcher potd.Fetcher, cache *potd.Cache) *Runner {
	if log == nil {
		log = slog.Default()
	}

	return &Runner{
		cfg:     cfg,
		log:     log.With("component", "tasks"),
		store:   st,
		fetcher: fetcher,
		cache:   cache,
		now:     time.Now,
	}
}

// Run blocks, driving both loops until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.potdLoop(gctx) })
	g.Go(func() error { return r.sweepLoop(gctx) })

	return g.Wait()
}

func (r *Runner) potdLoop(ctx context.Context) error {
	l := r.log.With("loop", "potd")
	l.Info("loop.start")

	for {
		wait := r.untilNextRefresh()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.Info("loop.exit", "reason", "ctx")
			return nil
		case <-timer.C:
		}

		r.refreshOnce(ctx, l)
	}
}

// untilNextRefresh computes the delay until 60 seconds past the next UTC
// midnight, per spec §4.6 ("grace interval so the upstream has
// published").
func (r *Runner) untilNextRefresh() time.Duration {
	now := r.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	target := midnight.Add(r.cfg.PotDGracePeriod)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now)
}

func (r *Runner) refreshOnce(ctx context.Context, l *slog.Logger) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.PotDFetchTimeout)
	defer cancel()

	var url string
	err := retry.Do(fetchCtx, func(ctx context.Context) error {
		u, err := r.fetcher.Fetch(ctx)
		if err != nil {
			return err
		}
		url = u
		return nil
	}, retry.WithExponentialBackoff(3, time.Second, 10*time.Second)...)

	if err != nil {
		l.Warn("potd.refresh.failed", "error", err.Error())
		return
	}

	r.cache.Set(url)
	l.Info("potd.refresh.ok", "url", url)
}

func (r *Runner) sweepLoop(ctx context.Context) error {
	l := r.log.With("loop", "sweep")
	l.Info("loop.start")

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Info("loop.exit", "reason", "ctx")
			return nil

		case <-ticker.C:
			n, err := r.store.Sweep(ctx, r.cfg.PuzzleTTL)
			if err != nil {
				l.Warn("sweep.failed", "error", err.Error())
				continue
			}
			if n > 0 {
				l.Info("sweep.ok", "removed", n)
			}
		}
	}
}
