// Package jigsawd bootstraps the jigsaw server: it owns the websocket
// accept loop and hands each accepted connection to its own
// session.Session. The background tasks.Runner is started next to it by
// cmd/jigsawd, not by this package.
package jigsawd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pommicket/jigsaw/internal/config"
	"github.com/pommicket/jigsaw/internal/potd"
	"github.com/pommicket/jigsaw/internal/presence"
	"github.com/pommicket/jigsaw/internal/session"
	"github.com/pommicket/jigsaw/internal/store"
)

// Server accepts websocket connections at cfg.BindAddr and runs one
// session.Session per connection.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	store    store.Store
	presence *presence.Tracker
	featured *potd.FeaturedList
	potd     *potd.Cache

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New returns a Server. The collaborators are constructed by the caller
// (cmd/jigsawd) so tests elsewhere can wire a Server against a
// store.MemStore instead of the production store.
func New(
	cfg *config.Config,
	log *slog.Logger,
	st store.Store,
	pres *presence.Tracker,
	featured *potd.FeaturedList,
	potdCache *potd.Cache,
) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg:      cfg,
		log:      log.With("component", "jigsawd"),
		store:    st,
		presence: pres,
		featured: featured,
		potd:     potdCache,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The jigsaw is meant to be embedded on arbitrary pages and
			// joined from arbitrary origins; there is no session cookie
			// or credential for a malicious origin to ride on.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run probes (and if necessary creates) the backing schema, then serves
// until ctx is canceled. It always returns a non-nil error except on a
// clean shutdown triggered by ctx.
func (s *Server) Run(ctx context.Context) error {
	if err := s.store.Probe(ctx); err != nil {
		s.log.Warn("jigsawd.store.probe.failed", "error", err.Error())
		if err := s.store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("jigsawd: ensure schema: %w", err)
		}
		s.log.Info("jigsawd.store.schema.created")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)

	s.httpSrv = &http.Server{
		Addr:        s.cfg.BindAddr,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("jigsawd.listen", "addr", s.cfg.BindAddr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("jigsawd: shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("jigsawd: listen: %w", err)
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("jigsawd.upgrade.failed", "error", err.Error())
		return
	}

	sess := session.New(conn, s.store, s.presence, s.featured, s.potd, s.cfg, s.log)

	// Each session runs on its own goroutine for the lifetime of the
	// connection; session.Session.Run owns cleanup (presence decrement,
	// conn.Close) on every exit path, so nothing here needs to track it
	// beyond letting it run.
	go func() {
		_ = sess.Run(r.Context())
	}()
}
