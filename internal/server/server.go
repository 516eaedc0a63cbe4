// Package server exposes the catalog over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cdtdelta/backlog/internal/catalog"
	"github.com/cdtdelta/backlog/internal/igdb"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 10 * time.Second

// Catalog provides row snapshots. *catalog.Catalog implements it.
type Catalog interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
	Age() (time.Duration, bool)
}

// Finder proxies metadata lookups. *igdb.Client implements it.
type Finder interface {
	Token(ctx context.Context) (string, error)
	FindGames(ctx context.Context, token, term string) ([]igdb.Candidate, error)
}

// Config holds the server settings.
type Config struct {
	Addr       string
	AdminToken string
	PageSize   int
}

// New returns an http.Server serving the API. finder may be nil, in which
// case the metadata endpoints answer 503.
func New(cfg Config, cat Catalog, finder Finder, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	handlers := NewHandlers(cat, finder, cfg.AdminToken, cfg.PageSize, log)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log),
	}
}

// Run serves on ln until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, ln net.Listener, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
