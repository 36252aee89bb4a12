package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"taplist/internal/platform/config"
	"taplist/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server owns the chi mux and the embedded stdlib server the api binary runs
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer builds the server from config. PORT holds the listen address
// and defaults to :4000
func NewServer(cfg config.Conf) *Server {
	addr := cfg.MayString("PORT", ":4000")
	m := chi.NewRouter()
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Router exposes the mux behind the Router seam so modules can mount routes
func (s *Server) Router() Router {
	return AdaptChi(s.mux)
}

// Addr reports the configured listen address
func (s *Server) Addr() string { return s.addr }

// Run serves until Shutdown is called. A graceful stop surfaces as nil,
// not ErrServerClosed, so the caller's errgroup stays quiet
func (s *Server) Run(ctx context.Context) error {
	logger.Named("http").Info().Str("addr", s.addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
// until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
