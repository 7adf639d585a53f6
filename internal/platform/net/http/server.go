package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"sarbatch/internal/platform/config"
	"sarbatch/internal/platform/logger"
	"sarbatch/internal/platform/net/middleware"

	"github.com/go-chi/chi/v5"
)

// Server is a thin wrapper over chi + stdlib http.Server.
// An empty OPS_ADDR disables it; Run then returns at once
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer reads OPS_ADDR and installs the ops middleware stack.
// opts receive the *chi.Mux so callers can add middleware before routes
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayAddr("OPS_ADDR", "")
	m := chi.NewRouter()
	m.Use(middleware.Defaults(cfg.MayDuration("OPS_SLOW", 500*time.Millisecond))...)
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr returns the configured listening address
func (s *Server) Addr() string { return s.addr }

// Enabled reports whether an address was configured
func (s *Server) Enabled() bool { return s.addr != "" }

// Run listens until ctx is done, then shuts down with a 5s grace period.
// ready, when non-nil, receives the bound address once listening
func (s *Server) Run(ctx context.Context, ready func(addr string)) error {
	if !s.Enabled() {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	log := logger.Named("ops")
	log.Info().Str("addr", ln.Addr().String()).Msg("ops server listening")
	if ready != nil {
		ready(ln.Addr().String())
	}

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(sctx); err != nil {
			return err
		}
		<-errc
		return nil
	}
}
