package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	routeToken        = "/api/get-access-token"
	routeListSessions = "/api/list-sessions"
	routeStopSession  = "/api/stop-session"
	routeHealth       = "/healthz"
	routeMetrics      = "/metrics"
)

type Server struct {
	vendor Vendor
	logger zerolog.Logger
	mux    *http.ServeMux
}

func New(vendor Vendor, logger zerolog.Logger) *Server {
	s := &Server{
		vendor: vendor,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET "+routeHealth, HealthHandler{})
	s.mux.Handle("GET "+routeMetrics, promhttp.Handler())

	s.mux.Handle("POST "+routeToken, TokenHandler{Vendor: s.vendor, Logger: s.logger})
	s.mux.Handle("GET "+routeListSessions, ListSessionsHandler{Vendor: s.vendor, Logger: s.logger})
	s.mux.Handle("POST "+routeStopSession, StopSessionHandler{Vendor: s.vendor, Logger: s.logger})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = Recover(s.logger, h)
	h = AccessLog(s.logger, h)
	h = RequestID(h)
	return h
}

// ListenAndServe serves the proxy on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves the proxy on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("credential proxy listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
