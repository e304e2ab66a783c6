package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/propsage/compval/internal/config"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
)

// Server wraps the standard http.Server with the lifecycle conventions
// the binaries expect: blocking Start, context-bounded Stop.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer binds the handler to the configured port and timeouts.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Start serves until the listener closes. It returns nil after a clean
// Stop and the listener error otherwise.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logging.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires, then closes
// whatever is left.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server draining")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown expired, closing", logging.Err(err))
		return s.httpServer.Close()
	}
	return nil
}

// Handler exposes the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
