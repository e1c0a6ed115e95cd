package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/http/handler"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/http/router"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

// Server wraps the Publisher HTTP Shim's gin engine with a graceful
// shutdown, matching the worker's own SIGINT/SIGTERM handling.
type Server struct {
	engine *gin.Engine
	port   string
	logger logger.Logger
	server *http.Server
}

func NewServer(publisherHandler *handler.PublisherHandler, log logger.Logger, port string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRoutes(publisherHandler)

	return &Server{
		engine: engine,
		port:   port,
		logger: log,
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting publisher HTTP shim", logger.F("port", s.port))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down publisher HTTP shim")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP shim forced shutdown", logger.F("error", err.Error()))
		return err
	}
	s.logger.Info("publisher HTTP shim exited")
	return nil
}
