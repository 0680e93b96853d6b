package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/operations"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// Server is the HTTP API server for local and container deployments.
type Server struct {
	ops        *operations.Service
	cfg        *config.Config
	httpServer *http.Server
}

// NewServer creates a new HTTP API server.
func NewServer(ops *operations.Service, cfg *config.Config) *Server {
	return &Server{ops: ops, cfg: cfg}
}

// Handler builds the full middleware chain: Recovery → CORS → Logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:          "ok",
			Service:         types.ServiceName,
			Version:         types.ServiceVersion,
			Environment:     s.cfg.Environment,
			RequestID:       uuid.NewString(),
			ExecutionTimeMs: time.Since(started).Milliseconds(),
		})
	})

	mux.Handle("/database", NewDatabaseHandler(s.ops))

	return RecoveryMiddleware(CORSMiddleware(LoggingMiddleware(mux)))
}

// Start starts the HTTP API server (blocking).
func (s *Server) Start() error {
	addr := s.cfg.GetListenAddress()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[HTTP API] 启动 HTTP API 服务器: %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
