// File: internal/server/server.go
// Description: HTTP surface of the copilot. Serves /health for liveness
// and /ws for the bidirectional session protocol, with graceful
// shutdown tied to the process context.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guidelight-ai/guidelight/internal/audit"
	"github.com/guidelight-ai/guidelight/internal/config"
	"github.com/guidelight-ai/guidelight/internal/copilot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OrchestratorFactory builds a fresh orchestrator (and session) for one
// websocket connection. The returned closer releases any per-connection
// resources when the connection ends.
type OrchestratorFactory func() (*copilot.Orchestrator, func(), error)

// Server hosts the websocket transport.
type Server struct {
	cfg     config.ServerConfig
	logger  *zap.Logger
	factory OrchestratorFactory
	audit   *audit.Store

	httpServer *http.Server
}

// NewServer assembles the transport. The audit store may be nil.
func NewServer(cfg config.ServerConfig, factory OrchestratorFactory, auditStore *audit.Store, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.Named("server"),
		factory: factory,
		audit:   auditStore,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}
	return s
}

// Handler exposes the route tree for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully within
// the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		s.logger.Info("Shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	body, _ := json.Marshal(map[string]string{"status": "ok"})
	_, _ = w.Write(body)
}
