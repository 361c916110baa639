package diag

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wearos/connsupervisor/pkg/logger"
)

// ServerConfig configures the diagnostic HTTP server.
type ServerConfig struct {
	Port      int
	APIKeys   []string
	JWTSecret string
}

// Server exposes the dump endpoint, Prometheus metrics, and a
// WebSocket live stream behind optional auth.
type Server struct {
	provider Provider
	hub      *Hub
	config   ServerConfig
	log      *logger.Logger
	srv      *http.Server
}

// NewServer creates a diagnostic HTTP server. hub may be nil to skip
// the WebSocket surface.
func NewServer(provider Provider, hub *Hub, config ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}
	return &Server{provider: provider, hub: hub, config: config, log: log}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/debug/dump", s.handleDumpText).Methods(http.MethodGet)
	r.HandleFunc("/debug/dump.json", s.handleDumpJSON).Methods(http.MethodGet)
	if s.hub != nil {
		r.HandleFunc("/debug/stream", s.hub.handleWebSocket)
	}

	if auth := NewAuth(s.config.APIKeys, s.config.JWTSecret); auth != nil {
		r.Use(auth.Handler)
		s.log.Info("diagnostic auth enabled")
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	if s.config.Port == 0 {
		addr = ":8090"
	}
	s.srv = &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("diagnostic server error", "error", err)
		}
	}()
	s.log.Info("diagnostic server listening", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleDumpText(w http.ResponseWriter, _ *http.Request) {
	text, err := RenderText(s.provider.Dump())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleDumpJSON(w http.ResponseWriter, _ *http.Request) {
	body, err := RenderJSON(s.provider.Dump())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
