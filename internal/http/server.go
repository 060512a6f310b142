// Package http serves the operator admin API: login, conversation
// browsing, and system prompt management, plus a minimal dashboard page.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

// ServerConfig carries the admin server settings.
type ServerConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	RateLimitRPM int

	// DefaultPrompt returns the fallback system prompt shown when none
	// has been stored.
	DefaultPrompt func() string
}

// Server is the admin HTTP server.
type Server struct {
	cfg        ServerConfig
	stores     *store.Stores
	mux        *http.ServeMux
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates the admin server.
func NewServer(cfg ServerConfig, stores *store.Stores) *Server {
	return &Server{cfg: cfg, stores: stores, startedAt: time.Now()}
}

// BuildMux creates and caches the mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()

	auth := NewAuthHandler(s.cfg.Username, s.cfg.Password)
	rl := NewIPRateLimiter(s.cfg.RateLimitRPM)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return rl.Middleware(auth.Middleware(h))
	}

	auth.RegisterRoutes(mux, rl.Middleware)
	NewMessagesHandler(s.stores.Messages).RegisterRoutes(mux, wrap)
	NewPromptHandler(s.stores.Prompt, s.cfg.DefaultPrompt).RegisterRoutes(mux, wrap)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleDashboard)

	if !auth.Enabled() {
		slog.Warn("admin auth disabled; set WA_AI_ADMIN_PASSWORD to enable")
	}

	s.mux = mux
	return mux
}

// Start begins listening and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("admin server starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dashboardHTML))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
