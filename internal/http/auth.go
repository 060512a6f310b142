package http

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionTTL = 12 * time.Hour

// AuthHandler implements operator login and bearer-token session checks.
// With no password configured, authentication is disabled (local debug
// use, matching the original dashboard).
type AuthHandler struct {
	username string
	password string

	mu       sync.Mutex
	sessions map[string]time.Time // token → expiry
	now      func() time.Time
}

// NewAuthHandler creates the auth handler for the admin API.
func NewAuthHandler(username, password string) *AuthHandler {
	return &AuthHandler{
		username: username,
		password: password,
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Enabled reports whether authentication is required.
func (h *AuthHandler) Enabled() bool { return h.password != "" }

// RegisterRoutes registers the login endpoint. wrap applies the server's
// rate limiter; login itself is unauthenticated.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/login", wrap(h.handleLogin))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if !h.Enabled() {
		writeJSON(w, http.StatusOK, map[string]string{"token": ""})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1
	if !userOK || !passOK {
		slog.Warn("admin login rejected", "username", req.Username)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token := uuid.NewString()

	h.mu.Lock()
	h.pruneLocked()
	h.sessions[token] = h.now().Add(sessionTTL)
	h.mu.Unlock()

	slog.Info("admin login", "username", req.Username)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Middleware wraps an API handler with a bearer-token check.
func (h *AuthHandler) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Enabled() && !h.validToken(extractBearerToken(r)) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (h *AuthHandler) validToken(token string) bool {
	if token == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	expiry, ok := h.sessions[token]
	if !ok {
		return false
	}
	if h.now().After(expiry) {
		delete(h.sessions, token)
		return false
	}
	return true
}

func (h *AuthHandler) pruneLocked() {
	now := h.now()
	for token, expiry := range h.sessions {
		if now.After(expiry) {
			delete(h.sessions, token)
		}
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
