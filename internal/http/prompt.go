package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

// PromptHandler lets the operator read and replace the system prompt at
// runtime. An empty stored prompt means the configured default applies.
type PromptHandler struct {
	prompt        store.PromptStore
	defaultPrompt func() string
}

// NewPromptHandler creates the system prompt handler. defaultPrompt
// returns the fallback used when no prompt has been stored.
func NewPromptHandler(prompt store.PromptStore, defaultPrompt func() string) *PromptHandler {
	return &PromptHandler{prompt: prompt, defaultPrompt: defaultPrompt}
}

// RegisterRoutes registers prompt endpoints. wrap applies the server's
// middleware chain (rate limit, auth).
func (h *PromptHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/prompt", wrap(h.handleGet))
	mux.HandleFunc("POST /api/prompt", wrap(h.handleSet))
}

func (h *PromptHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.prompt.SystemPrompt(r.Context())
	if err != nil {
		slog.Error("load system prompt failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load prompt"})
		return
	}

	isDefault := prompt == ""
	if isDefault {
		prompt = h.defaultPrompt()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prompt":  prompt,
		"default": isDefault,
	})
}

func (h *PromptHandler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt must not be empty"})
		return
	}

	if err := h.prompt.SetSystemPrompt(r.Context(), req.Prompt); err != nil {
		slog.Error("save system prompt failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save prompt"})
		return
	}

	slog.Info("system prompt updated", "length", len(req.Prompt))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
