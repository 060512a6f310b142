package http

import (
	"log/slog"
	"net/http"

	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

// MessagesHandler exposes stored conversations for the dashboard.
type MessagesHandler struct {
	messages store.MessageStore
}

// NewMessagesHandler creates the conversation browsing handler.
func NewMessagesHandler(messages store.MessageStore) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// RegisterRoutes registers conversation endpoints. wrap applies the
// server's middleware chain (rate limit, auth).
func (h *MessagesHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/messages", wrap(h.handleList))
	mux.HandleFunc("GET /api/messages/{key}", wrap(h.handleConversation))
}

func (h *MessagesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	convos, err := h.messages.Conversations(r.Context())
	if err != nil {
		slog.Error("list conversations failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list conversations"})
		return
	}
	if convos == nil {
		convos = []store.ConversationInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convos})
}

func (h *MessagesHandler) handleConversation(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing conversation key"})
		return
	}

	msgs, err := h.messages.ConversationMessages(r.Context(), key)
	if err != nil {
		slog.Error("load conversation failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load conversation"})
		return
	}
	if msgs == nil {
		msgs = []store.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_key": key,
		"messages":         msgs,
	})
}
