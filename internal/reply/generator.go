// Package reply implements the reply-generation collaborator: it assembles
// the system prompt, recent conversation history, and the user's combined
// utterance, and asks the completion provider for the reply text.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samgrcn/WhatsApp-AI/internal/config"
	"github.com/samgrcn/WhatsApp-AI/internal/providers"
	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

// Generator builds provider requests from stored conversation state.
// It satisfies coalesce.Generator.
type Generator struct {
	provider providers.Provider
	messages store.MessageStore
	prompt   store.PromptStore
	cfg      *config.Holder
}

// NewGenerator creates a generator reading live settings through cfg.
func NewGenerator(p providers.Provider, messages store.MessageStore, prompt store.PromptStore, cfg *config.Holder) *Generator {
	return &Generator{provider: p, messages: messages, prompt: prompt, cfg: cfg}
}

// Generate produces reply text for the combined user utterance. The provider
// call is bounded by the configured timeout; a timeout surfaces as an
// ordinary error and the caller decides what to do with the batch.
func (g *Generator) Generate(ctx context.Context, combined, conversationKey string) (string, error) {
	cur := g.cfg.Current()

	timeout := time.Duration(cur.Reply.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs, err := g.buildMessages(ctx, combined, conversationKey, cur)
	if err != nil {
		return "", err
	}

	resp, err := g.provider.Chat(ctx, providers.ChatRequest{
		Messages:  msgs,
		Model:     cur.Provider.Model,
		MaxTokens: cur.Provider.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if resp.Content == "" {
		return "", fmt.Errorf("generate reply: provider returned empty content")
	}

	if resp.Usage != nil {
		slog.Debug("reply generated",
			"conversation", conversationKey,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		)
	}
	return resp.Content, nil
}

// buildMessages assembles system prompt + recent history + current
// utterance. The current utterance is skipped when it is already the last
// history entry (inbound messages are persisted at ingestion, so with
// single-message batches it usually is).
func (g *Generator) buildMessages(ctx context.Context, combined, conversationKey string, cur *config.Config) ([]providers.Message, error) {
	systemPrompt, err := g.prompt.SystemPrompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("load system prompt: %w", err)
	}
	if systemPrompt == "" {
		systemPrompt = cur.DefaultSystemPrompt
	}

	limit := cur.Reply.HistoryLimit
	if limit <= 0 {
		limit = 5
	}
	history, err := g.messages.RecentHistory(ctx, conversationKey, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs := make([]providers.Message, 0, len(history)+2)
	msgs = append(msgs, providers.Message{Role: "system", Content: systemPrompt})

	for _, rec := range history {
		role := "assistant"
		if rec.FromUser {
			role = "user"
		}
		msgs = append(msgs, providers.Message{Role: role, Content: rec.Text})
	}

	if len(history) == 0 || history[len(history)-1].Text != combined {
		msgs = append(msgs, providers.Message{Role: "user", Content: combined})
	}

	return msgs, nil
}
