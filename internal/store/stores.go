// Package store defines the storage contracts for conversation history and
// operator-editable settings. Backends: SQLite (standalone) and Postgres
// (managed).
package store

import (
	"context"
	"time"
)

// MessageRecord is one stored chat message, inbound or outbound.
type MessageRecord struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	Text            string    `json:"text"`
	FromUser        bool      `json:"from_user"`
	Timestamp       time.Time `json:"timestamp"`
}

// ConversationInfo summarizes one conversation for the admin dashboard.
type ConversationInfo struct {
	ConversationKey string    `json:"conversation_key"`
	MessageCount    int       `json:"message_count"`
	LastActivity    time.Time `json:"last_activity"`
}

// MessageStore persists and queries conversation history.
type MessageStore interface {
	// Append stores one message for a conversation.
	Append(ctx context.Context, conversationKey, text string, fromUser bool, ts time.Time) error

	// RecentHistory returns the newest limit messages for a conversation,
	// ordered oldest first.
	RecentHistory(ctx context.Context, conversationKey string, limit int) ([]MessageRecord, error)

	// Conversations lists all conversations, most recently active first.
	Conversations(ctx context.Context) ([]ConversationInfo, error)

	// ConversationMessages returns a conversation's full history, oldest first.
	ConversationMessages(ctx context.Context, conversationKey string) ([]MessageRecord, error)
}

// PromptStore holds the operator-editable system prompt.
type PromptStore interface {
	// SystemPrompt returns the current prompt, or "" when unset.
	SystemPrompt(ctx context.Context) (string, error)

	// SetSystemPrompt replaces the prompt.
	SetSystemPrompt(ctx context.Context, prompt string) error
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Messages MessageStore
	Prompt   PromptStore

	// Close releases the underlying database handle.
	Close func() error
}
