// Package sqlite implements the message and prompt stores on an embedded
// SQLite database (standalone mode, the default).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	conversation_key TEXT NOT NULL,
	body             TEXT NOT NULL,
	from_user        INTEGER NOT NULL,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (conversation_key, created_at);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewStores opens (creating if needed) the SQLite database at path and
// returns stores backed by it. ":memory:" is accepted for tests.
func NewStores(path string) (*store.Stores, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; serialize through a single conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &store.Stores{
		Messages: &messageStore{db: db},
		Prompt:   &promptStore{db: db},
		Close:    db.Close,
	}, nil
}

type messageStore struct {
	db *sql.DB
}

func (s *messageStore) Append(ctx context.Context, key, text string, fromUser bool, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_key, body, from_user, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), key, text, fromUser, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *messageStore) RecentHistory(ctx context.Context, key string, limit int) ([]store.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_key, body, from_user, created_at
		 FROM messages WHERE conversation_key = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()

	records, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers want oldest first.
	reverse(records)
	return records, nil
}

func (s *messageStore) Conversations(ctx context.Context) ([]store.ConversationInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_key, COUNT(*), MAX(created_at)
		 FROM messages GROUP BY conversation_key
		 ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []store.ConversationInfo
	for rows.Next() {
		var info store.ConversationInfo
		if err := rows.Scan(&info.ConversationKey, &info.MessageCount, &info.LastActivity); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *messageStore) ConversationMessages(ctx context.Context, key string) ([]store.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_key, body, from_user, created_at
		 FROM messages WHERE conversation_key = ?
		 ORDER BY created_at ASC, id ASC`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

type promptStore struct {
	db *sql.DB
}

const promptKey = "system_prompt"

func (s *promptStore) SystemPrompt(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, promptKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get system prompt: %w", err)
	}
	return value, nil
}

func (s *promptStore) SetSystemPrompt(ctx context.Context, prompt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		promptKey, prompt,
	)
	if err != nil {
		return fmt.Errorf("set system prompt: %w", err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]store.MessageRecord, error) {
	var out []store.MessageRecord
	for rows.Next() {
		var rec store.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.ConversationKey, &rec.Text, &rec.FromUser, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func reverse(records []store.MessageRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
