package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

type messageStore struct {
	db *sql.DB
}

func (s *messageStore) Append(ctx context.Context, key, text string, fromUser bool, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_key, body, from_user, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.Must(uuid.NewV7()), key, text, fromUser, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *messageStore) RecentHistory(ctx context.Context, key string, limit int) ([]store.MessageRecord, error) {
	// Inner query grabs the newest N; outer restores chronological order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_key, body, from_user, created_at FROM (
			SELECT id, conversation_key, body, from_user, created_at
			FROM messages WHERE conversation_key = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		 ) newest ORDER BY created_at ASC, id ASC`,
		key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
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
		 FROM messages WHERE conversation_key = $1
		 ORDER BY created_at ASC, id ASC`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
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
