package pg

import (
	"context"
	"database/sql"
	"fmt"
)

const promptKey = "system_prompt"

type promptStore struct {
	db *sql.DB
}

func (s *promptStore) SystemPrompt(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = $1`, promptKey).Scan(&value)
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
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		promptKey, prompt,
	)
	if err != nil {
		return fmt.Errorf("set system prompt: %w", err)
	}
	return nil
}
