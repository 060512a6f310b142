package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// defaultSystemPrompt is the seed prompt for a fresh install, a fitness
// studio assistant persona. Operators replace it through the admin API.
const defaultSystemPrompt = `You are a helpful fitness assistant for Oompf! Fitness.
Your role is to assist clients with fitness-related questions, provide workout guidance,
and help schedule training sessions. You should be friendly, encouraging, and professional.

Please provide information about:
- Available classes and schedules
- Personal training options
- Fitness tips and recommendations
- Nutrition advice
- Membership information

If asked about something outside of fitness or Oompf! services, politely redirect the conversation
back to fitness-related topics.`

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				BridgeURL: "ws://127.0.0.1:8466",
			},
		},
		Provider: ProviderConfig{
			Name:      "deepseek",
			Model:     "deepseek-chat",
			MaxTokens: 500,
		},
		Reply: ReplyConfig{
			HistoryLimit:    5,
			RelatedWindowMs: 30000,
			GraceMs:         1000,
			HumanDelay:      DelayRange{MinMs: 10000, MaxMs: 20000},
			BatchDelay:      DelayRange{MinMs: 5000, MaxMs: 10000},
			TimeoutSec:      60,
		},
		Admin: AdminConfig{
			Host:         "127.0.0.1",
			Port:         3000,
			Username:     "admin",
			RateLimitRPM: 60,
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "data/whatsapp-ai.db",
		},
		DefaultSystemPrompt: defaultSystemPrompt,
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets are env-only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("WA_AI_PROVIDER_API_KEY", &c.Provider.APIKey)
	envStr("WA_AI_DEEPSEEK_API_KEY", &c.Provider.APIKey) // legacy name from the Node version
	envStr("WA_AI_PROVIDER", &c.Provider.Name)
	envStr("WA_AI_MODEL", &c.Provider.Model)
	envStr("WA_AI_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)
	envStr("WA_AI_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("WA_AI_ADMIN_USERNAME", &c.Admin.Username)
	envStr("WA_AI_ADMIN_PASSWORD", &c.Admin.Password)

	if v := os.Getenv("WA_AI_ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Admin.Port = port
		}
	}
	if v := os.Getenv("WA_AI_DB_MODE"); v != "" {
		c.Database.Mode = strings.ToLower(v)
	}
}

// Save writes the config to disk as indented JSON, secrets excluded via
// struct tags.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
