package config

import "time"

// Config is the root configuration for the WhatsApp AI relay.
type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Provider ProviderConfig `json:"provider"`
	Reply    ReplyConfig    `json:"reply"`
	Admin    AdminConfig    `json:"admin"`
	Database DatabaseConfig `json:"database,omitempty"`

	// DefaultSystemPrompt seeds the prompt store on first run. The live
	// prompt is edited through the admin API and kept in the store.
	DefaultSystemPrompt string `json:"default_system_prompt,omitempty"`
}

// ChannelsConfig holds per-channel transport settings.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// WhatsAppConfig configures the WebSocket connection to the WhatsApp bridge.
// The bridge (whatsapp-web.js based) owns the WhatsApp session; this side
// only exchanges JSON frames with it.
type WhatsAppConfig struct {
	BridgeURL string   `json:"bridge_url"`
	AllowFrom []string `json:"allow_from,omitempty"` // sender allowlist, empty = all
}

// ProviderConfig selects and configures the AI completion backend.
// APIKey is never persisted to the config file; env only.
type ProviderConfig struct {
	Name      string `json:"name"`               // "deepseek" (default) or "openai"
	APIKey    string `json:"-"`                  // from env WA_AI_PROVIDER_API_KEY only
	APIBase   string `json:"api_base,omitempty"` // override for OpenAI-compatible endpoints
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// DelayRange is a randomized wait window in milliseconds.
type DelayRange struct {
	MinMs int `json:"min_ms"`
	MaxMs int `json:"max_ms"`
}

// Min returns the lower bound as a duration.
func (d DelayRange) Min() time.Duration { return time.Duration(d.MinMs) * time.Millisecond }

// Max returns the upper bound as a duration.
func (d DelayRange) Max() time.Duration { return time.Duration(d.MaxMs) * time.Millisecond }

// ReplyConfig tunes the coalescing scheduler and reply generation.
type ReplyConfig struct {
	HistoryLimit    int        `json:"history_limit,omitempty"`     // turns of history per generation (default 5)
	RelatedWindowMs int        `json:"related_window_ms,omitempty"` // classifier same-utterance window (default 30000)
	GraceMs         int        `json:"grace_ms,omitempty"`          // pre-dispatch grace (default 1000)
	HumanDelay      DelayRange `json:"human_delay,omitempty"`       // delay before each reply (default 10-20s)
	BatchDelay      DelayRange `json:"batch_delay,omitempty"`       // delay between passes (default 5-10s)
	TimeoutSec      int        `json:"timeout_sec,omitempty"`       // per-generation provider timeout (default 60)
}

// AdminConfig configures the operator dashboard and JSON API.
// Password comes from env only. Empty password disables authentication,
// matching local-only debug use.
type AdminConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"-"` // from env WA_AI_ADMIN_PASSWORD only
	RateLimitRPM int    `json:"rate_limit_rpm,omitempty"`
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is env-only (secret).
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"`        // "standalone" (default, SQLite) or "managed" (Postgres)
	SQLitePath  string `json:"sqlite_path,omitempty"` // default: ./data/whatsapp-ai.db
	PostgresDSN string `json:"-"`                     // from env WA_AI_POSTGRES_DSN only
}

// IsManagedMode returns true when the relay should store data in Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}
