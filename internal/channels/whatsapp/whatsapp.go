// Package whatsapp connects to a WhatsApp bridge via WebSocket. The bridge
// (whatsapp-web.js based) owns the WhatsApp session and QR login; this
// channel just exchanges JSON messages with it.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samgrcn/WhatsApp-AI/internal/bus"
	"github.com/samgrcn/WhatsApp-AI/internal/channels"
	"github.com/samgrcn/WhatsApp-AI/internal/config"
)

const maxReconnectBackoff = 30 * time.Second

// Channel is the WhatsApp bridge channel.
type Channel struct {
	*channels.BaseChannel
	config    config.WhatsAppConfig
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// bridgeFrame is the JSON frame exchanged with the bridge, both directions.
type bridgeFrame struct {
	Type    string `json:"type"`
	From    string `json:"from,omitempty"`
	Chat    string `json:"chat,omitempty"`
	To      string `json:"to,omitempty"`
	Content string `json:"content,omitempty"`
	ID      string `json:"id,omitempty"`
	FromMe  bool   `json:"from_me,omitempty"`
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus, cfg.AllowFrom),
		config:      cfg,
	}, nil
}

// Start connects to the bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard — the reconnect loop keeps trying.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound reply to the bridge.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(bridgeFrame{
		Type:    "message",
		To:      msg.ChatID,
		Content: msg.Content,
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

func (c *Channel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads frames from the bridge with automatic reconnection.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, maxReconnectBackoff)
				continue
			}
			backoff = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)

			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()
			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid whatsapp bridge frame", "error", err)
			continue
		}

		if frame.Type == "message" {
			c.handleIncoming(frame)
		}
	}
}

// handleIncoming filters and forwards one bridge message. Group chats and
// self-originated messages never reach the scheduler.
func (c *Channel) handleIncoming(frame bridgeFrame) {
	if frame.From == "" || frame.FromMe {
		return
	}

	chatID := frame.Chat
	if chatID == "" {
		chatID = frame.From
	}

	// WhatsApp group chats have IDs ending in "@g.us".
	if strings.HasSuffix(chatID, "@g.us") {
		return
	}

	if !c.IsAllowed(frame.From) {
		slog.Debug("whatsapp message rejected by allowlist", "sender_id", frame.From)
		return
	}

	content := strings.TrimSpace(frame.Content)
	if content == "" {
		return
	}

	metadata := make(map[string]string)
	if frame.ID != "" {
		metadata["message_id"] = frame.ID
	}

	slog.Debug("whatsapp message received",
		"sender_id", frame.From,
		"chat_id", chatID,
		"preview", channels.Truncate(content, 50),
	)

	c.HandleMessage(frame.From, chatID, content, metadata)
}
