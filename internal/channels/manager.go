package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samgrcn/WhatsApp-AI/internal/bus"
)

// Manager starts and stops the configured channels and pumps outbound
// messages from the bus to the owning channel.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

// NewManager creates an empty channel manager.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{channels: make(map[string]Channel), bus: msgBus}
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
}

// StartAll starts every registered channel.
func (m *Manager) StartAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		slog.Info("channel started", "channel", name)
	}
	return nil
}

// StopAll stops every registered channel.
func (m *Manager) StopAll(ctx context.Context) {
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			slog.Warn("channel stop failed", "channel", name, "error", err)
		}
	}
}

// DispatchOutbound consumes outbound messages from the bus and routes each
// to its channel until ctx is cancelled. Runs on its own goroutine.
func (m *Manager) DispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.ConsumeOutbound(ctx)
		if !ok {
			return
		}

		ch, found := m.channels[msg.Channel]
		if !found {
			slog.Warn("outbound: unknown channel", "channel", msg.Channel)
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			slog.Error("outbound: send failed",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"error", err,
			)
		}
	}
}
