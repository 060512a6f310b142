package whatsapp

import (
	"context"
	"testing"
	"time"

	"github.com/samgrcn/WhatsApp-AI/internal/bus"
	"github.com/samgrcn/WhatsApp-AI/internal/config"
)

func newTestChannel(t *testing.T, allowFrom []string) (*Channel, *bus.MessageBus) {
	t.Helper()
	msgBus := bus.New()
	c, err := New(config.WhatsAppConfig{
		BridgeURL: "ws://127.0.0.1:1",
		AllowFrom: allowFrom,
	}, msgBus)
	if err != nil {
		t.Fatal(err)
	}
	return c, msgBus
}

func drainOne(t *testing.T, msgBus *bus.MessageBus) (bus.InboundMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	return msgBus.ConsumeInbound(ctx)
}

func TestNew_RequiresBridgeURL(t *testing.T) {
	if _, err := New(config.WhatsAppConfig{}, bus.New()); err == nil {
		t.Error("New() without bridge_url succeeded")
	}
}

func TestHandleIncoming_ForwardsDirectMessage(t *testing.T) {
	c, msgBus := newTestChannel(t, nil)

	c.handleIncoming(bridgeFrame{
		Type:    "message",
		From:    "123@c.us",
		Chat:    "123@c.us",
		Content: "  hello there  ",
		ID:      "msg-1",
	})

	got, ok := drainOne(t, msgBus)
	if !ok {
		t.Fatal("no message published")
	}
	if got.Channel != "whatsapp" || got.SenderID != "123@c.us" {
		t.Errorf("message = %+v", got)
	}
	if got.Content != "hello there" {
		t.Errorf("content = %q, want trimmed", got.Content)
	}
	if got.Metadata["message_id"] != "msg-1" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestHandleIncoming_Filters(t *testing.T) {
	tests := []struct {
		name  string
		frame bridgeFrame
	}{
		{"group chat", bridgeFrame{Type: "message", From: "123@c.us", Chat: "999@g.us", Content: "hi all"}},
		{"own message", bridgeFrame{Type: "message", From: "me@c.us", Content: "my own reply", FromMe: true}},
		{"missing sender", bridgeFrame{Type: "message", Content: "ghost"}},
		{"blank content", bridgeFrame{Type: "message", From: "123@c.us", Content: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, msgBus := newTestChannel(t, nil)
			c.handleIncoming(tt.frame)
			if got, ok := drainOne(t, msgBus); ok {
				t.Errorf("frame forwarded: %+v", got)
			}
		})
	}
}

func TestHandleIncoming_Allowlist(t *testing.T) {
	c, msgBus := newTestChannel(t, []string{"friend@c.us"})

	c.handleIncoming(bridgeFrame{Type: "message", From: "stranger@c.us", Content: "hi"})
	if _, ok := drainOne(t, msgBus); ok {
		t.Error("message from outside the allowlist forwarded")
	}

	c.handleIncoming(bridgeFrame{Type: "message", From: "friend@c.us", Content: "hi"})
	if _, ok := drainOne(t, msgBus); !ok {
		t.Error("allowlisted message not forwarded")
	}
}

func TestHandleIncoming_ChatFallsBackToSender(t *testing.T) {
	c, msgBus := newTestChannel(t, nil)

	c.handleIncoming(bridgeFrame{Type: "message", From: "123@c.us", Content: "hi"})

	got, ok := drainOne(t, msgBus)
	if !ok {
		t.Fatal("no message published")
	}
	if got.ChatID != "123@c.us" {
		t.Errorf("chat_id = %q, want sender fallback", got.ChatID)
	}
}

func TestSend_NotConnected(t *testing.T) {
	c, _ := newTestChannel(t, nil)

	err := c.Send(context.Background(), bus.OutboundMessage{ChatID: "123@c.us", Content: "hi"})
	if err == nil {
		t.Error("Send() without a connection succeeded")
	}
}
