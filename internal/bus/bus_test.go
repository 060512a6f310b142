package bus

import (
	"context"
	"testing"
	"time"
)

func TestMessageBus_InboundRoundTrip(t *testing.T) {
	b := New()
	sent := InboundMessage{
		Channel:    "whatsapp",
		SenderID:   "123@c.us",
		ChatID:     "123@c.us",
		Content:    "hello",
		ReceivedAt: time.Now(),
	}
	b.PublishInbound(sent)

	got, ok := b.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("ConsumeInbound returned ok=false with a queued message")
	}
	if got.Content != "hello" || got.Channel != "whatsapp" {
		t.Errorf("got %+v", got)
	}
}

func TestMessageBus_ConsumeCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Error("ConsumeInbound on cancelled ctx returned ok=true")
	}
	if _, ok := b.ConsumeOutbound(ctx); ok {
		t.Error("ConsumeOutbound on cancelled ctx returned ok=true")
	}
}

func TestMessageBus_PublishNeverBlocks(t *testing.T) {
	b := New()
	// Overfill; the excess must be dropped, not deadlock.
	for i := 0; i < defaultQueueSize+10; i++ {
		b.PublishInbound(InboundMessage{Channel: "whatsapp", Content: "x"})
	}

	drained := 0
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		if _, ok := b.ConsumeInbound(ctx); !ok {
			break
		}
		drained++
		if drained == defaultQueueSize {
			break
		}
	}
	if drained != defaultQueueSize {
		t.Errorf("drained %d messages, want %d", drained, defaultQueueSize)
	}
}
