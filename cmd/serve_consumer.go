package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samgrcn/WhatsApp-AI/internal/bus"
	"github.com/samgrcn/WhatsApp-AI/internal/coalesce"
	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

// consumeInboundMessages reads inbound messages from the channel layer,
// persists them, and feeds the coalescing dispatcher. The dispatcher decides
// when (and with how many merged messages) a reply is generated.
func consumeInboundMessages(ctx context.Context, msgBus *bus.MessageBus, dispatcher *coalesce.Dispatcher, messages store.MessageStore) {
	slog.Info("inbound message consumer started")

	// Bridge reconnects can redeliver recent frames; drop exact repeats.
	dedupe := bus.NewDedupeCache(20*time.Minute, 5000)

	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound message consumer stopped")
			return
		}

		if id := msg.Metadata["message_id"]; id != "" {
			dedupeKey := fmt.Sprintf("%s|%s|%s|%s", msg.Channel, msg.SenderID, msg.ChatID, id)
			if dedupe.IsDuplicate(dedupeKey) {
				slog.Debug("inbound: duplicate message dropped", "chat", msg.ChatID, "message_id", id)
				continue
			}
		}

		key := conversationKey(msg)

		if err := messages.Append(ctx, key, msg.Content, true, msg.ReceivedAt); err != nil {
			slog.Warn("inbound: failed to persist message", "conversation", key, "error", err)
		}

		dispatcher.HandleInbound(ctx, coalesce.Message{
			Key:       key,
			Text:      msg.Content,
			ArrivedAt: msg.ReceivedAt,
			ReplyTo:   msg,
		})
	}
}

// conversationKey identifies a conversation across channels.
func conversationKey(msg bus.InboundMessage) string {
	return msg.Channel + ":" + msg.ChatID
}

// outboundSender delivers generated replies back through the message bus to
// the channel the conversation arrived on.
type outboundSender struct {
	bus *bus.MessageBus
}

func (s *outboundSender) Send(_ context.Context, last coalesce.Message, reply string) error {
	inbound, ok := last.ReplyTo.(bus.InboundMessage)
	if !ok {
		return fmt.Errorf("no transport context for conversation %s", last.Key)
	}
	s.bus.PublishOutbound(bus.OutboundMessage{
		Channel:  inbound.Channel,
		ChatID:   inbound.ChatID,
		Content:  reply,
		Metadata: inbound.Metadata,
	})
	return nil
}

// replyRecorder persists assistant replies so they appear in history and on
// the dashboard.
type replyRecorder struct {
	messages store.MessageStore
}

func (r *replyRecorder) RecordReply(ctx context.Context, key, text string, at time.Time) error {
	return r.messages.Append(ctx, key, text, false, at)
}
