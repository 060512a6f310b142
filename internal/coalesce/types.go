// Package coalesce implements the per-conversation message-coalescing
// scheduler: it buffers rapid bursts of inbound messages from one sender,
// merges the ones that belong to the same logical utterance, waits a
// human-plausible interval, and runs exactly one reply cycle at a time per
// conversation, in strict arrival order.
package coalesce

import "time"

// Message is one inbound unit of text from one conversation.
// Immutable once created; owned by the conversation queue until consumed.
type Message struct {
	Key       string    // opaque conversation key, stable per sender
	Text      string    // non-empty message body
	ArrivedAt time.Time // arrival instant, used by the relatedness classifier
	ReplyTo   any       // opaque transport handle, passed back to the Sender
}
