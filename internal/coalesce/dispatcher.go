package coalesce

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Generator turns a merged user utterance into reply text. Implementations
// must bound the call with their own timeout; the dispatcher treats a
// timeout like any other failure.
type Generator interface {
	Generate(ctx context.Context, combined, conversationKey string) (string, error)
}

// Sender delivers a generated reply using the transport handle of the last
// message in the merged run.
type Sender interface {
	Send(ctx context.Context, last Message, reply string) error
}

// Recorder persists outbound replies. Inbound messages are persisted at
// ingestion, before they reach the scheduler.
type Recorder interface {
	RecordReply(ctx context.Context, conversationKey, text string, at time.Time) error
}

// Dispatcher runs the coalesce → delay → generate → deliver → consume cycle.
// Each conversation gets at most one goroutine at a time; conversations are
// fully independent of each other.
type Dispatcher struct {
	registry *Registry
	gen      Generator
	sender   Sender
	recorder Recorder
	delays   *DelayScheduler

	grace      Policy
	humanDelay Policy
	batchDelay Policy

	now func() time.Time
	wg  sync.WaitGroup
}

// DispatcherOpts configures a Dispatcher. Zero-valued policies mean no wait,
// so tests can pass an empty struct for everything but the collaborators.
type DispatcherOpts struct {
	Classifier Classifier
	Delays     *DelayScheduler
	Grace      Policy
	HumanDelay Policy
	BatchDelay Policy
	Recorder   Recorder // optional
	Now        func() time.Time
}

// NewDispatcher creates a dispatcher with its own registry.
func NewDispatcher(gen Generator, sender Sender, opts DispatcherOpts) *Dispatcher {
	if opts.Delays == nil {
		opts.Delays = NewDelayScheduler()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		registry:   NewRegistry(opts.Classifier),
		gen:        gen,
		sender:     sender,
		recorder:   opts.Recorder,
		delays:     opts.Delays,
		grace:      opts.Grace,
		humanDelay: opts.HumanDelay,
		batchDelay: opts.BatchDelay,
		now:        opts.Now,
	}
}

// Registry exposes the dispatcher's queue registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// HandleInbound appends msg to its conversation queue and, when the queue
// was idle, arms a dispatcher run after the grace window. Returns
// immediately; never blocks the transport goroutine.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg Message) {
	if !d.registry.Enqueue(msg) {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, msg.Key)
	}()
}

// Wait blocks until all in-flight dispatcher runs finish. Used by tests and
// shutdown; pending queue state is in-memory only and may be lost.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// run is the per-conversation control loop. Exactly one run exists per key
// at any time: it is spawned only on the idle→scheduled transition and the
// registry entry is removed before the loop exits.
func (d *Dispatcher) run(ctx context.Context, key string) {
	if err := d.delays.Wait(ctx, d.grace); err != nil {
		d.registry.Drop(key)
		return
	}

	for {
		batch := d.registry.PeekMergeable(key)
		if len(batch) == 0 {
			d.registry.Drop(key)
			return
		}
		d.registry.markProcessing(key)

		combined := joinTexts(batch)

		if err := d.delays.Wait(ctx, d.humanDelay); err != nil {
			d.registry.Drop(key)
			return
		}

		reply, err := d.gen.Generate(ctx, combined, key)
		if err != nil {
			// Fail fast: no retry, no partial reply. The whole queue is
			// dropped so a later message starts a fresh cycle instead of
			// stalling behind a poisoned batch.
			slog.Error("coalesce: reply generation failed, dropping queue",
				"conversation", key,
				"batch_size", len(batch),
				"error", err,
			)
			d.registry.Drop(key)
			return
		}

		if d.recorder != nil {
			if err := d.recorder.RecordReply(ctx, key, reply, d.now()); err != nil {
				slog.Warn("coalesce: failed to persist reply", "conversation", key, "error", err)
			}
		}

		// Deliver to the last message's transport context so the reply
		// threads onto the most recent message.
		last := batch[len(batch)-1]
		if err := d.sender.Send(ctx, last, reply); err != nil {
			// Terminal for this batch only; the text is not requeued.
			slog.Error("coalesce: reply delivery failed, batch not requeued",
				"conversation", key,
				"error", err,
			)
		}

		remaining := d.registry.Consume(key, len(batch))
		if remaining == 0 {
			return
		}

		slog.Debug("coalesce: backlog remains, scheduling next pass",
			"conversation", key, "pending", remaining)

		if err := d.delays.Wait(ctx, d.batchDelay); err != nil {
			d.registry.Drop(key)
			return
		}
	}
}

// joinTexts concatenates batch texts in arrival order, one per line.
func joinTexts(batch []Message) string {
	parts := make([]string, len(batch))
	for i, m := range batch {
		parts[i] = m.Text
	}
	return strings.Join(parts, "\n")
}
