package coalesce

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
	reply string
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, combined, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, combined)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) combinedCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type sentReply struct {
	last  Message
	reply string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentReply
	err  error
}

func (s *fakeSender) Send(_ context.Context, last Message, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentReply{last: last, reply: reply})
	return s.err
}

func (s *fakeSender) replies() []sentReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentReply(nil), s.sent...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []string
}

func (r *fakeRecorder) RecordReply(_ context.Context, _ string, text string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, text)
	return nil
}

// gatedScheduler returns a scheduler whose sleeps block until release is
// closed, so tests can stage messages before the grace window elapses.
func gatedScheduler() (*DelayScheduler, chan struct{}) {
	s := NewDelaySchedulerWithRand(rand.New(rand.NewSource(1)))
	release := make(chan struct{})
	s.SetSleep(func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return s, release
}

func TestDispatcher_MergesRapidBurst(t *testing.T) {
	gen := &fakeGenerator{reply: "sure, 9am works"}
	sender := &fakeSender{}
	sched, release := gatedScheduler()

	d := NewDispatcher(gen, sender, DispatcherOpts{
		Delays: sched,
		Grace:  Policy{Min: time.Second, Max: time.Second},
	})

	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()
	d.HandleInbound(ctx, msgAt("Hi", base))
	d.HandleInbound(ctx, msgAt("I want to book a session", base.Add(2*time.Second)))
	d.HandleInbound(ctx, msgAt("Also do you have parking?", base.Add(4*time.Second)))

	close(release)
	d.Wait()

	calls := gen.combinedCalls()
	if len(calls) != 1 {
		t.Fatalf("Generate called %d times, want 1 (merged batch)", len(calls))
	}
	want := "Hi\nI want to book a session\nAlso do you have parking?"
	if calls[0] != want {
		t.Errorf("combined text = %q, want %q", calls[0], want)
	}

	replies := sender.replies()
	if len(replies) != 1 {
		t.Fatalf("Send called %d times, want 1", len(replies))
	}
	if replies[0].last.Text != "Also do you have parking?" {
		t.Errorf("reply threaded to %q, want the last message of the batch", replies[0].last.Text)
	}
	if d.Registry().Len() != 0 {
		t.Errorf("registry not drained: %d queues live", d.Registry().Len())
	}
}

func TestDispatcher_UnrelatedBacklogGetsSeparateReplies(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{}
	sched, release := gatedScheduler()

	d := NewDispatcher(gen, sender, DispatcherOpts{
		Delays: sched,
		Grace:  Policy{Min: time.Second, Max: time.Second},
	})

	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()
	d.HandleInbound(ctx, msgAt("what are your hours", base))
	d.HandleInbound(ctx, msgAt("different topic much later", base.Add(10*time.Minute)))

	close(release)
	d.Wait()

	calls := gen.combinedCalls()
	if len(calls) != 2 {
		t.Fatalf("Generate called %d times, want 2 (two batches)", len(calls))
	}
	if calls[0] != "what are your hours" || calls[1] != "different topic much later" {
		t.Errorf("batches = %q, %q", calls[0], calls[1])
	}
	if len(sender.replies()) != 2 {
		t.Errorf("Send called %d times, want 2", len(sender.replies()))
	}
	if d.Registry().Len() != 0 {
		t.Errorf("registry not drained: %d queues live", d.Registry().Len())
	}
}

func TestDispatcher_GenerationFailureDropsQueue(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	sender := &fakeSender{}
	sched, release := gatedScheduler()

	d := NewDispatcher(gen, sender, DispatcherOpts{
		Delays: sched,
		Grace:  Policy{Min: time.Second, Max: time.Second},
	})

	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()
	d.HandleInbound(ctx, msgAt("first", base))
	d.HandleInbound(ctx, msgAt("second, unrelated", base.Add(10*time.Minute)))

	close(release)
	d.Wait()

	// No retry: one failed Generate takes the whole queue with it, the
	// pending unrelated message included.
	if calls := gen.combinedCalls(); len(calls) != 1 {
		t.Fatalf("Generate called %d times, want 1", len(calls))
	}
	if len(sender.replies()) != 0 {
		t.Errorf("Send called after generation failure")
	}
	if d.Registry().Len() != 0 {
		t.Errorf("failed queue not dropped: %d queues live", d.Registry().Len())
	}

	// A later message starts a fresh cycle.
	gen.err = nil
	gen.reply = "back up"
	d.HandleInbound(ctx, msgAt("are you there", base.Add(20*time.Minute)))
	d.Wait()

	if len(sender.replies()) != 1 {
		t.Errorf("fresh message after failure got %d replies, want 1", len(sender.replies()))
	}
}

func TestDispatcher_SendFailureConsumesBatch(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{err: errors.New("bridge gone")}
	sched, release := gatedScheduler()

	d := NewDispatcher(gen, sender, DispatcherOpts{
		Delays: sched,
		Grace:  Policy{Min: time.Second, Max: time.Second},
	})

	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()
	d.HandleInbound(ctx, msgAt("first", base))
	d.HandleInbound(ctx, msgAt("second, unrelated", base.Add(10*time.Minute)))

	close(release)
	d.Wait()

	// Delivery failure is terminal for the batch only; the backlog still
	// gets its own pass.
	if calls := gen.combinedCalls(); len(calls) != 2 {
		t.Fatalf("Generate called %d times, want 2", len(calls))
	}
	if d.Registry().Len() != 0 {
		t.Errorf("registry not drained after send failures")
	}
}

func TestDispatcher_IndependentConversations(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{}
	sched, release := gatedScheduler()

	d := NewDispatcher(gen, sender, DispatcherOpts{
		Delays: sched,
		Grace:  Policy{Min: time.Second, Max: time.Second},
	})

	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()
	d.HandleInbound(ctx, Message{Key: "wa:alice", Text: "hours?", ArrivedAt: base})
	d.HandleInbound(ctx, Message{Key: "wa:bob", Text: "prices?", ArrivedAt: base})

	close(release)
	d.Wait()

	replies := sender.replies()
	if len(replies) != 2 {
		t.Fatalf("Send called %d times, want 2 (one per conversation)", len(replies))
	}
	keys := map[string]bool{}
	for _, r := range replies {
		keys[r.last.Key] = true
	}
	if !keys["wa:alice"] || !keys["wa:bob"] {
		t.Errorf("replies missing a conversation: %v", keys)
	}
}

func TestDispatcher_CancelDuringGraceDropsQueue(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	sender := &fakeSender{}

	d := NewDispatcher(gen, sender, DispatcherOpts{
		Grace: Policy{Min: time.Minute, Max: time.Minute},
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.HandleInbound(ctx, msgAt("hello", time.Now()))
	cancel()
	d.Wait()

	if len(gen.combinedCalls()) != 0 {
		t.Errorf("Generate called after cancellation")
	}
	if d.Registry().Len() != 0 {
		t.Errorf("cancelled queue not dropped")
	}
}

func TestDispatcher_RecordsReplies(t *testing.T) {
	gen := &fakeGenerator{reply: "see you at 9"}
	sender := &fakeSender{}
	recorder := &fakeRecorder{}

	d := NewDispatcher(gen, sender, DispatcherOpts{Recorder: recorder})

	d.HandleInbound(context.Background(), msgAt("book me in", time.Now()))
	d.Wait()

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.recorded) != 1 || recorder.recorded[0] != "see you at 9" {
		t.Errorf("recorded = %v, want the generated reply", recorder.recorded)
	}
}
