package coalesce

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Policy is an inclusive randomized delay range. The zero value waits not
// at all, which is what tests want.
type Policy struct {
	Min time.Duration
	Max time.Duration
}

// DefaultGrace is the fixed pre-dispatch window that lets a fast follow-up
// message arrive before the first merge decision.
var DefaultGrace = Policy{Min: time.Second, Max: time.Second}

// DefaultHumanLatency spaces a reply so it doesn't arrive implausibly fast.
var DefaultHumanLatency = Policy{Min: 10 * time.Second, Max: 20 * time.Second}

// DefaultInterBatch spaces successive passes on the same conversation so a
// backlog doesn't produce a burst of back-to-back replies.
var DefaultInterBatch = Policy{Min: 5 * time.Second, Max: 10 * time.Second}

// DelayScheduler suspends callers for durations drawn uniformly at random
// from a Policy. The randomness source and the sleep function are both
// injectable so tests run deterministically without wall-clock waits.
type DelayScheduler struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDelayScheduler creates a scheduler seeded from the current time.
func NewDelayScheduler() *DelayScheduler {
	return NewDelaySchedulerWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewDelaySchedulerWithRand creates a scheduler with an explicit randomness
// source, for deterministic tests.
func NewDelaySchedulerWithRand(rng *rand.Rand) *DelayScheduler {
	return &DelayScheduler{rng: rng, sleep: sleepCtx}
}

// SetSleep replaces the sleep function. Tests use this to record requested
// durations instead of actually waiting.
func (s *DelayScheduler) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}

// Wait suspends the caller for a duration drawn from p, or until ctx is
// cancelled, in which case the cancellation error is returned.
func (s *DelayScheduler) Wait(ctx context.Context, p Policy) error {
	d := s.Draw(p)
	if d <= 0 {
		return ctx.Err()
	}
	return s.sleep(ctx, d)
}

// Draw picks a duration uniformly from [p.Min, p.Max].
func (s *DelayScheduler) Draw(p Policy) time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.Min + time.Duration(s.rng.Int63n(int64(p.Max-p.Min)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
