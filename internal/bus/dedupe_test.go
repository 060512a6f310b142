package bus

import (
	"fmt"
	"testing"
	"time"
)

func TestDedupeCache_Basics(t *testing.T) {
	c := NewDedupeCache(time.Minute, 100)

	if c.IsDuplicate("msg-1") {
		t.Error("first sighting reported as duplicate")
	}
	if !c.IsDuplicate("msg-1") {
		t.Error("second sighting not reported as duplicate")
	}
	if c.IsDuplicate("msg-2") {
		t.Error("different key reported as duplicate")
	}
}

func TestDedupeCache_TTLExpiry(t *testing.T) {
	c := NewDedupeCache(time.Minute, 100)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.IsDuplicate("msg-1")

	now = now.Add(30 * time.Second)
	if !c.IsDuplicate("msg-1") {
		t.Error("entry within TTL not reported as duplicate")
	}

	now = now.Add(2 * time.Minute)
	if c.IsDuplicate("msg-1") {
		t.Error("expired entry still reported as duplicate")
	}
}

func TestDedupeCache_CapEviction(t *testing.T) {
	c := NewDedupeCache(time.Hour, 10)

	for i := 0; i < 25; i++ {
		c.IsDuplicate(fmt.Sprintf("msg-%d", i))
	}

	if len(c.seen) > 10 {
		t.Errorf("cache grew to %d entries, cap is 10", len(c.seen))
	}
}
