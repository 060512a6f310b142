package coalesce

import (
	"testing"
	"time"
)

func msgAt(text string, at time.Time) Message {
	return Message{Key: "wa:123", Text: text, ArrivedAt: at}
}

func TestClassifier_Related_TimeBucket(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 5, 0, time.UTC)
	c := Classifier{}

	tests := []struct {
		name string
		prev Message
		next Message
		want bool
	}{
		{"within window", msgAt("weather?", base), msgAt("burger prices?", base.Add(10 * time.Second)), true},
		{"exactly at window edge", msgAt("weather?", base), msgAt("burger prices?", base.Add(30 * time.Second)), true},
		{"same wall-clock minute beyond window", msgAt("weather?", base.Add(-4 * time.Second)), msgAt("burger prices?", base.Add(50 * time.Second)), true},
		{"different minute beyond window", msgAt("weather?", base), msgAt("burger prices?", base.Add(2 * time.Minute)), false},
		{"next arrived before prev", msgAt("weather?", base), msgAt("burger prices?", base.Add(-5 * time.Second)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Related(tt.prev, tt.next); got != tt.want {
				t.Errorf("Related() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_Related_Greeting(t *testing.T) {
	// Timestamps far apart so only the text rules can match.
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	later := base.Add(5 * time.Minute)
	c := Classifier{}

	tests := []struct {
		name string
		prev string
		next string
		want bool
	}{
		{"bare hi", "Hi", "I want to book a session", true},
		{"hey with name", "Hey there", "what are your opening hours", true},
		{"good morning", "Good morning!", "what classes run today", true},
		{"greeting too long", "hi I was wondering about your personal training rates", "what about groups", false},
		{"hike is not hi", "hike recommendations?", "what about trails", false},
		{"not a greeting", "how much is a day pass", "what about weekly", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Related(msgAt(tt.prev, base), msgAt(tt.next, later)); got != tt.want {
				t.Errorf("Related(%q, %q) = %v, want %v", tt.prev, tt.next, got, tt.want)
			}
		})
	}
}

func TestClassifier_Related_Continuation(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	later := base.Add(5 * time.Minute)
	c := Classifier{}

	tests := []struct {
		name string
		next string
		want bool
	}{
		{"also", "Also do you have parking?", true},
		{"and", "and can I bring a friend", true},
		{"plus", "plus the sauna question", true},
		{"i'd", "I'd like the morning slot", true},
		{"i'm", "I'm free after 6", true},
		{"my", "my membership expired", true},
		{"bare i", "I forgot my card", true},
		{"android is not and", "android app available?", false},
		{"unrelated", "do you sell protein bars", false},
	}

	prev := msgAt("how much is a monthly membership", base)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Related(prev, msgAt(tt.next, later)); got != tt.want {
				t.Errorf("Related(_, %q) = %v, want %v", tt.next, got, tt.want)
			}
		})
	}
}

func TestClassifier_CustomWindow(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 29, 58, 0, time.UTC)
	c := Classifier{Window: 5 * time.Second}

	// 10s apart and straddling a minute boundary: outside the custom
	// window and not the same wall-clock minute.
	if c.Related(msgAt("first", base), msgAt("second", base.Add(10*time.Second))) {
		t.Error("messages outside custom window should not be related")
	}
	if !c.Related(msgAt("first", base), msgAt("second", base.Add(3*time.Second))) {
		t.Error("messages inside custom window should be related")
	}
}
