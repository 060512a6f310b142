package coalesce

import (
	"strings"
	"time"
	"unicode"
)

// DefaultWindow is the time span within which two messages are always
// considered part of the same utterance.
const DefaultWindow = 30 * time.Second

// greetings are short openers that usually precede the real question.
var greetings = []string{
	"hi",
	"hello",
	"hey",
	"good morning",
	"good afternoon",
	"good evening",
}

// continuations are tokens that mark a follow-up to the previous message:
// conjunctions and first-person openers.
var continuations = []string{
	"and",
	"also",
	"plus",
	"additionally",
	"moreover",
	"i am",
	"i'd",
	"i'm",
	"i",
	"my",
	"me",
}

// Classifier decides whether two consecutive queued messages belong to the
// same reply cycle. Pure: no side effects, no I/O.
type Classifier struct {
	// Window overrides DefaultWindow when positive.
	Window time.Duration
}

// Related reports whether next should be merged into the same batch as prev.
// Rules are evaluated in priority order, first match wins:
//  1. arrived within the same time bucket (same wall-clock minute or
//     within Window)
//  2. prev is a short greeting (fewer than 5 words)
//  3. next starts with a continuation token
func (c Classifier) Related(prev, next Message) bool {
	if c.sameTimeBucket(prev.ArrivedAt, next.ArrivedAt) {
		return true
	}
	if isShortGreeting(prev.Text) {
		return true
	}
	return startsWithContinuation(next.Text)
}

func (c Classifier) sameTimeBucket(a, b time.Time) bool {
	window := c.Window
	if window <= 0 {
		window = DefaultWindow
	}
	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	if diff <= window {
		return true
	}
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

// isShortGreeting reports whether text opens with a known greeting and is
// fewer than 5 words long. A bare greeting is assumed to be the opener of a
// longer thought.
func isShortGreeting(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	if len(strings.Fields(norm)) >= 5 {
		return false
	}
	for _, g := range greetings {
		if hasWordPrefix(norm, g) {
			return true
		}
	}
	return false
}

func startsWithContinuation(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	for _, tok := range continuations {
		if hasWordPrefix(norm, tok) {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether s equals token or starts with token followed
// by a non-letter rune, so "hi there" matches "hi" but "hike" does not.
func hasWordPrefix(s, token string) bool {
	if !strings.HasPrefix(s, token) {
		return false
	}
	if len(s) == len(token) {
		return true
	}
	r := []rune(s[len(token):])[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
