package reply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samgrcn/WhatsApp-AI/internal/config"
	"github.com/samgrcn/WhatsApp-AI/internal/providers"
	"github.com/samgrcn/WhatsApp-AI/internal/store"
)

type fakeProvider struct {
	gotReq providers.ChatRequest
	resp   *providers.ChatResponse
	err    error
}

func (p *fakeProvider) Name() string         { return "fake" }
func (p *fakeProvider) DefaultModel() string { return "fake-model" }
func (p *fakeProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.gotReq = req
	return p.resp, p.err
}

type memMessages struct {
	history []store.MessageRecord
}

func (m *memMessages) Append(_ context.Context, key, text string, fromUser bool, ts time.Time) error {
	m.history = append(m.history, store.MessageRecord{ConversationKey: key, Text: text, FromUser: fromUser, Timestamp: ts})
	return nil
}

func (m *memMessages) RecentHistory(_ context.Context, _ string, limit int) ([]store.MessageRecord, error) {
	if len(m.history) > limit {
		return m.history[len(m.history)-limit:], nil
	}
	return m.history, nil
}

func (m *memMessages) Conversations(_ context.Context) ([]store.ConversationInfo, error) {
	return nil, nil
}

func (m *memMessages) ConversationMessages(_ context.Context, _ string) ([]store.MessageRecord, error) {
	return m.history, nil
}

type memPrompt struct {
	prompt string
}

func (p *memPrompt) SystemPrompt(_ context.Context) (string, error)    { return p.prompt, nil }
func (p *memPrompt) SetSystemPrompt(_ context.Context, s string) error { p.prompt = s; return nil }

func newTestGenerator(p providers.Provider, msgs store.MessageStore, prompt store.PromptStore) *Generator {
	return NewGenerator(p, msgs, prompt, config.NewHolder(config.Default()))
}

func TestGenerator_BuildsSystemHistoryUser(t *testing.T) {
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "sure!"}}
	msgs := &memMessages{history: []store.MessageRecord{
		{Text: "hi", FromUser: true},
		{Text: "hello, how can I help?", FromUser: false},
	}}
	g := newTestGenerator(provider, msgs, &memPrompt{prompt: "be helpful"})

	reply, err := g.Generate(context.Background(), "book me a session", "wa:123")
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if reply != "sure!" {
		t.Errorf("reply = %q", reply)
	}

	got := provider.gotReq.Messages
	if len(got) != 4 {
		t.Fatalf("request has %d messages, want 4 (system + 2 history + user)", len(got))
	}
	if got[0].Role != "system" || got[0].Content != "be helpful" {
		t.Errorf("system message = %+v", got[0])
	}
	if got[1].Role != "user" || got[2].Role != "assistant" {
		t.Errorf("history roles = %q, %q", got[1].Role, got[2].Role)
	}
	if got[3].Role != "user" || got[3].Content != "book me a session" {
		t.Errorf("final message = %+v", got[3])
	}
}

func TestGenerator_SkipsDuplicateCurrentUtterance(t *testing.T) {
	// Inbound messages are persisted before generation, so a single-message
	// batch is usually already the last history entry.
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "ok"}}
	msgs := &memMessages{history: []store.MessageRecord{
		{Text: "what are your hours", FromUser: true},
	}}
	g := newTestGenerator(provider, msgs, &memPrompt{})

	if _, err := g.Generate(context.Background(), "what are your hours", "wa:123"); err != nil {
		t.Fatal(err)
	}

	got := provider.gotReq.Messages
	if len(got) != 2 {
		t.Fatalf("request has %d messages, want 2 (system + history entry, no duplicate)", len(got))
	}
}

func TestGenerator_DefaultPromptFallback(t *testing.T) {
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "ok"}}
	g := newTestGenerator(provider, &memMessages{}, &memPrompt{})

	if _, err := g.Generate(context.Background(), "hello", "wa:123"); err != nil {
		t.Fatal(err)
	}

	got := provider.gotReq.Messages
	if got[0].Content != config.Default().DefaultSystemPrompt {
		t.Error("system prompt fallback not applied")
	}
}

func TestGenerator_UsesConfiguredModelAndTokens(t *testing.T) {
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "ok"}}
	cfg := config.Default()
	cfg.Provider.Model = "deepseek-chat"
	cfg.Provider.MaxTokens = 500
	g := NewGenerator(provider, &memMessages{}, &memPrompt{}, config.NewHolder(cfg))

	if _, err := g.Generate(context.Background(), "hello", "wa:123"); err != nil {
		t.Fatal(err)
	}
	if provider.gotReq.Model != "deepseek-chat" || provider.gotReq.MaxTokens != 500 {
		t.Errorf("request = model %q, max_tokens %d", provider.gotReq.Model, provider.gotReq.MaxTokens)
	}
}

func TestGenerator_ProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	g := newTestGenerator(provider, &memMessages{}, &memPrompt{})

	if _, err := g.Generate(context.Background(), "hello", "wa:123"); err == nil {
		t.Fatal("Generate() succeeded despite provider error")
	}
}

func TestGenerator_EmptyContentIsError(t *testing.T) {
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: ""}}
	g := newTestGenerator(provider, &memMessages{}, &memPrompt{})

	if _, err := g.Generate(context.Background(), "hello", "wa:123"); err == nil {
		t.Fatal("Generate() succeeded with empty content")
	}
}
