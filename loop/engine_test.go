package loop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hazyhaar/kagebunshin/llm"
	"github.com/hazyhaar/kagebunshin/tools"
)

type scriptedProvider struct {
	replies []llm.Message
	calls   int
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs []llm.Message, schemas []llm.ToolSchema, model string) (llm.Message, error) {
	if p.calls >= len(p.replies) {
		return llm.Message{Role: "assistant", Content: "fallback"}, nil
	}
	m := p.replies[p.calls]
	p.calls++
	return m, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, msgs []llm.Message, schemas []llm.ToolSchema, model string, h llm.StreamHandler) error {
	m, _ := p.Chat(ctx, msgs, schemas, model)
	if m.Content != "" {
		h.OnDelta(m.Content)
	}
	for _, tc := range m.ToolCalls {
		h.OnToolCall(tc)
	}
	return nil
}

func stubPrompt(ctx context.Context) ([]llm.Message, error) {
	return []llm.Message{{Role: "system", Content: "you are a test agent"}}, nil
}

func TestRunReturnsFinalAnswerWhenNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", Content: "Example Domain is the title."},
	}}
	e := &Engine{LLM: provider, Tools: tools.NewRegistry(), promptBuilder: stubPrompt}
	got, err := e.Run(context.Background(), "what is the title?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Example Domain is the title." {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestRunDispatchesToolCallsBeforeFinalAnswer(t *testing.T) {
	reg := tools.NewRegistry()
	called := false
	reg.Register("take_note", tools.Tool{
		Schema: llm.ToolSchema{Description: "note"},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			called = true
			return "noted", nil
		},
	})
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "1", Name: "take_note", Args: json.RawMessage(`{"note":"x"}`)}}},
		{Role: "assistant", Content: "done"},
	}}
	e := &Engine{LLM: provider, Tools: reg, promptBuilder: stubPrompt}
	got, err := e.Run(context.Background(), "take a note")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected take_note tool to be dispatched")
	}
	if got != "done" {
		t.Fatalf("unexpected answer: %q", got)
	}
	hist := e.History()
	foundToolResult := false
	for _, m := range hist {
		if m.Role == "tool" && m.Content == "noted" && m.ToolID == "1" {
			foundToolResult = true
		}
	}
	if !foundToolResult {
		t.Fatalf("expected a tool-result message in history, got %+v", hist)
	}
}

func TestRunHitsTurnCapAndReturnsSentinel(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register("noop", tools.Tool{
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) { return "ok", nil },
	})
	// This provider always emits a tool call, so the loop never terminates naturally.
	e := &Engine{LLM: &loopingToolProvider{}, Tools: reg, MaxTurns: 3, promptBuilder: stubPrompt}
	got, err := e.Run(context.Background(), "go forever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sentinelNoAnswer {
		t.Fatalf("expected sentinel fallback, got %q", got)
	}
}

type loopingToolProvider struct{}

func (loopingToolProvider) Chat(ctx context.Context, msgs []llm.Message, schemas []llm.ToolSchema, model string) (llm.Message, error) {
	return llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "x", Name: "noop", Args: json.RawMessage(`{}`)}}}, nil
}

func (loopingToolProvider) ChatStream(ctx context.Context, msgs []llm.Message, schemas []llm.ToolSchema, model string, h llm.StreamHandler) error {
	h.OnToolCall(llm.ToolCall{ID: "x", Name: "noop", Args: json.RawMessage(`{}`)})
	return nil
}

func TestCurrentDepthReflectsConfiguredDepth(t *testing.T) {
	e := &Engine{Depth: 2}
	if e.CurrentDepth() != 2 {
		t.Fatalf("expected depth 2, got %d", e.CurrentDepth())
	}
}

func TestRunExitsEarlyOnCancelledContext(t *testing.T) {
	reg := tools.NewRegistry()
	e := &Engine{LLM: &loopingToolProvider{}, Tools: reg, MaxTurns: 150, promptBuilder: stubPrompt}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := e.Run(ctx, "already cancelled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sentinelNoAnswer {
		t.Fatalf("expected sentinel fallback on cancellation, got %q", got)
	}
}
