package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/kagebunshin/llm"
)

type stubProvider struct {
	resp llm.Message
	err  error
}

func (s stubProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	return s.resp, s.err
}

func (s stubProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	return s.err
}

func TestSummarizeUsesProviderOutput(t *testing.T) {
	p := stubProvider{resp: llm.Message{Role: "assistant", Content: "agent logged in and searched for flights"}}
	history := []llm.Message{
		{Role: "system", Content: "you are a browsing agent"},
		{Role: "user", Content: "book a flight to Tokyo"},
		{Role: "assistant", Content: "navigating to airline site"},
	}
	got, err := Summarize(context.Background(), p, history, "quiet-heron")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "agent logged in and searched for flights" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestSummarizeFallsBackOnProviderError(t *testing.T) {
	p := stubProvider{err: errors.New("rate limited")}
	history := []llm.Message{{Role: "user", Content: "book a flight"}}
	got, err := Summarize(context.Background(), p, history, "swift-otter")
	if err != nil {
		t.Fatalf("fallback should not surface an error: %v", err)
	}
	want := "Parent agent swift-otter was working on tasks (summary unavailable)."
	if got != want {
		t.Fatalf("expected fallback %q, got %q", want, got)
	}
}

func TestSummarizeFallsBackOnEmptyHistory(t *testing.T) {
	p := stubProvider{resp: llm.Message{Content: "should not be called"}}
	got, err := Summarize(context.Background(), p, nil, "amber-maple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fallback("amber-maple") {
		t.Fatalf("expected deterministic fallback, got %q", got)
	}
}

func TestCondensePreservesInitialRequestAndDropsSystem(t *testing.T) {
	history := []llm.Message{
		{Role: "system", Content: "standing instructions"},
		{Role: "user", Content: "find the cheapest flight"},
		{Role: "assistant", Content: "searching"},
		{Role: "tool", ToolID: "search", Content: "found 3 results"},
	}
	out := condense(history)
	if !strings.HasPrefix(out, "Initial request: find the cheapest flight") {
		t.Fatalf("expected initial request prefix, got %q", out)
	}
	if strings.Contains(out, "standing instructions") {
		t.Fatalf("system message leaked into condensed log: %q", out)
	}
	if !strings.Contains(out, "AI: searching") {
		t.Fatalf("expected assistant text line, got %q", out)
	}
	if !strings.Contains(out, "Tool[search] → found 3 results") {
		t.Fatalf("expected tool result line, got %q", out)
	}
}

func TestCondenseCapsToLastN(t *testing.T) {
	history := []llm.Message{{Role: "user", Content: "start"}}
	for i := 0; i < maxCondensedMessages+50; i++ {
		history = append(history, llm.Message{Role: "assistant", Content: "step"})
	}
	out := condense(history)
	lines := strings.Split(out, "\n")
	if len(lines) > maxCondensedMessages+1 {
		t.Fatalf("expected condensed log capped near %d lines, got %d", maxCondensedMessages+1, len(lines))
	}
}

func TestTruncateAddsEllipsisPastLimit(t *testing.T) {
	long := strings.Repeat("a", maxContentChars+10)
	got := truncate(long, maxContentChars)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated string to end with ellipsis, got suffix %q", got[len(got)-5:])
	}
	if len(got) != maxContentChars+3 {
		t.Fatalf("expected length %d, got %d", maxContentChars+3, len(got))
	}
}
