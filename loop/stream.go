package loop

import (
	"context"

	"github.com/hazyhaar/kagebunshin/llm"
)

// RunStream executes the reason/act loop using the provider's streaming
// surface, forwarding text deltas to OnDelta as they arrive and tool
// results to OnToolResult as each lands. It returns the same final
// answer Run would.
func (e *Engine) RunStream(ctx context.Context, task string) (string, error) {
	return e.runLoop(ctx, task, true)
}

// streamAccumulator implements llm.StreamHandler, collecting one turn's
// deltas and tool calls into a single assistant message while forwarding
// deltas to the engine's OnDelta callback as they arrive.
type streamAccumulator struct {
	e         *Engine
	content   string
	toolCalls []llm.ToolCall
}

func (h *streamAccumulator) OnDelta(text string) {
	h.content += text
	if h.e.OnDelta != nil {
		h.e.OnDelta(text)
	}
}

func (h *streamAccumulator) OnToolCall(tc llm.ToolCall) {
	h.toolCalls = append(h.toolCalls, tc)
}

func (e *Engine) chatStream(ctx context.Context, msgs []llm.Message, schemas []llm.ToolSchema) (llm.Message, error) {
	acc := &streamAccumulator{e: e}
	if err := e.LLM.ChatStream(ctx, msgs, schemas, e.Model, acc); err != nil {
		return llm.Message{}, err
	}
	return llm.Message{Role: "assistant", Content: acc.content, ToolCalls: acc.toolCalls}, nil
}
