// Package loop implements the reason/act cycle every kagebunshin agent
// (root or clone) runs: observe the page, assemble an LLM prompt, invoke
// the model, dispatch any tool calls, and repeat until a final answer.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/kagebunshin/browser"
	"github.com/hazyhaar/kagebunshin/chatbus"
	"github.com/hazyhaar/kagebunshin/llm"
	"github.com/hazyhaar/kagebunshin/tools"
)

// DefaultMaxTurns bounds how many reason/act turns one agent may take
// before the loop is forced to conclude.
const DefaultMaxTurns = 150

const sentinelNoAnswer = "Task completed, but no specific answer was provided."

const groupChatHistoryLimit = 50

// Engine drives one agent's reason/act loop against its own Session.
// Tools should be wired (via tools.Build) with closures that read
// Elements/History/Depth off this Engine before Run is called, since
// the registry and the engine are mutually referential.
type Engine struct {
	LLM       llm.Provider
	Tools     *tools.Registry
	Session   *browser.Session
	Chat      *chatbus.Bus
	Room      string
	AgentName string
	Depth     int
	Model     string
	MaxTurns  int
	Logger    *slog.Logger

	// OnDelta, if set, receives streaming text deltas during RunStream.
	OnDelta func(string)
	// OnToolResult, if set, is called after every dispatched tool call.
	OnToolResult func(tc llm.ToolCall, result string)

	mu        sync.Mutex
	history   []llm.Message
	lastElems []browser.Element

	// promptBuilder overrides buildPrompt; nil uses the real one. Tests
	// set this to avoid needing a live browser Session.
	promptBuilder func(ctx context.Context) ([]llm.Message, error)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// History returns a snapshot of the conversation so far, safe to read
// concurrently with an in-flight turn (used by the delegate tool).
func (e *Engine) History() []llm.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]llm.Message, len(e.history))
	copy(out, e.history)
	return out
}

// CurrentDepth returns this agent's clone depth, for the delegate tool.
func (e *Engine) CurrentDepth() int { return e.Depth }

// ActionCount returns AgentState.action_count: the number of actions
// dispatched through this agent's Session that the Session counted.
// Monotonically non-decreasing for the lifetime of Run.
func (e *Engine) ActionCount() int64 {
	if e.Session == nil {
		return 0
	}
	return e.Session.ActionCount()
}

// CurrentElements returns the indexed elements of the most recent
// Observation, for action-tool handlers to resolve indices against.
func (e *Engine) CurrentElements() []browser.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastElems
}

func (e *Engine) appendHistory(msgs ...llm.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, msgs...)
}

func (e *Engine) setElements(elements []browser.Element) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastElems = elements
}

// Run executes the non-streaming reason/act loop for task and returns
// the assistant's final textual answer.
func (e *Engine) Run(ctx context.Context, task string) (string, error) {
	return e.runLoop(ctx, task, false)
}

func (e *Engine) runLoop(ctx context.Context, task string, stream bool) (string, error) {
	e.appendHistory(llm.Message{Role: "user", Content: task})

	maxTurns := e.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	var final string
	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			e.logger().Info("loop: cancelled at turn boundary", "agent", e.AgentName, "turn", turn)
			break
		}

		builder := e.promptBuilder
		if builder == nil {
			builder = e.buildPrompt
		}
		msgs, err := builder(ctx)
		if err != nil {
			return "", fmt.Errorf("loop: build prompt: %w", err)
		}
		schemas := e.Tools.Schemas()

		var assistant llm.Message
		if stream {
			assistant, err = e.chatStream(ctx, msgs, schemas)
		} else {
			assistant, err = e.LLM.Chat(ctx, msgs, schemas, e.Model)
		}
		if err != nil {
			return "", fmt.Errorf("loop: chat: %w", err)
		}

		e.appendHistory(assistant)

		if len(assistant.ToolCalls) == 0 {
			final = assistant.Content
			break
		}

		e.logger().Debug("loop: dispatching tool calls", "agent", e.AgentName, "turn", turn, "count", len(assistant.ToolCalls))
		for _, tc := range assistant.ToolCalls {
			result, err := e.Tools.Dispatch(ctx, tc.Name, tc.Args)
			if err != nil {
				result = fmt.Sprintf("Error: %v", err)
			}
			if e.OnToolResult != nil {
				e.OnToolResult(tc, result)
			}
			e.appendHistory(llm.Message{Role: "tool", Content: result, ToolID: tc.ID})
		}
	}

	if strings.TrimSpace(final) == "" {
		final = sentinelNoAnswer
	}
	return final, nil
}

func (e *Engine) buildPrompt(ctx context.Context) ([]llm.Message, error) {
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}

	chatBlock := "(group chat unavailable)"
	if e.Chat != nil {
		if hist, err := e.Chat.History(ctx, e.Room, groupChatHistoryLimit); err == nil {
			chatBlock = chatbus.Format(hist)
		} else {
			e.logger().Warn("loop: group chat history unavailable", "error", err)
		}
	}
	msgs = append(msgs, llm.Message{
		Role:    "system",
		Content: fmt.Sprintf("Your name is %s.\n\nHere is the group chat history:\n\n%s", e.AgentName, chatBlock),
	})

	obs := browser.Observe(ctx, e.Session)
	e.setElements(obs.Elements)

	if tab, ok := obs.ActiveTab(); ok && browser.IsNeutralStartPage(tab.URL) {
		msgs = append(msgs, llm.Message{Role: "system", Content: navigationWarning})
	}

	msgs = append(msgs, e.History()...)

	pageMsg := llm.Message{Role: "user", Content: buildPageContextText(obs)}
	if len(obs.Screenshot) > 0 {
		pageMsg.Images = []llm.Image{{Data: obs.Screenshot, MIMEType: "image/png"}}
	}
	msgs = append(msgs, pageMsg)

	return msgs, nil
}
