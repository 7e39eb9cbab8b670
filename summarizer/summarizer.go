// Package summarizer condenses a clone's conversation history into a
// short brief a new clone can resume from, so a delegated sub-agent
// doesn't have to replay its parent's entire turn-by-turn transcript.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/kagebunshin/llm"
)

const (
	maxCondensedMessages = 200
	maxContentChars      = 400
	maxArgsChars         = 120
)

const systemPrompt = `You are an expert assistant preparing a crisp handoff summary for a clone agent. ` +
	`Write 2-4 concise sentences that clearly state: (1) the main objective, ` +
	`(2) key actions/important tool results so far, and (3) current status and blockers/next focus. ` +
	`Be concrete and actionable, avoid boilerplate and internal prompts.`

const humanPromptTemplate = "Conversation history (chronological, trimmed):\n%s\n\nProduce the handoff summary now."

// Summarize condenses history into a brief via provider, falling back to
// a deterministic placeholder if the LLM call fails so delegation never
// blocks on a flaky summarizer model.
func Summarize(ctx context.Context, provider llm.Provider, history []llm.Message, parentName string) (string, error) {
	condensed := condense(history)
	if condensed == "" {
		return fallback(parentName), nil
	}

	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(humanPromptTemplate, condensed)},
	}

	resp, err := provider.Chat(ctx, msgs, nil, "")
	if err != nil {
		return fallback(parentName), nil
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return fallback(parentName), nil
	}
	return summary, nil
}

func fallback(parentName string) string {
	return fmt.Sprintf("Parent agent %s was working on tasks (summary unavailable).", parentName)
}

// condense turns a full message history into a compact line-per-message
// log: system messages are dropped (they carry standing instructions,
// not session state), the first user message is kept as the task
// statement (truncated like every other entry), and only the last maxCondensedMessages entries of
// the remainder are kept, each truncated and type-tagged.
func condense(history []llm.Message) string {
	var lines []string
	var initialRequest string
	sawFirstUser := false

	var rest []llm.Message
	for _, m := range history {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			continue
		case "user":
			if !sawFirstUser {
				sawFirstUser = true
				initialRequest = truncate(m.Content, maxContentChars)
				continue
			}
			rest = append(rest, m)
		default:
			rest = append(rest, m)
		}
	}

	if initialRequest != "" {
		lines = append(lines, "Initial request: "+initialRequest)
	}

	if len(rest) > maxCondensedMessages {
		rest = rest[len(rest)-maxCondensedMessages:]
	}

	for _, m := range rest {
		lines = append(lines, condenseOne(m))
	}

	return strings.Join(lines, "\n")
}

func condenseOne(m llm.Message) string {
	switch strings.ToLower(strings.TrimSpace(m.Role)) {
	case "assistant":
		if len(m.ToolCalls) > 0 {
			parts := make([]string, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				parts = append(parts, fmt.Sprintf("%s(%s)", tc.Name, truncate(string(tc.Args), maxArgsChars)))
			}
			return "AI called: " + strings.Join(parts, ", ")
		}
		return "AI: " + truncate(m.Content, maxContentChars)
	case "tool":
		name := m.ToolID
		if name == "" {
			name = "result"
		}
		return fmt.Sprintf("Tool[%s] → %s", name, truncate(m.Content, maxContentChars))
	case "user":
		return "User: " + truncate(m.Content, maxContentChars)
	default:
		return truncate(m.Content, maxContentChars)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
