// Package llm defines the vendor-agnostic chat surface the reason/act
// loop drives, and provider adapters that translate it to a specific
// vendor SDK (Anthropic, OpenAI).
package llm

import (
	"context"
	"encoding/json"
)

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Image is an inline image part, used to hand the model a page
// screenshot alongside its text observation.
type Image struct {
	Data     []byte
	MIMEType string
}

// Message is one turn in a conversation. Role is one of "system",
// "user", "assistant", "tool". Tool-result messages carry ToolID
// correlating them 1:1 with the ToolCall that produced them.
type Message struct {
	Role      string
	Content   string
	ToolID    string
	ToolCalls []ToolCall
	Images    []Image
}

// ToolSchema describes a callable tool in JSON-Schema form.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StreamHandler receives incremental output from ChatStream.
type StreamHandler interface {
	OnDelta(text string)
	OnToolCall(tc ToolCall)
}

// Provider is the minimal surface every vendor adapter implements.
type Provider interface {
	Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string) (Message, error)
	ChatStream(ctx context.Context, msgs []Message, tools []ToolSchema, model string, h StreamHandler) error
}
