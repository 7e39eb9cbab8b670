// Package tools builds the static tool registry the reason/act loop
// dispatches LLM tool calls against: the browser action vocabulary,
// plus delegate and post_groupchat.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hazyhaar/kagebunshin/llm"
)

// Handler executes one tool call and returns its result text.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool pairs a JSON-schema description with its handler.
type Tool struct {
	Schema  llm.ToolSchema
	Handler Handler
}

// Registry is a threadsafe name -> Tool map, built once per agent and
// consulted once per dispatched tool call.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(name string, t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Schema.Name = name
	r.tools[name] = t
}

// Schemas returns every registered tool's schema, for the LLM call.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema)
	}
	return out
}

// Dispatch runs the named tool and returns its result string. An
// unknown tool name or a failing handler yields a non-nil error, which
// the caller turns into the tool-result message.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Handler(ctx, args)
}
