// Package kagebunshin wires the browser manager, LLM provider, clone
// orchestrator, tool registry, and reason/act loop into a single
// runnable Agent — the construction point every cmd/ and httpapi/
// entry point calls into.
package kagebunshin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/kagebunshin/audit"
	"github.com/hazyhaar/kagebunshin/browser"
	"github.com/hazyhaar/kagebunshin/chatbus"
	"github.com/hazyhaar/kagebunshin/identity"
	"github.com/hazyhaar/kagebunshin/llm"
	"github.com/hazyhaar/kagebunshin/loop"
	"github.com/hazyhaar/kagebunshin/swarm"
	"github.com/hazyhaar/kagebunshin/tools"
)

// Agent is a constructed root agent: its own Session, its own Engine,
// and a shared Orchestrator every delegate call (its own and its
// clones') goes through.
type Agent struct {
	opts         Options
	manager      *browser.Manager
	provider     llm.Provider
	orchestrator *swarm.Orchestrator
	session      *browser.Session
	engine       *loop.Engine
	name         string
	logger       *slog.Logger
}

// New launches the browser, builds the LLM provider(s), and assembles
// the root Agent ready for Run. Callers must call Close when done.
func New(ctx context.Context, opts Options) (*Agent, error) {
	opts.defaults()
	logger := opts.Logger

	provider, err := buildProvider(opts.LLM)
	if err != nil {
		return nil, fmt.Errorf("kagebunshin: build LLM provider: %w", err)
	}
	summarizerProvider := provider
	if opts.Summarizer.Vendor != "" || opts.Summarizer.Model != "" {
		summarizerProvider, err = buildProvider(LLMOptions{
			Vendor:  firstNonEmpty(opts.Summarizer.Vendor, opts.LLM.Vendor),
			Model:   firstNonEmpty(opts.Summarizer.Model, opts.LLM.Model),
			APIKey:  opts.LLM.APIKey,
			BaseURL: opts.LLM.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("kagebunshin: build summarizer provider: %w", err)
		}
	}

	manager := browser.NewManager(opts.browserConfig())
	if _, err := manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("kagebunshin: start browser: %w", err)
	}

	root, err := manager.Incognito()
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("kagebunshin: root context: %w", err)
	}
	session, err := browser.NewSession(ctx, root, "", opts.ResourceBlocking)
	if err != nil {
		root.Close()
		manager.Close()
		return nil, fmt.Errorf("kagebunshin: root session: %w", err)
	}

	orchestrator := swarm.NewOrchestrator(manager, summarizerProvider, opts.ResourceBlocking, opts.Limits, logger)

	a := &Agent{
		opts:         opts,
		manager:      manager,
		provider:     provider,
		orchestrator: orchestrator,
		session:      session,
		name:         identity.New(),
		logger:       logger,
	}
	a.engine = a.buildEngine(session, a.name, 0)
	return a, nil
}

// Run drives the root agent's reason/act loop to completion for task
// and returns its final answer.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	if a.opts.AuditLogger != nil {
		a.opts.AuditLogger.LogAsync(&audit.Entry{Action: "run", Parameters: task, UserID: a.name})
	}
	answer, err := a.engine.Run(ctx, task)
	if a.opts.AuditLogger != nil {
		entry := &audit.Entry{Action: "run_complete", Parameters: task, UserID: a.name}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Parameters = answer
		}
		a.opts.AuditLogger.LogAsync(entry)
	}
	return answer, err
}

// ActionCount returns the root agent's AgentState.action_count: how
// many dispatched actions its Session has counted so far.
func (a *Agent) ActionCount() int64 { return a.engine.ActionCount() }

// RunStream is Run's streaming counterpart; onDelta receives text
// tokens as they arrive.
func (a *Agent) RunStream(ctx context.Context, task string, onDelta func(string)) (string, error) {
	a.engine.OnDelta = onDelta
	return a.engine.RunStream(ctx, task)
}

// Close tears down the root session and the underlying browser process.
func (a *Agent) Close() error {
	identity.Release(a.name)
	if err := a.session.Close(); err != nil {
		a.logger.Warn("kagebunshin: root session close failed", "error", err)
	}
	return a.manager.Close()
}

// buildEngine assembles one agent's Engine plus its tool registry,
// wiring the registry's closures back to the same Engine instance
// before Run is ever called (the two-phase init the C6/C5 boundary
// requires: the registry must see live Elements/History/Depth).
func (a *Agent) buildEngine(session *browser.Session, name string, depth int) *loop.Engine {
	engine := &loop.Engine{
		LLM:       a.provider,
		Session:   session,
		Chat:      a.opts.Chat,
		Room:      a.opts.Room,
		AgentName: name,
		Depth:     depth,
		Model:     a.opts.LLM.Model,
		Logger:    a.logger,
	}

	registry := tools.Build(tools.Deps{
		Session:      session,
		Elements:     engine.CurrentElements,
		Chat:         a.opts.Chat,
		Room:         a.opts.Room,
		AgentName:    name,
		Orchestrator: a.orchestrator,
		Depth:        engine.CurrentDepth,
		History:      engine.History,
		Spawn:        a.spawnClone,
	})
	engine.Tools = registry
	return engine
}

// spawnClone is swarm.SpawnFunc: it builds a fresh Engine bound to the
// clone's isolated session and runs it to completion. The Orchestrator
// owns session lifecycle; this only owns running the loop.
func (a *Agent) spawnClone(ctx context.Context, session *browser.Session, briefing, name string, depth int) (string, error) {
	childEngine := a.buildEngine(session, name, depth)
	return childEngine.Run(ctx, briefing)
}

func buildProvider(opts LLMOptions) (llm.Provider, error) {
	switch opts.Vendor {
	case "", "anthropic":
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
		}), nil
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
		}), nil
	default:
		return nil, fmt.Errorf("kagebunshin: unknown LLM vendor %q", opts.Vendor)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// WithGroupChat connects a Redis-backed chatbus for cross-agent
// coordination. Call before New; pass the result as Options.Chat.
func WithGroupChat(ctx context.Context, cfg chatbus.Config) (*chatbus.Bus, error) {
	return chatbus.New(ctx, cfg)
}
