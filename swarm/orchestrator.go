// Package swarm implements the delegate tool: fanning a parent agent's
// subtasks out to freshly isolated clone agents, bounded by a global
// capacity cap and a per-branch depth cap.
package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/kagebunshin/browser"
	"github.com/hazyhaar/kagebunshin/identity"
	"github.com/hazyhaar/kagebunshin/llm"
	"github.com/hazyhaar/kagebunshin/summarizer"
)

const (
	DefaultMaxAgents     = 5
	DefaultMaxCloneDepth = 3
)

// Limits bounds swarm growth. Zero values take the package defaults.
type Limits struct {
	MaxAgents     int
	MaxCloneDepth int
}

func (l *Limits) defaults() {
	if l.MaxAgents <= 0 {
		l.MaxAgents = DefaultMaxAgents
	}
	if l.MaxCloneDepth <= 0 {
		l.MaxCloneDepth = DefaultMaxCloneDepth
	}
}

// SpawnFunc runs a freshly constructed clone agent, bound to session, to
// completion and returns its final textual answer. Owned by whoever can
// build a full reason/act loop (the root façade) so this package stays
// free of a dependency on that loop.
type SpawnFunc func(ctx context.Context, session *browser.Session, briefing, name string, depth int) (string, error)

// TaskResult is one entry of a delegate call's JSON response.
type TaskResult struct {
	Task   string `json:"task"`
	Status string `json:"status"` // "ok", "denied", "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Orchestrator tracks the process-wide live agent count and hands out
// isolated browser contexts for clone spawns. One Orchestrator is shared
// by the root agent and every clone in its tree.
type Orchestrator struct {
	limits     Limits
	manager    *browser.Manager
	provider   llm.Provider
	blockTypes []string
	logger     *slog.Logger

	live int64
}

// NewOrchestrator builds an Orchestrator. provider is used only for the
// once-per-delegate-call history summarization (C4), not for running
// clones themselves.
func NewOrchestrator(manager *browser.Manager, provider llm.Provider, blockTypes []string, limits Limits, logger *slog.Logger) *Orchestrator {
	limits.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		limits:     limits,
		manager:    manager,
		provider:   provider,
		blockTypes: blockTypes,
		logger:     logger,
	}
}

// LiveCount returns the current number of live agents (root + clones).
func (o *Orchestrator) LiveCount() int64 { return atomic.LoadInt64(&o.live) }

// TryAcquire reserves one agent slot if capacity allows. Callers that
// acquire a slot must eventually call Release.
func (o *Orchestrator) TryAcquire() bool {
	for {
		cur := atomic.LoadInt64(&o.live)
		if cur >= int64(o.limits.MaxAgents) {
			return false
		}
		if atomic.CompareAndSwapInt64(&o.live, cur, cur+1) {
			return true
		}
	}
}

// Release frees one agent slot.
func (o *Orchestrator) Release() { atomic.AddInt64(&o.live, -1) }

// DelegateRequest carries everything Delegate needs about the caller.
type DelegateRequest struct {
	ParentName    string
	ParentDepth   int
	ParentHistory []llm.Message
	Tasks         []string
	Spawn         SpawnFunc
}

// Delegate is the delegate tool's handler. It always returns a JSON
// string (never a Go error) so the caller can hand the result straight
// back to the model as a tool result.
func (o *Orchestrator) Delegate(ctx context.Context, req DelegateRequest) string {
	if len(req.Tasks) == 0 {
		return errorObject("'tasks' must be a non-empty list of strings")
	}
	if req.ParentDepth >= o.limits.MaxCloneDepth {
		return errorObject(fmt.Sprintf("Maximum clone depth (%d) reached. Consider alternative approaches.", req.ParentDepth))
	}
	if req.Spawn == nil {
		return errorObject("cannot create new browser context from the current context")
	}

	parentName := req.ParentName
	if parentName == "" {
		parentName = "parent-agent"
	}
	summary, err := summarizer.Summarize(ctx, o.provider, req.ParentHistory, parentName)
	if err != nil {
		summary = fmt.Sprintf("Parent agent %s was working on tasks (summary unavailable).", parentName)
	}

	results := make([]TaskResult, len(req.Tasks))
	var wg sync.WaitGroup
	for i, task := range req.Tasks {
		wg.Add(1)
		go func(i int, task string) {
			defer wg.Done()
			results[i] = o.runOne(ctx, task, parentName, req.ParentDepth, summary, req.Spawn)
		}(i, task)
	}
	wg.Wait()

	out, err := json.Marshal(results)
	if err != nil {
		return errorObject("failed to encode delegate results")
	}
	return string(out)
}

func (o *Orchestrator) runOne(ctx context.Context, task, parentName string, parentDepth int, summary string, spawn SpawnFunc) TaskResult {
	if !o.TryAcquire() {
		return TaskResult{
			Task:   task,
			Status: "denied",
			Error:  fmt.Sprintf("Delegation denied: max agents reached (%d).", o.limits.MaxAgents),
		}
	}
	defer o.Release()

	incognito, err := o.manager.Incognito()
	if err != nil {
		return TaskResult{Task: task, Status: "error", Error: err.Error()}
	}

	session, err := browser.NewSession(ctx, incognito, "", o.blockTypes)
	if err != nil {
		incognito.Close()
		return TaskResult{Task: task, Status: "error", Error: err.Error()}
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("swarm: failed to close clone session", "error", err)
		}
	}()

	childName := identity.New()
	defer identity.Release(childName)

	depth := parentDepth + 1
	briefing := briefingMessage(parentName, depth, summary, task)

	result, err := spawn(ctx, session, briefing, childName, depth)
	if err != nil {
		o.logger.Error("swarm: delegate task failed", "task", task, "error", err)
		return TaskResult{Task: task, Status: "error", Error: err.Error()}
	}
	return TaskResult{Task: task, Status: "ok", Result: result}
}

func briefingMessage(parentName string, depth int, summary, task string) string {
	return fmt.Sprintf(`CLONE BRIEFING: You are a shadow clone of %s (Depth: %d)!

PARENT CONTEXT: %s

YOUR MISSION: %s

VERIFICATION CRITICAL: ground all responses in actual observations. Navigate first, conclude second. Never make claims without visiting relevant sources and observing actual content.

You have full delegation capabilities. If your task would benefit from parallelization, create your own clones with the delegate tool — you are not limited by being a clone yourself.

Coordination: use the group chat to coordinate with your parent and other agents. Think strategically about when to parallelize vs. work sequentially.`, parentName, depth, summary, task)
}

func errorObject(msg string) string {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, msg)
	}
	return string(out)
}
