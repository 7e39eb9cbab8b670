// Package mcpfront exposes a kagebunshin root Agent's run surface as MCP
// tools, so an external orchestrator can drive the swarm the same way it
// would any other MCP-backed capability.
package mcpfront

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/kagebunshin"
	"github.com/hazyhaar/kagebunshin/kit"
)

// Runner is the subset of *kagebunshin.Agent this package depends on,
// so tests can substitute a fake without building a real Agent.
type Runner interface {
	Run(ctx context.Context, task string) (string, error)
}

var _ Runner = (*kagebunshin.Agent)(nil)

// Register adds the kagebunshin_run tool to srv, backed by agent.
func Register(srv *mcp.Server, agent Runner) {
	registerRunTool(srv, agent)
}

type runRequest struct {
	Task string `json:"task"`
}

type runResponse struct {
	Answer string `json:"answer"`
}

func registerRunTool(srv *mcp.Server, agent Runner) {
	tool := &mcp.Tool{
		Name:        "kagebunshin_run",
		Description: "Run a kagebunshin web-automation agent on a task and return its final answer. The agent may delegate subtasks to clone agents internally; this call blocks until the whole tree finishes.",
		InputSchema: inputSchema(map[string]any{
			"task": map[string]any{"type": "string", "description": "Natural-language instructions for the agent."},
		}, []string{"task"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*runRequest)
		if r.Task == "" {
			return nil, fmt.Errorf("mcpfront: task must not be empty")
		}
		answer, err := agent.Run(ctx, r.Task)
		if err != nil {
			return nil, err
		}
		return &runResponse{Answer: answer}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r runRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
