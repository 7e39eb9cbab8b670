package mcpfront

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "mcpfront-test", Version: "0.1.0"}

type stubRunner struct {
	answer string
	err    error
}

func (s *stubRunner) Run(ctx context.Context, task string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func mcpSession(t *testing.T, runner Runner) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	Register(srv, runner)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestMCP_Run_ReturnsAnswer(t *testing.T) {
	session := mcpSession(t, &stubRunner{answer: "Tokyo is 22C and clear."})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "kagebunshin_run",
		Arguments: map[string]any{"task": "weather in Tokyo"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var resp runResponse
	if err := json.Unmarshal([]byte(tc.Text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Answer != "Tokyo is 22C and clear." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
}

func TestMCP_Run_RejectsEmptyTask(t *testing.T) {
	session := mcpSession(t, &stubRunner{answer: "unused"})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "kagebunshin_run",
		Arguments: map[string]any{"task": ""},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.GetError() == nil {
		t.Fatal("expected a tool error for an empty task")
	}
}

func TestMCP_Run_PropagatesAgentError(t *testing.T) {
	session := mcpSession(t, &stubRunner{err: errors.New("browser crashed")})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "kagebunshin_run",
		Arguments: map[string]any{"task": "anything"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.GetError() == nil {
		t.Fatal("expected a tool error when the agent fails")
	}
}
