package swarm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestDelegateRejectsEmptyTasks(t *testing.T) {
	o := &Orchestrator{limits: Limits{MaxAgents: 5, MaxCloneDepth: 3}}
	got := o.Delegate(context.Background(), DelegateRequest{ParentName: "root", Tasks: nil})
	var obj map[string]string
	if err := json.Unmarshal([]byte(got), &obj); err != nil {
		t.Fatalf("expected JSON object, got %q: %v", got, err)
	}
	if obj["error"] == "" {
		t.Fatalf("expected non-empty error, got %+v", obj)
	}
}

func TestDelegateRejectsAtMaxDepth(t *testing.T) {
	o := &Orchestrator{limits: Limits{MaxAgents: 5, MaxCloneDepth: 3}}
	got := o.Delegate(context.Background(), DelegateRequest{
		ParentName:  "root",
		ParentDepth: 3,
		Tasks:       []string{"do something"},
	})
	var obj map[string]string
	if err := json.Unmarshal([]byte(got), &obj); err != nil {
		t.Fatalf("expected JSON object, got %q: %v", got, err)
	}
	if !strings.Contains(obj["error"], "Maximum clone depth (3)") {
		t.Fatalf("expected depth-denial message, got %+v", obj)
	}
}

func TestTryAcquireRespectsCapacity(t *testing.T) {
	o := &Orchestrator{limits: Limits{MaxAgents: 2, MaxCloneDepth: 3}}
	if !o.TryAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	if !o.TryAcquire() {
		t.Fatal("expected second acquire to succeed")
	}
	if o.TryAcquire() {
		t.Fatal("expected third acquire to fail at capacity 2")
	}
	o.Release()
	if !o.TryAcquire() {
		t.Fatal("expected acquire to succeed again after release")
	}
}

func TestDelegateDeniesWhenSpawnIsNil(t *testing.T) {
	o := &Orchestrator{limits: Limits{MaxAgents: 5, MaxCloneDepth: 3}}
	got := o.Delegate(context.Background(), DelegateRequest{
		ParentName: "root",
		Tasks:      []string{"task one"},
		Spawn:      nil,
	})
	var obj map[string]string
	if err := json.Unmarshal([]byte(got), &obj); err != nil {
		t.Fatalf("expected JSON object, got %q: %v", got, err)
	}
	if obj["error"] == "" {
		t.Fatalf("expected non-empty error, got %+v", obj)
	}
}

func TestBriefingMessageIncludesDepthAndTask(t *testing.T) {
	msg := briefingMessage("quiet-heron", 1, "did some searching", "find the price")
	if !strings.Contains(msg, "quiet-heron") || !strings.Contains(msg, "Depth: 1") || !strings.Contains(msg, "find the price") {
		t.Fatalf("briefing missing expected content: %q", msg)
	}
}
