package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestTakeNoteEchoesInput(t *testing.T) {
	r := Build(Deps{})
	out, err := r.Dispatch(context.Background(), "take_note", json.RawMessage(`{"note":"found the price"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "noted: found the price" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestDispatchUnknownToolErrors(t *testing.T) {
	r := Build(Deps{})
	if _, err := r.Dispatch(context.Background(), "does_not_exist", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestSchemasIncludeRegisteredNames(t *testing.T) {
	r := Build(Deps{})
	names := map[string]bool{}
	for _, s := range r.Schemas() {
		names[s.Name] = true
	}
	for _, want := range []string{
		"click", "type_text", "scroll", "goto", "take_note",
		"open_new_tab", "close_tab", "switch_tab", "list_tabs",
	} {
		if !names[want] {
			t.Fatalf("expected tool %q to be registered, got %+v", want, names)
		}
	}
}
