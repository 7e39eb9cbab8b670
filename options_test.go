package kagebunshin

import "testing"

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	if len(o.ResourceBlocking) == 0 {
		t.Fatal("expected default resource blocking list")
	}
	if o.Room != "lobby" {
		t.Fatalf("expected default room %q, got %q", "lobby", o.Room)
	}
	if o.Logger == nil {
		t.Fatal("expected default logger")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("a", "b"); got != "a" {
		t.Fatalf("expected %q, got %q", "a", got)
	}
	if got := firstNonEmpty("", "b"); got != "b" {
		t.Fatalf("expected %q, got %q", "b", got)
	}
}

func TestBuildProviderRejectsUnknownVendor(t *testing.T) {
	if _, err := buildProvider(LLMOptions{Vendor: "bogus"}); err == nil {
		t.Fatal("expected error for unknown vendor")
	}
}

func TestBuildProviderDefaultsToAnthropic(t *testing.T) {
	p, err := buildProvider(LLMOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected a provider")
	}
}
