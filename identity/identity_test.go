package identity

import "testing"

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name := New()
		if seen[name] {
			t.Fatalf("duplicate name generated: %s", name)
		}
		seen[name] = true
	}
}

func TestNewFormat(t *testing.T) {
	name := New()
	if name == "" {
		t.Fatal("expected non-empty name")
	}
}

func TestRelease(t *testing.T) {
	name := New()
	Release(name)

	mu.Lock()
	_, stillUsed := used[name]
	mu.Unlock()
	if stillUsed {
		t.Fatalf("expected %s to be released", name)
	}
}
