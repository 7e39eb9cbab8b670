package browser

import "testing"

func TestPageStateChangedDetectsURLDrift(t *testing.T) {
	a := pageState{url: "https://example.com/a", hash: "x", numTabs: 1}
	b := pageState{url: "https://example.com/b", hash: "x", numTabs: 1}
	if !a.changed(b) {
		t.Fatal("expected a URL change to count as changed")
	}
}

func TestPageStateChangedDetectsHashDrift(t *testing.T) {
	a := pageState{url: "https://example.com", hash: "x", numTabs: 1}
	b := pageState{url: "https://example.com", hash: "y", numTabs: 1}
	if !a.changed(b) {
		t.Fatal("expected a content hash change to count as changed")
	}
}

func TestPageStateChangedDetectsTabCountDrift(t *testing.T) {
	a := pageState{url: "https://example.com", hash: "x", numTabs: 1}
	b := pageState{url: "https://example.com", hash: "x", numTabs: 2}
	if !a.changed(b) {
		t.Fatal("expected a tab-count change to count as changed")
	}
}

func TestPageStateUnchangedWhenIdentical(t *testing.T) {
	a := pageState{url: "https://example.com", hash: "x", numTabs: 1}
	b := pageState{url: "https://example.com", hash: "x", numTabs: 1}
	if a.changed(b) {
		t.Fatal("expected identical snapshots to report unchanged")
	}
}
