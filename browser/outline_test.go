package browser

import (
	"strings"
	"testing"
)

func TestBuildDOMOutlineSkipsNonContentTags(t *testing.T) {
	out := buildDOMOutline(`<html><head><style>.a{}</style></head><body><div id="main" class="x y">hi</div></body></html>`, 4, 800)
	if strings.Contains(out, "<style") {
		t.Fatal("expected style tags to be skipped")
	}
	if !strings.Contains(out, `<div id="main" class="x y">`) {
		t.Fatalf("expected div outline with id/class, got: %q", out)
	}
}

func TestBuildDOMOutlineRespectsMaxDepth(t *testing.T) {
	deep := "<div><div><div><div><div id=\"too-deep\">x</div></div></div></div></div>"
	out := buildDOMOutline(deep, 2, 800)
	if strings.Contains(out, "too-deep") {
		t.Fatal("expected nodes beyond maxDepth to be excluded")
	}
}

func TestBuildDOMOutlineTruncatesAtMaxNodes(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<div>")
	for i := 0; i < 20; i++ {
		sb.WriteString("<span>x</span>")
	}
	sb.WriteString("</div>")
	out := buildDOMOutline(sb.String(), 4, 5)
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected truncation marker, got: %q", out)
	}
}

func TestBuildDOMOutlineReturnsEmptyForEmptyInput(t *testing.T) {
	out := buildDOMOutline("", 4, 800)
	if out != "" {
		t.Fatalf("expected empty outline for empty input, got: %q", out)
	}
}
