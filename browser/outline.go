package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var outlineSkipTags = map[string]bool{
	"script": true, "style": true, "meta": true, "link": true,
	"noscript": true, "svg": true, "path": true,
}

// buildDOMOutline renders a shallow tag/id/class skeleton of rawHTML,
// bounded to maxDepth nesting and maxNodes total lines. Exact constants
// (depth 4, 800 nodes) match the original implementation's
// _build_dom_outline, carried forward per SPEC_FULL §9. Empty or
// whitespace-only input yields an empty outline.
func buildDOMOutline(rawHTML string, maxDepth, maxNodes int) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	var b strings.Builder
	count := 0
	truncated := false

	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if truncated || count >= maxNodes {
			truncated = true
			return
		}
		if n.Type == html.ElementNode {
			if outlineSkipTags[n.Data] {
				return
			}
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(renderTag(n))
			b.WriteString("\n")
			count++
		}
		if depth >= maxDepth {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
			if truncated {
				return
			}
		}
	}
	walk(doc, 0)

	out := b.String()
	if truncated {
		out += "… (truncated) …\n"
	}
	return out
}

func renderTag(n *html.Node) string {
	var id, class string
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			id = a.Val
		case "class":
			class = a.Val
		}
	}
	s := "<" + n.Data
	if id != "" {
		s += fmt.Sprintf(` id="%s"`, id)
	}
	if class != "" {
		s += fmt.Sprintf(` class="%s"`, class)
	}
	return s + ">"
}
