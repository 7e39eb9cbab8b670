package browser

import (
	"context"
	"fmt"
	"strings"

	converter "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-rod/rod"
	"github.com/microcosm-cc/bluemonday"
)

var sanitizePolicy = bluemonday.UGCPolicy()

// neutralStartPages are treated as "nothing navigated to yet" by the
// navigation-status warning (SPEC_FULL §9): about:blank and Chrome's
// built-in new-tab page.
var neutralStartPages = map[string]bool{
	"about:blank":          true,
	"chrome://newtab/":     true,
	"chrome://new-tab-page/": true,
}

// IsNeutralStartPage reports whether rawURL is a start page the loop
// should warn about before trusting any observed content from it.
func IsNeutralStartPage(rawURL string) bool {
	return neutralStartPages[rawURL]
}

// extractMarkdown renders a page's visible content as cleaned markdown,
// sanitizing the HTML first. If the resulting text is unusually sparse
// relative to the HTML size, a shallow DOM outline is appended so the
// model retains some structural signal (SPEC_FULL §9).
func extractMarkdown(ctx context.Context, page *rod.Page) (string, error) {
	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: read content: %w", err)
	}
	clean := sanitizePolicy.Sanitize(html)
	md, err := converter.ConvertString(clean)
	if err != nil {
		md = ""
	}
	md = strings.TrimSpace(md)

	if isSparse(md, html) {
		outline := buildDOMOutline(html, 4, 800)
		if outline != "" {
			md += "\n\n[structural outline]\n" + outline
		}
	}
	return md, nil
}

// isSparse mirrors domwatch's fetcher.IsSufficient ratio heuristic,
// inverted: text is too thin relative to markup to trust on its own.
func isSparse(text, html string) bool {
	if len(html) == 0 {
		return false
	}
	if len(text) < 200 {
		return true
	}
	ratio := float64(len(text)) / float64(len(html))
	return ratio < 0.10
}
