package browser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-rod/rod"
)

// pageState is the pre/post snapshot the two-stage action discipline
// compares to decide whether an action actually changed anything.
// Never used for security — only change detection.
type pageState struct {
	url      string
	hash     string
	numTabs  int
}

func capturePageState(ctx context.Context, page *rod.Page, tabCount int) pageState {
	info, _ := page.Context(ctx).Info()
	url := ""
	if info != nil {
		url = info.URL
	}
	html, err := page.Context(ctx).HTML()
	if err != nil {
		html = ""
	}
	sum := sha256.Sum256([]byte(html))
	return pageState{
		url:     url,
		hash:    hex.EncodeToString(sum[:]),
		numTabs: tabCount,
	}
}

func (a pageState) changed(b pageState) bool {
	return a.url != b.url || a.hash != b.hash || a.numTabs != b.numTabs
}
