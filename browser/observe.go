package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/kagebunshin/docpipe"
)

const pdfTokenLimit = 5000

// Observe builds a fresh Observation from sess's active page. It never
// returns an error to the caller: any failure becomes a degraded
// Observation with an explanatory DegradedNote and no Elements, so the
// reason/act loop always has something to ground the next turn in.
func Observe(ctx context.Context, sess *Session) *Observation {
	page := sess.ActivePage()
	if page == nil {
		return &Observation{Degraded: true, DegradedNote: "no active tab"}
	}

	if isPDF, data := detectPDF(ctx, page); isPDF {
		return observePDF(ctx, page, data)
	}

	waitForLoad(ctx, page)

	elements, stats, err := annotate(ctx, page)
	if err != nil {
		shot, _ := page.Context(ctx).Screenshot(false, nil)
		return &Observation{
			Screenshot:   shot,
			Tabs:         sess.Tabs(),
			Degraded:     true,
			DegradedNote: fmt.Sprintf("could not annotate page: %v", err),
		}
	}
	defer unmark(ctx, page)

	md, err := extractMarkdown(ctx, page)
	if err != nil {
		md = fmt.Sprintf("(failed to extract page content: %v)", err)
	}

	shot, err := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		shot = nil
	}

	return &Observation{
		Screenshot:    shot,
		Elements:      elements,
		Markdown:      md,
		Tabs:          sess.Tabs(),
		ViewportStats: stats,
	}
}

// waitForLoad waits up to 3s for network idle, then up to 5s for load;
// expiry degrades silently rather than failing the Observation.
func waitForLoad(ctx context.Context, page *rod.Page) {
	idleCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = page.Context(idleCtx).WaitIdle(3 * time.Second)

	loadCtx, cancel2 := context.WithTimeout(ctx, 5*time.Second)
	defer cancel2()
	_ = page.Context(loadCtx).WaitLoad()
}

// detectPDF reports whether the page is currently displaying a PDF, and
// if so returns the raw bytes fetched through the page's own context
// (so cookies/auth state carry over).
func detectPDF(ctx context.Context, page *rod.Page) (bool, []byte) {
	info, err := page.Context(ctx).Info()
	if err != nil {
		return false, nil
	}
	isPDF := strings.HasSuffix(strings.ToLower(info.URL), ".pdf")
	if !isPDF {
		res, err := page.Context(ctx).Eval(`() => document.contentType`)
		if err == nil {
			isPDF = res.Value.Str() == "application/pdf"
		}
	}
	if !isPDF {
		return false, nil
	}

	data, err := fetchBytes(ctx, page, info.URL)
	if err != nil {
		return false, nil
	}
	return true, data
}

// fetchBytes retrieves rawURL's raw bytes, forwarding the browser
// context's cookies so an authenticated PDF fetches the same way the
// page itself saw it.
func fetchBytes(ctx context.Context, page *rod.Page, rawURL string) ([]byte, error) {
	cookies, err := page.Context(ctx).Cookies([]string{rawURL})
	if err != nil {
		cookies = nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, 50<<20))
}

func observePDF(ctx context.Context, page *rod.Page, data []byte) *Observation {
	title, sections, _, err := docpipe.ExtractPDFBytes(data)
	shot, _ := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return &Observation{
			Screenshot:   shot,
			IsPDF:        true,
			Degraded:     true,
			DegradedNote: fmt.Sprintf("failed to extract PDF text: %v", err),
		}
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	for _, s := range sections {
		sb.WriteString(s.Text)
		sb.WriteString("\n")
	}
	md := truncateTokens(sb.String(), pdfTokenLimit)

	return &Observation{
		Screenshot: shot,
		Markdown:   md,
		IsPDF:      true,
	}
}

func truncateTokens(text string, limit int) string {
	fields := strings.Fields(text)
	if len(fields) <= limit {
		return text
	}
	return strings.Join(fields[:limit], " ") + " … (truncated)"
}
