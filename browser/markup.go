package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
)

// markPageScript is injected into the page to paint bounding boxes around
// interactive elements and report their geometry back to Go. It is
// consumed as a black box: Go only cares about the JSON shape it returns.
const markPageScript = `() => {
	const selectors = 'a,button,input,select,textarea,[role="button"],[role="link"],[onclick],[tabindex]';
	const nodes = Array.from(document.querySelectorAll(selectors));
	const vw = window.innerWidth, vh = window.innerHeight;
	const out = [];
	let idx = 0;
	for (const el of nodes) {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		let pos = 'in';
		if (rect.bottom < 0) pos = 'above';
		else if (rect.top > vh) pos = 'below';
		else if (rect.right < 0) pos = 'left';
		else if (rect.left > vw) pos = 'right';

		const tag = el.tagName.toLowerCase();
		const marker = 'data-kb-idx';
		el.setAttribute(marker, String(idx));

		let kind = tag;
		if (tag === 'input') kind = (el.getAttribute('type') || 'text') + '-input';
		if (el.getAttribute('role') === 'button') kind = 'button';

		const isCaptcha = /captcha|recaptcha|hcaptcha/i.test(
			(el.className || '') + ' ' + (el.id || '') + ' ' + (el.getAttribute('aria-label') || ''));

		const parent = el.parentElement;
		const siblingTotal = parent ? parent.children.length : 1;
		let siblingIndex = 0;
		if (parent) { siblingIndex = Array.prototype.indexOf.call(parent.children, el); }
		let depth = 0;
		let p = el;
		while (p.parentElement) { depth++; p = p.parentElement; }

		out.push({
			index: idx,
			kind: kind,
			text: (el.innerText || el.value || '').trim().slice(0, 200),
			ariaLabel: el.getAttribute('aria-label') || '',
			selector: '[' + marker + '="' + idx + '"]',
			boundingBox: {x: rect.x, y: rect.y, w: rect.width, h: rect.height},
			viewportPosition: pos,
			frameContext: 'main',
			isCaptcha: isCaptcha,
			hierarchy: {
				depth: depth,
				siblingIndex: siblingIndex,
				siblingTotal: siblingTotal,
				children: el.children.length,
				interactiveChildren: el.querySelectorAll(selectors).length,
				role: el.getAttribute('role') || tag,
			},
		});
		idx++;
	}
	return JSON.stringify({elements: out, viewport: {width: vw, height: vh}});
}`

// unmarkPageScript removes the data attributes markPageScript left behind,
// so a stale selector never accidentally resolves after re-annotation.
const unmarkPageScript = `() => {
	document.querySelectorAll('[data-kb-idx]').forEach(el => el.removeAttribute('data-kb-idx'));
}`

type markResult struct {
	Elements []Element `json:"elements"`
	Viewport struct {
		Width, Height float64
	} `json:"viewport"`
}

// annotate runs markPageScript, retrying on transient failure (the page
// may still be mutating its DOM right after load). Up to 10 attempts,
// 500ms apart, matching the observation builder's retry discipline.
func annotate(ctx context.Context, page *rod.Page) ([]Element, ViewportStats, error) {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		res, err := page.Context(ctx).Eval(markPageScript)
		if err == nil {
			var mr markResult
			if err := json.Unmarshal([]byte(res.Value.Str()), &mr); err == nil {
				return mr.Elements, computeStats(mr.Elements), nil
			} else {
				lastErr = err
			}
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return nil, ViewportStats{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, ViewportStats{}, fmt.Errorf("browser: markPage failed after retries: %w", lastErr)
}

func unmark(ctx context.Context, page *rod.Page) {
	_, _ = page.Context(ctx).Eval(unmarkPageScript)
}

func computeStats(elems []Element) ViewportStats {
	var s ViewportStats
	frames := map[string]bool{}
	for _, e := range elems {
		switch e.ViewportPosition {
		case PositionIn:
			s.In++
		case PositionAbove:
			s.Above++
		case PositionBelow:
			s.Below++
		case PositionLeft:
			s.Left++
		case PositionRight:
			s.Right++
		}
		frames[e.FrameContext] = true
	}
	s.FrameCount = len(frames)
	return s
}
