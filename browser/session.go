package browser

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Session is one agent's exclusively-owned browser context: its own
// incognito BrowserContext, its own page set, its own active tab. Clones
// never share a Session with their parent or siblings (spec invariant
// P9 / the "context_handle" field of AgentState).
type Session struct {
	browser     *rod.Browser // incognito context handle
	pages       []*rod.Page
	activeIndex int
	blockTypes  []string
	actionCount int64 // AgentState.action_count; see recordAction for what counts
}

// ActionCount returns the number of actions counted so far
// (AgentState.action_count).
func (s *Session) ActionCount() int64 { return atomic.LoadInt64(&s.actionCount) }

// recordAction increments the action counter. The two-stage actions
// (click, type_text, select_option) call it only when a page-state change
// was observed, never for the "had no effect" outcome; the other actions
// call it when they complete without error, extract_page_content
// included. list_tabs and take_note never call it.
func (s *Session) recordAction() { atomic.AddInt64(&s.actionCount, 1) }

// NewSession wraps an incognito *rod.Browser (obtained via Manager.Incognito)
// and opens its first tab at startURL ("" opens about:blank).
func NewSession(ctx context.Context, incognito *rod.Browser, startURL string, blockTypes []string) (*Session, error) {
	s := &Session{browser: incognito, blockTypes: blockTypes}
	if startURL == "" {
		startURL = "about:blank"
	}
	if _, err := s.OpenTab(ctx, startURL); err != nil {
		return nil, err
	}
	return s, nil
}

// ActivePage returns the page of the currently active tab.
func (s *Session) ActivePage() *rod.Page {
	if s.activeIndex < 0 || s.activeIndex >= len(s.pages) {
		return nil
	}
	return s.pages[s.activeIndex]
}

// TabCount returns the number of open tabs.
func (s *Session) TabCount() int { return len(s.pages) }

// Tabs renders the current tab list with the active flag set.
func (s *Session) Tabs() []Tab {
	out := make([]Tab, len(s.pages))
	for i, p := range s.pages {
		info, _ := p.Info()
		title, url := "", ""
		if info != nil {
			title, url = info.Title, info.URL
		}
		out[i] = Tab{Index: i, Title: title, URL: url, IsActive: i == s.activeIndex}
	}
	return out
}

// OpenTab creates a new stealth-initialized tab, navigates it, applies
// resource blocking, and makes it the active tab.
func (s *Session) OpenTab(ctx context.Context, rawURL string) (*rod.Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	if len(s.blockTypes) > 0 {
		_ = applyResourceBlocking(page, s.blockTypes)
	}
	if rawURL != "" && rawURL != "about:blank" {
		navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := page.Context(navCtx).Navigate(rawURL); err != nil {
			page.Close()
			return nil, fmt.Errorf("browser: navigate %s: %w", rawURL, err)
		}
		_ = page.Context(navCtx).WaitLoad()
	}
	s.pages = append(s.pages, page)
	s.activeIndex = len(s.pages) - 1
	return page, nil
}

// SwitchTab makes tab i the active tab.
func (s *Session) SwitchTab(i int) error {
	if i < 0 || i >= len(s.pages) {
		return fmt.Errorf("browser: tab index %d out of range", i)
	}
	s.activeIndex = i
	return nil
}

// CloseTab closes tab i. Refuses to close the last remaining tab (matches
// the original implementation's behaviour, carried forward per SPEC_FULL
// §9). If the active tab is closed, the new active tab is index 0 of the
// remaining set.
func (s *Session) CloseTab(i int) error {
	if len(s.pages) <= 1 {
		return fmt.Errorf("browser: cannot close the last remaining tab")
	}
	if i < 0 || i >= len(s.pages) {
		return fmt.Errorf("browser: tab index %d out of range", i)
	}
	s.pages[i].Close()
	s.pages = append(s.pages[:i], s.pages[i+1:]...)
	if s.activeIndex == i {
		s.activeIndex = 0
	} else if s.activeIndex > i {
		s.activeIndex--
	}
	return nil
}

// detectNewTabs compares the page count before an action against now; if
// it grew, the newest page becomes active. This is the only mechanism by
// which a click-opened tab becomes visible to the loop.
func (s *Session) detectNewTabs(ctx context.Context, before int) {
	pages, err := s.browser.Pages()
	if err != nil {
		return
	}
	if len(pages) > before {
		// Reconcile our tracked page list with the browser's actual set:
		// append anything we don't already know about.
		known := make(map[*rod.Page]bool, len(s.pages))
		for _, p := range s.pages {
			known[p] = true
		}
		for _, p := range pages {
			if !known[p] {
				s.pages = append(s.pages, p)
			}
		}
		s.activeIndex = len(s.pages) - 1
	}
}

// Close closes every tab and the underlying incognito context.
func (s *Session) Close() error {
	for _, p := range s.pages {
		p.Close()
	}
	return s.browser.Close()
}
