package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

const nativeTimeout = 5 * time.Second

// resolveElement maps index to its Element, returning an error (never a
// panic) when the index is out of range or the element is flagged as a
// CAPTCHA.
func resolveElement(elements []Element, index int) (Element, error) {
	if index < 0 || index >= len(elements) {
		return Element{}, fmt.Errorf("element index %d out of range", index)
	}
	el := elements[index]
	if el.IsCaptcha {
		return Element{}, fmt.Errorf("element %d is flagged as a CAPTCHA; refusing to interact", index)
	}
	return el, nil
}

// twoStage runs native then, on no observed change, human-like, per the
// click/type_text/select_option discipline: pre/post (url,hash,tabcount)
// comparison decides success, not whether the driver call itself erred.
func twoStage(ctx context.Context, sess *Session, native, human func(ctx context.Context, page *rod.Page) error, verb string) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	before := capturePageState(ctx, page, sess.TabCount())
	beforeTabs := sess.TabCount()

	nctx, cancel := context.WithTimeout(ctx, nativeTimeout)
	nativeErr := native(nctx, page)
	cancel()
	time.Sleep(1 * time.Second)

	after := capturePageState(ctx, page, sess.TabCount())
	if before.changed(after) {
		sess.detectNewTabs(ctx, beforeTabs)
		sess.recordAction()
		return fmt.Sprintf("%s succeeded (native)", verb), nil
	}

	if human != nil {
		hctx, hcancel := context.WithTimeout(ctx, nativeTimeout)
		humanErr := human(hctx, page)
		hcancel()
		time.Sleep(1 * time.Second)

		afterHuman := capturePageState(ctx, page, sess.TabCount())
		if before.changed(afterHuman) {
			sess.detectNewTabs(ctx, beforeTabs)
			sess.recordAction()
			return fmt.Sprintf("%s succeeded (human-like)", verb), nil
		}
		if humanErr != nil && nativeErr != nil {
			return "", fmt.Errorf("%s: %w", verb, humanErr)
		}
	}

	return fmt.Sprintf("Error: %sing element had no effect on the page.", verb), nil
}

// Click performs the two-stage click discipline on elements[index].
func Click(ctx context.Context, sess *Session, elements []Element, index int) (string, error) {
	el, err := resolveElement(elements, index)
	if err != nil {
		return "", err
	}
	native := func(ctx context.Context, page *rod.Page) error {
		target, err := page.Context(ctx).Element(el.Selector)
		if err != nil {
			return err
		}
		return target.Click(proto.InputMouseButtonLeft, 1)
	}
	human := func(ctx context.Context, page *rod.Page) error {
		target, err := page.Context(ctx).Element(el.Selector)
		if err != nil {
			return err
		}
		return humanClick(ctx, page, target)
	}
	return twoStage(ctx, sess, native, human, "click")
}

// TypeText performs the two-stage type discipline: focus, select-all,
// erase, type, press Enter.
func TypeText(ctx context.Context, sess *Session, elements []Element, index int, text string) (string, error) {
	el, err := resolveElement(elements, index)
	if err != nil {
		return "", err
	}
	native := func(ctx context.Context, page *rod.Page) error {
		target, err := page.Context(ctx).Element(el.Selector)
		if err != nil {
			return err
		}
		if err := target.Focus(); err != nil {
			return err
		}
		if err := target.SelectAllText(); err != nil {
			return err
		}
		if err := target.Input(""); err != nil {
			return err
		}
		if err := target.Input(text); err != nil {
			return err
		}
		return target.Type(input.Enter)
	}
	human := func(ctx context.Context, page *rod.Page) error {
		target, err := page.Context(ctx).Element(el.Selector)
		if err != nil {
			return err
		}
		return humanType(ctx, page, target, text)
	}
	return twoStage(ctx, sess, native, human, "type_text")
}

// SelectOption chooses options on a native <select> element.
func SelectOption(ctx context.Context, sess *Session, elements []Element, index int, values []string) (string, error) {
	el, err := resolveElement(elements, index)
	if err != nil {
		return "", err
	}
	native := func(ctx context.Context, page *rod.Page) error {
		target, err := page.Context(ctx).Element(el.Selector)
		if err != nil {
			return err
		}
		return target.Select(values, true, rod.SelectorTypeText)
	}
	return twoStage(ctx, sess, native, nil, "select_option")
}

// Scroll moves the viewport (target "page") or an element's position by
// the original implementation's exact magnitudes: ~500px for the page,
// ~200px for an element, per SPEC_FULL §9. Human-like only.
func Scroll(ctx context.Context, sess *Session, elements []Element, target string, direction string) (string, error) {
	if direction != "up" && direction != "down" {
		return "", fmt.Errorf("scroll direction must be 'up' or 'down', got %q", direction)
	}
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	sign := 1.0
	if direction == "up" {
		sign = -1.0
	}

	if target == "page" {
		_, err := page.Context(ctx).Eval(fmt.Sprintf(`() => window.scrollBy(0, %f)`, sign*500))
		if err != nil {
			return "", err
		}
		sess.recordAction()
		return "scrolled page", nil
	}

	var index int
	if _, err := fmt.Sscanf(target, "%d", &index); err != nil {
		return "", fmt.Errorf("scroll target must be \"page\" or an element index")
	}
	el, err := resolveElement(elements, index)
	if err != nil {
		return "", err
	}
	t, err := page.Context(ctx).Element(el.Selector)
	if err != nil {
		return "", err
	}
	if err := t.ScrollIntoView(); err != nil {
		return "", err
	}
	_, err = page.Context(ctx).Eval(fmt.Sprintf(`() => window.scrollBy(0, %f)`, sign*200))
	if err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("scrolled element %d", index), nil
}

// Hover moves the mouse over an element natively.
func Hover(ctx context.Context, sess *Session, elements []Element, index int) (string, error) {
	el, err := resolveElement(elements, index)
	if err != nil {
		return "", err
	}
	page := sess.ActivePage()
	nctx, cancel := context.WithTimeout(ctx, nativeTimeout)
	defer cancel()
	target, err := page.Context(nctx).Element(el.Selector)
	if err != nil {
		return "", err
	}
	if err := target.Hover(); err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("hovered element %d", index), nil
}

// PressKey sends a single global keyboard event.
func PressKey(ctx context.Context, sess *Session, key string) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	k, ok := keyByName(key)
	if !ok {
		return "", fmt.Errorf("unknown key %q", key)
	}
	nctx, cancel := context.WithTimeout(ctx, nativeTimeout)
	defer cancel()
	if err := page.Context(nctx).Keyboard.Type(k); err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("pressed %s", key), nil
}

// Drag performs a native drag-and-drop between two elements.
func Drag(ctx context.Context, sess *Session, elements []Element, startIndex, endIndex int) (string, error) {
	start, err := resolveElement(elements, startIndex)
	if err != nil {
		return "", err
	}
	end, err := resolveElement(elements, endIndex)
	if err != nil {
		return "", err
	}
	page := sess.ActivePage()
	nctx, cancel := context.WithTimeout(ctx, nativeTimeout)
	defer cancel()

	startEl, err := page.Context(nctx).Element(start.Selector)
	if err != nil {
		return "", err
	}
	endEl, err := page.Context(nctx).Element(end.Selector)
	if err != nil {
		return "", err
	}
	startBox, err := startEl.Shape()
	if err != nil {
		return "", err
	}
	endBox, err := endEl.Shape()
	if err != nil {
		return "", err
	}
	sx, sy := startBox.Box().X+startBox.Box().Width/2, startBox.Box().Y+startBox.Box().Height/2
	ex, ey := endBox.Box().X+endBox.Box().Width/2, endBox.Box().Y+endBox.Box().Height/2

	mouse := page.Context(nctx).Mouse
	if err := mouse.MoveTo(proto.NewPoint(sx, sy)); err != nil {
		return "", err
	}
	if err := mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return "", err
	}
	if err := mouse.MoveTo(proto.NewPoint(ex, ey)); err != nil {
		return "", err
	}
	if err := mouse.Up(proto.InputMouseButtonLeft, 1); err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("dragged element %d to %d", startIndex, endIndex), nil
}

// WaitFor waits seconds (≤20) or, if elementIndex≥0, for the element to
// reach state "attached"/"detached" (≤5s).
func WaitFor(ctx context.Context, sess *Session, elements []Element, seconds float64, elementIndex int, state string) (string, error) {
	if elementIndex < 0 {
		if seconds < 0 || seconds > 20 {
			return "", fmt.Errorf("wait_for seconds must be between 0 and 20, got %v", seconds)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(seconds * float64(time.Second))):
		}
		sess.recordAction()
		return fmt.Sprintf("waited %.1fs", seconds), nil
	}

	if state != "attached" && state != "detached" {
		return "", fmt.Errorf("wait_for element state must be 'attached' or 'detached', got %q", state)
	}
	el, err := resolveElement(elements, elementIndex)
	if err != nil {
		return "", err
	}
	page := sess.ActivePage()
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch state {
	case "attached":
		_, err = page.Context(wctx).Element(el.Selector)
	case "detached":
		for err == nil {
			var has bool
			has, _, err = page.Context(wctx).Has(el.Selector)
			if err != nil || !has {
				break
			}
			select {
			case <-wctx.Done():
				err = wctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("wait_for element %d %s: %w", elementIndex, state, err)
	}
	sess.recordAction()
	return fmt.Sprintf("element %d reached state %q", elementIndex, state), nil
}

// GoBack, GoForward, Refresh, Goto implement simple navigation.

func GoBack(ctx context.Context, sess *Session) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	if err := page.Context(ctx).NavigateBack(); err != nil {
		return "", err
	}
	sess.recordAction()
	return "navigated back", nil
}

func GoForward(ctx context.Context, sess *Session) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	if err := page.Context(ctx).NavigateForward(); err != nil {
		return "", err
	}
	sess.recordAction()
	return "navigated forward", nil
}

func Refresh(ctx context.Context, sess *Session) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	if err := page.Context(ctx).Reload(); err != nil {
		return "", err
	}
	sess.recordAction()
	return "refreshed", nil
}

// Goto navigates the active tab to rawURL, prefixing https:// if the
// scheme is missing, matching the original implementation.
func Goto(ctx context.Context, sess *Session, rawURL string) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	nctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(nctx).Navigate(rawURL); err != nil {
		return "", err
	}
	_ = page.Context(nctx).WaitLoad()
	sess.recordAction()
	return fmt.Sprintf("navigated to %s", rawURL), nil
}

// ExtractPageContent returns "URL: ...\nTitle: ...\n\n<markdown>" for the
// active tab, a read-only action distinct from the Observation builder.
func ExtractPageContent(ctx context.Context, sess *Session) (string, error) {
	page := sess.ActivePage()
	if page == nil {
		return "", fmt.Errorf("no active tab")
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	md, err := extractMarkdown(ctx, page)
	if err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("URL: %s\nTitle: %s\n\n%s", info.URL, info.Title, md), nil
}

// TakeNote is a read-only no-op that simply echoes the note back as the
// tool result. Nothing writes the note to the audit trail.
func TakeNote(note string) string {
	return fmt.Sprintf("noted: %s", note)
}

// OpenNewTab opens rawURL (or about:blank) as a new tab and makes it active.
func OpenNewTab(ctx context.Context, sess *Session, rawURL string) (string, error) {
	if _, err := sess.OpenTab(ctx, rawURL); err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("opened new tab %d", sess.TabCount()-1), nil
}

// CloseTabAt closes tab i. Refuses to close the last remaining tab and
// returns an error for an out-of-range index (§8 boundary behaviors).
func CloseTabAt(sess *Session, i int) (string, error) {
	if err := sess.CloseTab(i); err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("closed tab %d", i), nil
}

// SwitchToTab makes tab i the active tab. Returns an error for a
// negative or out-of-range index (§8 boundary behaviors).
func SwitchToTab(sess *Session, i int) (string, error) {
	if err := sess.SwitchTab(i); err != nil {
		return "", err
	}
	sess.recordAction()
	return fmt.Sprintf("switched to tab %d", i), nil
}

// ListTabs renders the current tab list for the LLM. Read-only: does
// not increment action_count.
func ListTabs(sess *Session) string {
	var b strings.Builder
	for _, t := range sess.Tabs() {
		marker := " "
		if t.IsActive {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s[%d] %s %s\n", marker, t.Index, t.Title, t.URL)
	}
	if b.Len() == 0 {
		return "(no open tabs)"
	}
	return b.String()
}

func keyByName(name string) (input.Key, bool) {
	switch strings.ToLower(name) {
	case "enter", "return":
		return input.Enter, true
	case "tab":
		return input.Tab, true
	case "escape", "esc":
		return input.Escape, true
	case "backspace":
		return input.Backspace, true
	case "space":
		return input.Space, true
	case "arrowup", "up":
		return input.ArrowUp, true
	case "arrowdown", "down":
		return input.ArrowDown, true
	case "arrowleft", "left":
		return input.ArrowLeft, true
	case "arrowright", "right":
		return input.ArrowRight, true
	}
	if len(name) == 1 {
		if k, ok := input.Keys[name]; ok {
			return k, true
		}
	}
	return input.Key{}, false
}
