package loop

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/kagebunshin/browser"
)

const systemPrompt = `You are an expert web browsing AI assistant that solves user queries through careful observation, reasoning, and strategic action.

## Context
- You drive a real Chrome browser with internet access, already open.
- Every turn you receive a screenshot annotated with bounding boxes and indices, plus a text listing of each annotated element.
- Before deciding something isn't available, scroll to make sure you have seen the whole page.
- Never answer from memory. Ground every claim in content you actually observed; navigate first, conclude second.
- Take note of anything you'll need later — you can see your own past turns, but a clone cannot unless you tell it.
- Don't let pop-ups or banners stop you; close them and continue.
- You may go back to a previous page or action if you believe you took a wrong turn.

## Decision-making
1. Start with research: search or navigate to a relevant source before acting.
2. Work through multi-step tasks methodically, one action at a time.
3. After every action, check whether it actually moved you toward the goal.
4. Adapt when you hit errors, CAPTCHAs, or unexpected page states — never try to solve a CAPTCHA.
5. If the screenshot and the text annotations disagree, trust the screenshot.
6. Use multiple tabs for research, authentication flows, or parallel investigation.
7. Stop only once you have enough to fully answer the user's query.

## Collaboration
- You are one of possibly several agents working the same problem. You will see recent group-chat history below.
- Use post_groupchat to report status, ask for help, or share findings — treat it like a team channel.
- Use delegate to fan independent subtasks out to clone agents; give each clone a concise, self-contained instruction and prefer structured (JSON-ish) results for easy merging.

## Finishing
- To finish, simply respond with no tool calls — that text is your final answer.
- Until then, every turn must make exactly one tool call and explain, briefly, what you observed and why you chose that action.`

const navigationWarning = `Navigation status: the active tab is still at a neutral start page (no site has been visited yet). Do not make any factual claim about a destination site until you have navigated to it and observed its content.`

func buildPageContextText(obs *browser.Observation) string {
	var parts []string

	if len(obs.Tabs) > 1 {
		parts = append(parts, formatTabs(obs.Tabs))
	}

	if obs.Degraded {
		parts = append(parts, fmt.Sprintf("Observation degraded: %s", obs.DegradedNote))
	}

	if len(obs.Elements) > 0 {
		parts = append(parts, "Current state of the page:")
		parts = append(parts, formatElements(obs.Elements))
	}

	if obs.Markdown != "" {
		parts = append(parts, "Page content (markdown):\n"+obs.Markdown)
	}

	return strings.Join(parts, "\n\n")
}

func formatTabs(tabs []browser.Tab) string {
	var sb strings.Builder
	sb.WriteString("Open tabs:\n")
	for _, t := range tabs {
		marker := "  "
		if t.IsActive {
			marker = "->"
		}
		fmt.Fprintf(&sb, "%s [%d] %s — %s\n", marker, t.Index, t.Title, t.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatElements renders an Observation's indexed elements grouped by
// viewport position, so the model sees what's on-screen before what
// requires scrolling.
func formatElements(elements []browser.Element) string {
	groups := map[browser.ViewportPosition][]browser.Element{}
	var order []browser.ViewportPosition
	for _, el := range elements {
		if _, ok := groups[el.ViewportPosition]; !ok {
			order = append(order, el.ViewportPosition)
		}
		groups[el.ViewportPosition] = append(groups[el.ViewportPosition], el)
	}

	var sb strings.Builder
	for _, pos := range order {
		fmt.Fprintf(&sb, "[%s viewport]\n", pos)
		for _, el := range groups[pos] {
			label := el.AriaLabel
			if label == "" {
				label = el.Text
			}
			captchaNote := ""
			if el.IsCaptcha {
				captchaNote = " (flagged: CAPTCHA)"
			}
			frame := ""
			if el.FrameContext != "" {
				frame = fmt.Sprintf(" [frame:%s]", el.FrameContext)
			}
			fmt.Fprintf(&sb, "  %d: <%s> %q%s%s\n", el.Index, el.Kind, label, frame, captchaNote)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
