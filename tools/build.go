package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/kagebunshin/browser"
	"github.com/hazyhaar/kagebunshin/chatbus"
	"github.com/hazyhaar/kagebunshin/llm"
	"github.com/hazyhaar/kagebunshin/swarm"
)

// Deps wires a Registry to one agent's live state. Elements and
// History are closures rather than static slices because both change
// every turn of the reason/act loop; Depth likewise reflects the
// owning agent's current clone depth.
type Deps struct {
	Session      *browser.Session
	Elements     func() []browser.Element
	Chat         *chatbus.Bus
	Room         string
	AgentName    string
	Orchestrator *swarm.Orchestrator
	Depth        func() int
	History      func() []llm.Message
	Spawn        swarm.SpawnFunc
}

// Build constructs the full tool registry for one agent: the C2
// browser action vocabulary plus delegate (C6) and post_groupchat (C3).
func Build(d Deps) *Registry {
	r := NewRegistry()

	r.Register("click", Tool{
		Schema: llm.ToolSchema{
			Description: "Click the element at the given index.",
			Parameters: objectSchema(map[string]any{
				"index": intParam("Index of the element to click."),
			}, "index"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ Index int `json:"index"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.Click(ctx, d.Session, d.Elements(), p.Index)
		},
	})

	r.Register("type_text", Tool{
		Schema: llm.ToolSchema{
			Description: "Focus the element at index, clear it, type text, and press Enter.",
			Parameters: objectSchema(map[string]any{
				"index": intParam("Index of the element to type into."),
				"text":  stringParam("Text to type."),
			}, "index", "text"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct {
				Index int    `json:"index"`
				Text  string `json:"text"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.TypeText(ctx, d.Session, d.Elements(), p.Index, p.Text)
		},
	})

	r.Register("select_option", Tool{
		Schema: llm.ToolSchema{
			Description: "Choose one or more options on a native <select> element.",
			Parameters: objectSchema(map[string]any{
				"index":  intParam("Index of the select element."),
				"values": arrayOfStringsParam("Option values to select."),
			}, "index", "values"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct {
				Index  int      `json:"index"`
				Values []string `json:"values"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.SelectOption(ctx, d.Session, d.Elements(), p.Index, p.Values)
		},
	})

	r.Register("scroll", Tool{
		Schema: llm.ToolSchema{
			Description: `Scroll the page or an element. target is "page" or an element index; direction is "up" or "down".`,
			Parameters: objectSchema(map[string]any{
				"target":    stringParam(`"page" or an element index as a string.`),
				"direction": stringParam(`"up" or "down".`),
			}, "target", "direction"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct {
				Target    string `json:"target"`
				Direction string `json:"direction"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.Scroll(ctx, d.Session, d.Elements(), p.Target, p.Direction)
		},
	})

	r.Register("hover", Tool{
		Schema: llm.ToolSchema{
			Description: "Move the mouse over the element at the given index.",
			Parameters: objectSchema(map[string]any{
				"index": intParam("Index of the element to hover."),
			}, "index"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ Index int `json:"index"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.Hover(ctx, d.Session, d.Elements(), p.Index)
		},
	})

	r.Register("press_key", Tool{
		Schema: llm.ToolSchema{
			Description: "Send a single global keyboard event, e.g. \"Enter\" or \"Escape\".",
			Parameters: objectSchema(map[string]any{
				"key": stringParam("Key name."),
			}, "key"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ Key string `json:"key"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.PressKey(ctx, d.Session, p.Key)
		},
	})

	r.Register("drag", Tool{
		Schema: llm.ToolSchema{
			Description: "Drag-and-drop from the element at start_index to the element at end_index.",
			Parameters: objectSchema(map[string]any{
				"start_index": intParam("Index of the drag source element."),
				"end_index":   intParam("Index of the drop target element."),
			}, "start_index", "end_index"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct {
				StartIndex int `json:"start_index"`
				EndIndex   int `json:"end_index"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.Drag(ctx, d.Session, d.Elements(), p.StartIndex, p.EndIndex)
		},
	})

	r.Register("wait_for", Tool{
		Schema: llm.ToolSchema{
			Description: `Wait seconds (<=20), or, if element_index>=0, wait for that element to reach state "attached" or "detached" (<=5s).`,
			Parameters: objectSchema(map[string]any{
				"seconds":       numberParam("Seconds to wait, when not waiting on an element."),
				"element_index": intParam("Element index to wait on, or -1 for a timed wait."),
				"state":         stringParam(`"attached" or "detached".`),
			}),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			p := struct {
				Seconds      float64 `json:"seconds"`
				ElementIndex int     `json:"element_index"`
				State        string  `json:"state"`
			}{ElementIndex: -1}
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.WaitFor(ctx, d.Session, d.Elements(), p.Seconds, p.ElementIndex, p.State)
		},
	})

	r.Register("go_back", Tool{
		Schema:  llm.ToolSchema{Description: "Navigate back in history.", Parameters: objectSchema(nil)},
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) { return browser.GoBack(ctx, d.Session) },
	})
	r.Register("go_forward", Tool{
		Schema:  llm.ToolSchema{Description: "Navigate forward in history.", Parameters: objectSchema(nil)},
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) { return browser.GoForward(ctx, d.Session) },
	})
	r.Register("refresh", Tool{
		Schema:  llm.ToolSchema{Description: "Reload the active tab.", Parameters: objectSchema(nil)},
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) { return browser.Refresh(ctx, d.Session) },
	})

	r.Register("goto", Tool{
		Schema: llm.ToolSchema{
			Description: "Navigate the active tab to url (https:// is assumed if no scheme is given).",
			Parameters: objectSchema(map[string]any{
				"url": stringParam("URL to navigate to."),
			}, "url"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ URL string `json:"url"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.Goto(ctx, d.Session, p.URL)
		},
	})

	r.Register("open_new_tab", Tool{
		Schema: llm.ToolSchema{
			Description: "Open a new tab, optionally navigating it to url, and make it active.",
			Parameters: objectSchema(map[string]any{
				"url": stringParam("URL to open (omit or empty for about:blank)."),
			}),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ URL string `json:"url"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.OpenNewTab(ctx, d.Session, p.URL)
		},
	})

	r.Register("close_tab", Tool{
		Schema: llm.ToolSchema{
			Description: "Close the tab at index. Refused if it is the only open tab.",
			Parameters: objectSchema(map[string]any{
				"index": intParam("Index of the tab to close."),
			}, "index"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ Index int `json:"index"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.CloseTabAt(d.Session, p.Index)
		},
	})

	r.Register("switch_tab", Tool{
		Schema: llm.ToolSchema{
			Description: "Make the tab at index the active tab.",
			Parameters: objectSchema(map[string]any{
				"index": intParam("Index of the tab to switch to."),
			}, "index"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ Index int `json:"index"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.SwitchToTab(d.Session, p.Index)
		},
	})

	r.Register("list_tabs", Tool{
		Schema: llm.ToolSchema{Description: "List open tabs with index, title, and URL; marks the active one.", Parameters: objectSchema(nil)},
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
			return browser.ListTabs(d.Session), nil
		},
	})

	r.Register("extract_page_content", Tool{
		Schema: llm.ToolSchema{Description: "Return the URL, title, and cleaned markdown of the active tab.", Parameters: objectSchema(nil)},
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
			return browser.ExtractPageContent(ctx, d.Session)
		},
	})

	r.Register("take_note", Tool{
		Schema: llm.ToolSchema{
			Description: "Record a note in the conversation; it is echoed back as the tool result and has no effect on the page.",
			Parameters: objectSchema(map[string]any{
				"note": stringParam("Note text."),
			}, "note"),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p struct{ Note string `json:"note"` }
			if err := json.Unmarshal(args, &p); err != nil {
				return "", err
			}
			return browser.TakeNote(p.Note), nil
		},
	})

	if d.Chat != nil {
		r.Register("post_groupchat", Tool{
			Schema: llm.ToolSchema{
				Description: "Post a short status update to the shared group chat so other agents can coordinate.",
				Parameters: objectSchema(map[string]any{
					"text": stringParam("Message text."),
				}, "text"),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var p struct{ Text string `json:"text"` }
				if err := json.Unmarshal(args, &p); err != nil {
					return "", err
				}
				room := d.Room
				if err := d.Chat.Post(ctx, room, d.AgentName, p.Text); err != nil {
					return fmt.Sprintf("Error posting to group chat: %s", err), nil
				}
				return fmt.Sprintf("Posted to group chat (%s)", room), nil
			},
		})
	}

	if d.Orchestrator != nil {
		r.Register("delegate", Tool{
			Schema: llm.ToolSchema{
				Description: "Spawn shadow-clone sub-agents in parallel, one per task, each owning a fresh isolated browser context.",
				Parameters: objectSchema(map[string]any{
					"tasks": arrayOfStringsParam("Subtasks to execute; one clone is spawned per task."),
				}, "tasks"),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var p struct{ Tasks []string `json:"tasks"` }
				if err := json.Unmarshal(args, &p); err != nil {
					return "", err
				}
				depth := 0
				if d.Depth != nil {
					depth = d.Depth()
				}
				var history []llm.Message
				if d.History != nil {
					history = d.History()
				}
				return d.Orchestrator.Delegate(ctx, swarm.DelegateRequest{
					ParentName:    d.AgentName,
					ParentDepth:   depth,
					ParentHistory: history,
					Tasks:         p.Tasks,
					Spawn:         d.Spawn,
				}), nil
			},
		})
	}

	return r
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object"}
	if len(props) > 0 {
		schema["properties"] = props
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func intParam(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func numberParam(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func arrayOfStringsParam(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}
