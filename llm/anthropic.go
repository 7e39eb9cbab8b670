package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hazyhaar/kagebunshin/connectivity"
)

const anthropicDefaultMaxTokens int64 = 4096

// AnthropicConfig configures the Anthropic provider adapter.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// AnthropicProvider adapts the Anthropic Messages API to Provider,
// wrapping every call in retry + circuit-breaker middleware so a flaky
// vendor endpoint degrades gracefully instead of wedging an agent turn.
type AnthropicProvider struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	chain     connectivity.HandlerMiddleware
}

// NewAnthropicProvider builds an AnthropicProvider from cfg.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	p := &AnthropicProvider{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}

	breaker := connectivity.NewCircuitBreaker(
		connectivity.WithBreakerThreshold(5),
		connectivity.WithBreakerResetTimeout(30*time.Second),
	)
	p.chain = connectivity.Chain(
		connectivity.Logging(logger),
		connectivity.WithCircuitBreaker(breaker, "anthropic"),
		connectivity.WithRetry(2, 500*time.Millisecond, logger),
		connectivity.WithTimeout(60*time.Second),
	)
	return p
}

// call runs fn through the retry/breaker/timeout chain. The chain only
// operates on []byte payloads, so fn's real input/output stay in the
// closure and the Handler plumbing carries an empty sentinel payload.
func (p *AnthropicProvider) call(ctx context.Context, fn func(context.Context) (anthropic.Message, error)) (anthropic.Message, error) {
	var result anthropic.Message
	handler := p.chain(func(ctx context.Context, _ []byte) ([]byte, error) {
		resp, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		result = resp
		return []byte{}, nil
	})
	_, err := handler(ctx, nil)
	return result, err
}

func (p *AnthropicProvider) Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string) (Message, error) {
	params, err := p.buildParams(msgs, tools, model)
	if err != nil {
		return Message{}, err
	}
	resp, err := p.call(ctx, func(ctx context.Context) (anthropic.Message, error) {
		r, err := p.sdk.Messages.New(ctx, params)
		if err != nil {
			return anthropic.Message{}, err
		}
		return *r, nil
	})
	if err != nil {
		return Message{}, err
	}
	return messageFromAnthropicResponse(&resp), nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, msgs []Message, tools []ToolSchema, model string, h StreamHandler) error {
	params, err := p.buildParams(msgs, tools, model)
	if err != nil {
		return err
	}

	stream := p.sdk.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var acc anthropic.Message
	toolBuffers := map[int64]*anthropicToolBuffer{}

	for stream.Next() {
		event := stream.Current()
		_ = acc.Accumulate(event)

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				id := strings.TrimSpace(block.ID)
				if id == "" {
					id = fmt.Sprintf("call-%d", len(toolBuffers)+1)
				}
				tb := &anthropicToolBuffer{name: block.Name, id: id}
				tb.appendInitial(block.Input)
				toolBuffers[ev.Index] = tb
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if h != nil && delta.Text != "" {
					h.OnDelta(delta.Text)
				}
			case anthropic.InputJSONDelta:
				if tb := toolBuffers[ev.Index]; tb != nil {
					tb.appendPartial(delta.PartialJSON)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	msg := messageFromAnthropicResponse(&acc)
	if len(msg.ToolCalls) > 0 {
		for _, tc := range msg.ToolCalls {
			if h != nil {
				h.OnToolCall(tc)
			}
		}
	} else {
		for _, tb := range toolBuffers {
			if h != nil {
				h.OnToolCall(tb.toToolCall())
			}
		}
	}
	return nil
}

func (p *AnthropicProvider) buildParams(msgs []Message, tools []ToolSchema, model string) (anthropic.MessageNewParams, error) {
	sys, converted, err := adaptAnthropicMessages(msgs)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	toolDefs, err := adaptAnthropicTools(tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = p.model
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(m),
		Messages:  converted,
		System:    sys,
		Tools:     toolDefs,
		MaxTokens: p.maxTokens,
	}, nil
}

func adaptAnthropicTools(tools []ToolSchema) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("anthropic provider: tool name required")
		}
		schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
		extras := map[string]any{}
		for k, v := range t.Parameters {
			extras[k] = v
		}
		if props, ok := extras["properties"]; ok {
			schema.Properties = props
			delete(extras, "properties")
		}
		if req, ok := extras["required"].([]string); ok {
			schema.Required = req
			delete(extras, "required")
		}
		delete(extras, "type")
		if len(extras) > 0 {
			schema.ExtraFields = extras
		}
		param := anthropic.ToolParam{Name: name, InputSchema: schema}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			param.Description = anthropic.String(desc)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func adaptAnthropicMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))
	toolResultCount := 0

	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case "user":
			blocks := userContentBlocks(m)
			if len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for i, tc := range m.ToolCalls {
				id := strings.TrimSpace(tc.ID)
				if id == "" {
					id = fmt.Sprintf("call-%d", i+1)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(id, decodeAnthropicArgs(tc.Args), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case "tool":
			id := strings.TrimSpace(m.ToolID)
			if id == "" {
				toolResultCount++
				id = fmt.Sprintf("tool-result-%d", toolResultCount)
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(id, m.Content, false)))
		default:
			return nil, nil, fmt.Errorf("unsupported role for anthropic provider: %s", m.Role)
		}
	}
	return system, out, nil
}

func userContentBlocks(m Message) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	if strings.TrimSpace(m.Content) != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}
	for _, img := range m.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		b64 := base64.StdEncoding.EncodeToString(img.Data)
		blocks = append(blocks, anthropic.NewImageBlockBase64(mime, b64))
	}
	return blocks
}

func decodeAnthropicArgs(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	return map[string]any{}
}

func messageFromAnthropicResponse(resp *anthropic.Message) Message {
	if resp == nil {
		return Message{}
	}
	var sb strings.Builder
	var calls []ToolCall
	callIdx := 0

	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			callIdx++
			id := strings.TrimSpace(v.ID)
			if id == "" {
				id = fmt.Sprintf("call-%d", callIdx)
			}
			calls = append(calls, ToolCall{ID: id, Name: v.Name, Args: v.Input})
		}
	}

	return Message{Role: "assistant", Content: sb.String(), ToolCalls: calls}
}

type anthropicToolBuffer struct {
	name      string
	id        string
	buf       strings.Builder
	hasDeltas bool
}

func (tb *anthropicToolBuffer) appendInitial(raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	tb.buf.WriteString(string(raw))
}

func (tb *anthropicToolBuffer) appendPartial(partial string) {
	if partial == "" {
		return
	}
	if !tb.hasDeltas {
		tb.buf.Reset()
		tb.hasDeltas = true
	}
	tb.buf.WriteString(partial)
}

func (tb *anthropicToolBuffer) toToolCall() ToolCall {
	args := strings.TrimSpace(tb.buf.String())
	if args == "" || !json.Valid([]byte(args)) {
		args = "{}"
	}
	return ToolCall{ID: tb.id, Name: tb.name, Args: json.RawMessage(args)}
}
