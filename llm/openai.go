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

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/hazyhaar/kagebunshin/connectivity"
)

// OpenAIConfig configures the OpenAI provider adapter. BaseURL lets
// this double as a client for any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OpenAIProvider adapts OpenAI Chat Completions to Provider.
type OpenAIProvider struct {
	sdk   sdk.Client
	model string
	chain connectivity.HandlerMiddleware
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	p := &OpenAIProvider{
		sdk:   sdk.NewClient(opts...),
		model: cfg.Model,
	}

	breaker := connectivity.NewCircuitBreaker(
		connectivity.WithBreakerThreshold(5),
		connectivity.WithBreakerResetTimeout(30*time.Second),
	)
	p.chain = connectivity.Chain(
		connectivity.Logging(logger),
		connectivity.WithCircuitBreaker(breaker, "openai"),
		connectivity.WithRetry(2, 500*time.Millisecond, logger),
		connectivity.WithTimeout(60*time.Second),
	)
	return p
}

func (p *OpenAIProvider) call(ctx context.Context, fn func(context.Context) (sdk.ChatCompletion, error)) (sdk.ChatCompletion, error) {
	var result sdk.ChatCompletion
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

func (p *OpenAIProvider) Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string) (Message, error) {
	params := p.buildParams(msgs, tools, model)
	comp, err := p.call(ctx, func(ctx context.Context) (sdk.ChatCompletion, error) {
		r, err := p.sdk.Chat.Completions.New(ctx, params)
		if err != nil {
			return sdk.ChatCompletion{}, err
		}
		return *r, nil
	})
	if err != nil {
		return Message{}, err
	}
	return messageFromOpenAIResponse(&comp), nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, msgs []Message, tools []ToolSchema, model string, h StreamHandler) error {
	params := p.buildParams(msgs, tools, model)
	stream := p.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	toolCalls := map[int]*ToolCall{}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" && h != nil {
			h.OnDelta(delta.Content)
		}
		for _, tc := range delta.ToolCalls {
			idx := int(tc.Index)
			if toolCalls[idx] == nil {
				toolCalls[idx] = &ToolCall{ID: tc.ID}
			}
			if tc.Function.Name != "" {
				toolCalls[idx].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[idx].Args = json.RawMessage(string(toolCalls[idx].Args) + tc.Function.Arguments)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	for _, tc := range toolCalls {
		if tc != nil && tc.Name != "" && h != nil {
			h.OnToolCall(*tc)
		}
	}
	return nil
}

func (p *OpenAIProvider) buildParams(msgs []Message, tools []ToolSchema, model string) sdk.ChatCompletionNewParams {
	m := strings.TrimSpace(model)
	if m == "" {
		m = p.model
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(m),
		Messages: adaptOpenAIMessages(msgs),
	}
	if len(tools) > 0 {
		params.Tools = adaptOpenAITools(tools)
	}
	return params
}

func adaptOpenAITools(tools []ToolSchema) []sdk.ChatCompletionToolUnionParam {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			Parameters:  sdk.FunctionParameters(t.Parameters),
		}))
	}
	return out
}

func adaptOpenAIMessages(msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "user":
			out = append(out, userMessageParam(m))
		case "assistant":
			if len(m.ToolCalls) > 0 {
				asst := sdk.ChatCompletionAssistantMessageParam{}
				if m.Content != "" {
					asst.Content.OfString = sdk.String(m.Content)
				}
				for _, tc := range m.ToolCalls {
					asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
							ID: tc.ID,
							Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Name,
								Arguments: string(tc.Args),
							},
						},
					})
				}
				out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
			} else {
				out = append(out, sdk.AssistantMessage(m.Content))
			}
		case "tool":
			out = append(out, sdk.ToolMessage(m.Content, m.ToolID))
		}
	}
	return out
}

func userMessageParam(m Message) sdk.ChatCompletionMessageParamUnion {
	if len(m.Images) == 0 {
		return sdk.UserMessage(m.Content)
	}
	var parts []sdk.ChatCompletionContentPartUnionParam
	if m.Content != "" {
		parts = append(parts, sdk.TextContentPart(m.Content))
	}
	for _, img := range m.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data))
		parts = append(parts, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{URL: dataURL}))
	}
	return sdk.UserMessage(parts)
}

func messageFromOpenAIResponse(comp *sdk.ChatCompletion) Message {
	if comp == nil || len(comp.Choices) == 0 {
		return Message{}
	}
	msg := comp.Choices[0].Message
	out := Message{Role: "assistant", Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		if fn, ok := tc.AsAny().(sdk.ChatCompletionMessageFunctionToolCall); ok {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   fn.ID,
				Name: fn.Function.Name,
				Args: json.RawMessage(fn.Function.Arguments),
			})
		}
	}
	return out
}
