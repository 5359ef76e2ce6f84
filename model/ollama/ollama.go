// Package ollama provides a model.Model backed by a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/ollama/ollama/api"
)

const providerName = "ollama"

const (
	// DefaultHost is the address of a default local Ollama install.
	DefaultHost = "http://localhost:11434"
	// DefaultModel is used when no model id is configured.
	DefaultModel = "llama3.1"
)

// Options configures the Ollama model adapter.
type Options struct {
	Model       string
	Host        string
	Temperature float64
	NumPredict  int
	HTTPClient  *http.Client
}

// Model wraps the Ollama chat endpoint.
type Model struct {
	client *api.Client
	opts   Options
}

// NewModel creates an Ollama model. An unparsable host is a configuration
// error.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       DefaultModel,
		Host:        DefaultHost,
		Temperature: 0.2,
		NumPredict:  4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	u, err := url.Parse(opts.Host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, core.NewConfigurationError("OLLAMA_HOST", fmt.Sprintf("invalid host %q", opts.Host), err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Model{client: api.NewClient(u, httpClient), opts: opts}, nil
}

// Generate performs one non-streaming chat round trip.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return model.Response{}, model.WrapError(providerName, 400, err)
	}

	tools, err := buildTools(req.Tools)
	if err != nil {
		return model.Response{}, model.WrapError(providerName, 400, err)
	}

	stream := false
	creq := &api.ChatRequest{
		Model:    m.opts.Model,
		Messages: messages,
		Stream:   &stream,
		Tools:    tools,
		Options: map[string]any{
			"temperature": m.opts.Temperature,
			"num_predict": m.opts.NumPredict,
		},
	}

	var (
		last     api.ChatResponse
		received bool
	)

	if err := m.client.Chat(ctx, creq, func(cr api.ChatResponse) error {
		last = cr
		received = true

		return nil
	}); err != nil {
		return model.Response{}, wrapError(err)
	}

	if !received {
		return model.Response{}, model.EmptyResponseError(providerName)
	}

	calls := make([]core.ToolCall, 0, len(last.Message.ToolCalls))
	for _, tc := range last.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			args = []byte("{}")
		}

		calls = append(calls, core.ToolCall{Name: tc.Function.Name, Arguments: string(args)})
	}

	finish := last.DoneReason
	if finish == "" {
		finish = "stop"
	}

	return model.NormalizeResponse(model.Response{
		Message:      core.NewAssistantMessage(last.Message.Content, calls...),
		FinishReason: finish,
		Usage: &model.TokenUsage{
			PromptTokens:     last.PromptEvalCount,
			CompletionTokens: last.EvalCount,
			TotalTokens:      last.PromptEvalCount + last.EvalCount,
		},
		Raw: last,
	}), nil
}

// wireMessage mirrors the JSON shape of api.Message for the fields used here.
type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type wireToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// buildMessages renders the conversation through the JSON wire shape so the
// adapter does not depend on the SDK's argument container type.
func buildMessages(req model.Request) ([]api.Message, error) {
	wire := make([]wireMessage, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		wire = append(wire, wireMessage{Role: "system", Content: req.Instructions})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleUser:
			wire = append(wire, wireMessage{Role: "user", Content: msg.Text})
		case core.RoleAssistant:
			wm := wireMessage{Role: "assistant", Content: msg.Text}
			for _, tc := range msg.ToolCalls {
				var call wireToolCall
				call.Function.Name = tc.Name
				call.Function.Arguments = model.DecodeArguments(tc.Arguments)
				wm.ToolCalls = append(wm.ToolCalls, call)
			}

			wire = append(wire, wm)
		case core.RoleTool:
			if msg.ToolResult == nil {
				continue
			}

			wire = append(wire, wireMessage{Role: "tool", Content: msg.ToolResult.Content(), ToolName: msg.ToolResult.Name})
		}
	}

	var out []api.Message
	if err := convert(wire, &out); err != nil {
		return nil, fmt.Errorf("ollama messages: %w", err)
	}

	return out, nil
}

func buildTools(defs []model.ToolDefinition) (api.Tools, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	var tools api.Tools
	if err := convert(defs, &tools); err != nil {
		return nil, fmt.Errorf("ollama tools: %w", err)
	}

	return tools, nil
}

func convert(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, out)
}

func wrapError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return model.WrapError(providerName, se.StatusCode, err)
	}

	var sep *api.StatusError
	if errors.As(err, &sep) {
		return model.WrapError(providerName, sep.StatusCode, err)
	}

	return model.WrapError(providerName, 0, err)
}

// Info returns metadata describing this Ollama model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      providerName,
		SupportsTools: true,
	}
}
