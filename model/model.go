package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/tripmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input for one reasoning turn.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions
	Messages     []core.Message   `json:"messages"`     // Full conversation so far
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the model decision for one reasoning turn. Message is always an
// assistant message; it is a tool decision when Message.ToolCalls is
// non-empty and a final answer otherwise.
type Response struct {
	ID           string       `json:"id"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
	Raw          any          `json:"-"` // Provider payload used when the message carries no text
}

// IsFinal reports whether the response is a final answer.
func (r Response) IsFinal() bool { return !r.Message.HasToolCalls() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "groq", "gemini", "ollama", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the orchestration graph.
// Implementations do not retry internally; a failed call returns a
// *core.ProviderError (or the context error when ctx is done).
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// NormalizeResponse enforces the single-decision contract on a provider
// message: role is forced to assistant and tool calls without an ID get a
// synthesized one so results can be matched.
func NormalizeResponse(resp Response) Response {
	resp.Message.Role = core.RoleAssistant
	for i := range resp.Message.ToolCalls {
		if resp.Message.ToolCalls[i].ID == "" {
			resp.Message.ToolCalls[i].ID = "call_" + core.NewID()
		}

		if resp.Message.ToolCalls[i].Arguments == "" {
			resp.Message.ToolCalls[i].Arguments = "{}"
		}
	}

	return resp
}

// EncodeArguments serializes a decoded argument map to the JSON string form
// stored on core.ToolCall.
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}

	return string(b)
}

// DecodeArguments parses a core.ToolCall argument string into a map. Invalid
// JSON yields an empty map; providers need a best-effort structure when
// echoing history back.
func DecodeArguments(args string) map[string]any {
	out := map[string]any{}
	if args == "" {
		return out
	}

	_ = json.Unmarshal([]byte(args), &out)

	return out
}

// MockModel is a lightweight in‑memory Model useful for tests & examples. It
// replays scripted responses in order; once the script is exhausted the
// fallback (if set) decides, otherwise it echoes the last user message.
type MockModel struct {
	info     Info
	mu       sync.Mutex
	script   []Response
	errs     []error
	calls    int
	requests []Request
	fallback func(req Request) (Response, error)
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
	}
}

// AddAnswer appends a final text answer to the script.
func (m *MockModel) AddAnswer(text string) *MockModel {
	return m.AddResponse(Response{Message: core.NewAssistantMessage(text), FinishReason: "stop"}, nil)
}

// AddToolCalls appends a tool-call decision to the script.
func (m *MockModel) AddToolCalls(calls ...core.ToolCall) *MockModel {
	return m.AddResponse(Response{Message: core.NewAssistantMessage("", calls...), FinishReason: "tool_calls"}, nil)
}

// AddError appends a failing turn to the script.
func (m *MockModel) AddError(err error) *MockModel {
	return m.AddResponse(Response{}, err)
}

// AddResponse appends an arbitrary response / error pair to the script.
func (m *MockModel) AddResponse(resp Response, err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.script = append(m.script, resp)
	m.errs = append(m.errs, err)

	return m
}

// WithFallback sets the decision function used once the script is exhausted.
func (m *MockModel) WithFallback(fn func(req Request) (Response, error)) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallback = fn

	return m
}

// Calls returns how many times Generate was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// Requests returns a copy of every request received.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	fallback := m.fallback

	var (
		resp Response
		err  error
		ok   bool
	)

	if idx < len(m.script) {
		resp, err, ok = m.script[idx], m.errs[idx], true
	}
	m.mu.Unlock()

	if !ok {
		if fallback != nil {
			resp, err = fallback(req)
		} else {
			resp = Response{Message: core.NewAssistantMessage(fmt.Sprintf("Mock response to: %s", lastUserText(req))), FinishReason: "stop"}
		}
	}

	if err != nil {
		return Response{}, err
	}

	return NormalizeResponse(resp), nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			return req.Messages[i].Text
		}
	}

	return ""
}
