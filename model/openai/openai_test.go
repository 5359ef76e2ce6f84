package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL + "/"
	})
}

func TestGenerateToolCalls(t *testing.T) {
	var body map[string]any

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_current_weather", "arguments": "{\"city\":\"Lisbon\"}"}}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "You are a travel planner.",
		Messages: []core.Message{
			core.NewUserMessage("Weather in Lisbon?"),
		},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "get_current_weather",
				Description: "Current weather",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{"city": map[string]any{"type": "string"}}},
			},
		}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "get_current_weather", resp.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Lisbon"}`, resp.Message.ToolCalls[0].Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestGenerateFinalAnswer(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c2","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Lisbon is sunny."}}]}`))
	})

	resp, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.NoError(t, err)
	assert.True(t, resp.IsFinal())
	assert.Equal(t, "Lisbon is sunny.", resp.Message.Text)
}

func TestGenerateEmptyChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c3","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`))
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})

	var pe *core.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.ProviderBadResponse, pe.Kind)
	assert.ErrorIs(t, err, core.ErrEmptyResponse)
}

func TestGenerateUnauthorized(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})

	var pe *core.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.ProviderUnauthorized, pe.Kind)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
}

func TestBuildMessagesToolHistory(t *testing.T) {
	call := core.ToolCall{ID: "call_1", Name: "convert_currency", Arguments: `{"amount":10}`}
	msgs := buildMessages(model.Request{Messages: []core.Message{
		core.NewUserMessage("How much is 10 USD in EUR?"),
		core.NewAssistantMessage("", call),
		core.NewToolMessage(core.NewToolSuccess(call, map[string]any{"result": 9.2})),
	}})

	require.Len(t, msgs, 3)
	require.NotNil(t, msgs[1].OfAssistant)
	assert.Len(t, msgs[1].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[2].OfTool)
	assert.Equal(t, "call_1", msgs[2].OfTool.ToolCallID)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4o" })
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}
