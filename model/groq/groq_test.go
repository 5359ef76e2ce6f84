package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
		o.APIKey = "gsk-test"
		o.BaseURL = srv.URL + "/openai/v1"
	})
}

func TestGenerateSendsHistoryAndParsesToolCalls(t *testing.T) {
	var body struct {
		Model    string           `json:"model"`
		Messages []map[string]any `json:"messages"`
		Tools    []map[string]any `json:"tools"`
	}

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-groq",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"tool_calls": [
						{"id": "call_a", "type": "function", "function": {"name": "search_places", "arguments": "{\"place\":\"Lisbon\",\"category\":\"restaurants\"}"}},
						{"id": "call_b", "type": "function", "function": {"name": "get_current_weather", "arguments": "{\"city\":\"Lisbon\"}"}}
					]
				}
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
		}`))
	})

	prior := core.ToolCall{ID: "call_0", Name: "convert_currency", Arguments: `{}`}

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "system",
		Messages: []core.Message{
			core.NewUserMessage("Plan Lisbon"),
			core.NewAssistantMessage("", prior),
			core.NewToolMessage(core.NewToolFailure(prior, assert.AnError)),
		},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{Name: "search_places"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, body.Model)
	require.Len(t, body.Messages, 4)
	assert.Equal(t, "system", body.Messages[0]["role"])
	assert.Equal(t, "tool", body.Messages[3]["role"])
	assert.Equal(t, "call_0", body.Messages[3]["tool_call_id"])
	assert.Len(t, body.Tools, 1)

	require.Len(t, resp.Message.ToolCalls, 2)
	assert.Equal(t, "call_a", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "get_current_weather", resp.Message.ToolCalls[1].Name)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestGenerateServerError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"over capacity","type":"server_error"}}`))
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})

	var pe *core.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.ProviderUnavailable, pe.Kind)
	assert.Equal(t, "groq", pe.Provider)
}

func TestGenerateEmptyChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	assert.ErrorIs(t, err, core.ErrEmptyResponse)
}

func TestInfo(t *testing.T) {
	assert.Equal(t, model.Info{Name: DefaultModel, Provider: "groq", SupportsTools: true}, NewModel().Info())
}
