// Package groq provides a model.Model backed by Groq's OpenAI-compatible chat
// completions endpoint. It is the default provider of the trip planner.
package groq

import (
	"context"
	"errors"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	goopenai "github.com/sashabaranov/go-openai"
)

const providerName = "groq"

const (
	// DefaultBaseURL is Groq's OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is used when no model id is configured.
	DefaultModel = "llama-3.3-70b-versatile"
)

// Options configures the Groq model adapter.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	APIKey      string
	BaseURL     string
}

// Model wraps a go-openai client pointed at Groq.
type Model struct {
	client *goopenai.Client
	opts   Options
}

// NewModel creates a new Groq model.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0.2,
		MaxTokens:   4096,
		BaseURL:     DefaultBaseURL,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := goopenai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL

	return &Model{client: goopenai.NewClientWithConfig(cfg), opts: opts}
}

// Generate performs one chat completion round trip.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	creq := goopenai.ChatCompletionRequest{
		Model:       m.opts.Model,
		Messages:    buildMessages(req),
		Temperature: m.opts.Temperature,
		MaxTokens:   m.opts.MaxTokens,
	}

	for _, tdef := range req.Tools {
		creq.Tools = append(creq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tdef.Function.Name,
				Description: tdef.Function.Description,
				Parameters:  tdef.Function.Parameters,
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return model.Response{}, wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return model.Response{}, model.EmptyResponseError(providerName)
	}

	ch0 := resp.Choices[0]

	calls := make([]core.ToolCall, 0, len(ch0.Message.ToolCalls))
	for _, tc := range ch0.Message.ToolCalls {
		calls = append(calls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return model.NormalizeResponse(model.Response{
		ID:           resp.ID,
		Message:      core.NewAssistantMessage(ch0.Message.Content, calls...),
		FinishReason: string(ch0.FinishReason),
		Usage: &model.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Raw: resp,
	}), nil
}

func buildMessages(req model.Request) []goopenai.ChatCompletionMessage {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleUser:
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: msg.Text,
			})
		case core.RoleAssistant:
			out := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: msg.Text,
			}

			for _, tc := range msg.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}

			messages = append(messages, out)
		case core.RoleTool:
			if msg.ToolResult == nil {
				continue
			}

			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    msg.ToolResult.Content(),
				Name:       msg.ToolResult.Name,
				ToolCallID: msg.ToolResult.CallID,
			})
		}
	}

	return messages
}

func wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return model.WrapError(providerName, apiErr.HTTPStatusCode, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return model.WrapError(providerName, reqErr.HTTPStatusCode, err)
	}

	return model.WrapError(providerName, 0, err)
}

// Info returns metadata describing this Groq model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      providerName,
		SupportsTools: true,
	}
}
