// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/util"
	"github.com/hupe1980/tripmesh/model"
)

const providerName = "anthropic"

// DefaultModel is used when no model id is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client. SDK
// retries are disabled.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.Model(DefaultModel),
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}

// Generate performs one Messages API round trip.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, wrapError(err)
	}

	var (
		text  strings.Builder
		calls []core.ToolCall
	)

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolBlock := block.AsToolUse()

			args := "{}"
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}

			calls = append(calls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return model.NormalizeResponse(model.Response{
		ID:           resp.ID,
		Message:      core.NewAssistantMessage(text.String(), calls...),
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Raw: resp,
	}), nil
}

// buildMessages converts the conversation to Anthropic message format. Tool
// results travel as tool_result blocks inside a user message; consecutive
// tool messages are merged into one user turn.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var (
		messages    []anthropic.MessageParam
		toolResults []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(toolResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, msg := range msgs {
		if msg.Role == core.RoleTool {
			if msg.ToolResult != nil {
				toolResults = append(toolResults, anthropic.NewToolResultBlock(
					msg.ToolResult.CallID,
					msg.ToolResult.Content(),
					msg.ToolResult.Failed(),
				))
			}

			continue
		}

		flush()

		switch msg.Role {
		case core.RoleAssistant:
			content := buildAssistantContent(msg)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			if msg.Text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
			}
		}
	}

	flush()

	return messages
}

// buildAssistantContent builds content for assistant messages
func buildAssistantContent(msg core.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion

	if msg.Text != "" {
		content = append(content, anthropic.NewTextBlock(msg.Text))
	}

	for _, call := range msg.ToolCalls {
		content = append(content, anthropic.NewToolUseBlock(call.ID, model.DecodeArguments(call.Arguments), call.Name))
	}

	return content
}

// buildTools converts tool definitions to Anthropic tool format
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}

			inputSchema.Required = util.RequiredFields(params)
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if tool.Function.Description != "" {
			anthropicTools[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return anthropicTools
}

func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.WrapError(providerName, apiErr.StatusCode, err)
	}

	return model.WrapError(providerName, 0, err)
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      providerName,
		SupportsTools: true,
	}
}
