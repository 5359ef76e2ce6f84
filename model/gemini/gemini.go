// Package gemini provides a model.Model backed by Google's Gemini API through
// the generative-ai-go SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const providerName = "gemini"

// DefaultModel is used when no model id is configured.
const DefaultModel = "gemini-2.0-flash"

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	ClientOptions   []option.ClientOption
}

// Model wraps a genai client. Callers own the model and must Close it.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. The API key is required.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:           DefaultModel,
		Temperature:     0.2,
		MaxOutputTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, core.NewConfigurationError("GOOGLE_API_KEY", "gemini provider requires an API key", nil)
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(opts.APIKey)}, opts.ClientOptions...)

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Close releases the underlying client.
func (m *Model) Close() error { return m.client.Close() }

// Generate replays the conversation as chat history and sends the last turn.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	gm := m.client.GenerativeModel(m.opts.Model)
	gm.SetTemperature(m.opts.Temperature)
	gm.SetMaxOutputTokens(m.opts.MaxOutputTokens)

	if req.Instructions != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
	}

	if len(req.Tools) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(req.Tools)}}
	}

	history := buildHistory(req.Messages)
	if len(history) == 0 {
		return model.Response{}, model.WrapError(providerName, 400, errors.New("gemini: empty conversation"))
	}

	cs := gm.StartChat()
	cs.History = history[:len(history)-1]

	resp, err := cs.SendMessage(ctx, history[len(history)-1].Parts...)
	if err != nil {
		return model.Response{}, wrapError(err)
	}

	return parseResponse(resp)
}

// parseResponse reads the first candidate of resp.
func parseResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Response{}, model.EmptyResponseError(providerName)
	}

	cand := resp.Candidates[0]

	var (
		text  strings.Builder
		calls []core.ToolCall
	)

	for _, part := range cand.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			calls = append(calls, core.ToolCall{Name: p.Name, Arguments: model.EncodeArguments(p.Args)})
		}
	}

	out := model.Response{
		Message:      core.NewAssistantMessage(text.String(), calls...),
		FinishReason: strings.ToLower(cand.FinishReason.String()),
		Raw:          resp,
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return model.NormalizeResponse(out), nil
}

// buildHistory maps the conversation onto Gemini contents. Consecutive tool
// results are merged into one user turn of FunctionResponse parts.
func buildHistory(msgs []core.Message) []*genai.Content {
	var history []*genai.Content

	appendParts := func(role string, parts ...genai.Part) {
		if n := len(history); n > 0 && history[n-1].Role == role && role == "user" {
			history[n-1].Parts = append(history[n-1].Parts, parts...)
			return
		}

		history = append(history, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleUser:
			appendParts("user", genai.Text(msg.Text))
		case core.RoleAssistant:
			var parts []genai.Part
			if msg.Text != "" {
				parts = append(parts, genai.Text(msg.Text))
			}

			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: model.DecodeArguments(tc.Arguments)})
			}

			if len(parts) > 0 {
				appendParts("model", parts...)
			}
		case core.RoleTool:
			if msg.ToolResult == nil {
				continue
			}

			appendParts("user", genai.FunctionResponse{
				Name:     msg.ToolResult.Name,
				Response: responsePayload(*msg.ToolResult),
			})
		}
	}

	return history
}

// responsePayload renders a tool result as the JSON object Gemini expects.
func responsePayload(r core.ToolResult) map[string]any {
	if r.Failed() {
		return map[string]any{"error": r.Error}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(r.Content()), &obj); err == nil && obj != nil {
		return obj
	}

	return map[string]any{"result": r.Content()}
}

func buildDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}

		if len(t.Function.Parameters) > 0 {
			decl.Parameters = toSchema(t.Function.Parameters)
		}

		decls = append(decls, decl)
	}

	return decls
}

// toSchema converts the JSON Schema subset produced by tool definitions into
// a genai.Schema.
func toSchema(s map[string]any) *genai.Schema {
	out := &genai.Schema{}

	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}

	if d, ok := s["description"].(string); ok {
		out.Description = d
	}

	out.Enum = stringSlice(s["enum"])
	out.Required = stringSlice(s["required"])

	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if ps, ok := raw.(map[string]any); ok {
				out.Properties[name] = toSchema(ps)
			}
		}
	}

	if items, ok := s["items"].(map[string]any); ok {
		out.Items = toSchema(items)
	}

	return out
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func wrapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return model.WrapError(providerName, gerr.Code, err)
	}

	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return model.WrapError(providerName, coded.HTTPCode(), err)
	}

	return model.WrapError(providerName, 0, err)
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      providerName,
		SupportsTools: true,
	}
}
