// Package provider resolves the closed set of model providers and constructs
// a fresh model.Model for each graph build.
package provider

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/tripmesh/config"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/model/anthropic"
	"github.com/hupe1980/tripmesh/model/gemini"
	"github.com/hupe1980/tripmesh/model/groq"
	"github.com/hupe1980/tripmesh/model/ollama"
	"github.com/hupe1980/tripmesh/model/openai"
)

// Name identifies a model provider.
type Name string

const (
	Groq      Name = "groq"
	OpenAI    Name = "openai"
	Anthropic Name = "anthropic"
	Gemini    Name = "gemini"
	Ollama    Name = "ollama"
)

// Default is used when no provider is selected.
const Default = Groq

// Names lists every supported provider.
func Names() []Name { return []Name{Groq, OpenAI, Anthropic, Gemini, Ollama} }

// Parse resolves a provider selector. An empty selector yields Default; an
// unknown one is a *core.ConfigurationError.
func Parse(selector string) (Name, error) {
	s := Name(strings.ToLower(strings.TrimSpace(selector)))
	if s == "" {
		return Default, nil
	}

	for _, n := range Names() {
		if s == n {
			return n, nil
		}
	}

	return "", core.NewConfigurationError("MODEL_PROVIDER", fmt.Sprintf("unknown model provider %q (supported: %s)", selector, joinNames()), nil)
}

func joinNames() string {
	names := Names()
	out := make([]string, len(names))

	for i, n := range names {
		out[i] = string(n)
	}

	return strings.Join(out, ", ")
}

// Factory builds model clients from configuration.
type Factory struct {
	cfg config.Config
}

// NewFactory creates a factory over cfg.
func NewFactory(cfg config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// New constructs a fresh model client for name. Missing credentials are
// reported as *core.ConfigurationError.
func (f *Factory) New(ctx context.Context, name Name) (model.Model, error) {
	cfg := f.cfg

	switch name {
	case Groq:
		if cfg.GroqAPIKey == "" {
			return nil, missingKey("GROQ_API_KEY", name)
		}

		return groq.NewModel(func(o *groq.Options) {
			o.APIKey = cfg.GroqAPIKey
			o.Temperature = float32(cfg.Temperature)
			o.MaxTokens = cfg.MaxTokens

			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	case OpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, missingKey("OPENAI_API_KEY", name)
		}

		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAIAPIKey
			o.BaseURL = cfg.OpenAIBaseURL
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)

			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	case Anthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, missingKey("ANTHROPIC_API_KEY", name)
		}

		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)

			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
		}), nil
	case Gemini:
		if cfg.GoogleAPIKey == "" {
			return nil, missingKey("GOOGLE_API_KEY", name)
		}

		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = cfg.GoogleAPIKey
			o.Temperature = float32(cfg.Temperature)
			o.MaxOutputTokens = int32(cfg.MaxTokens)

			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		})
		if err != nil {
			return nil, err
		}

		return m, nil
	case Ollama:
		m, err := ollama.NewModel(func(o *ollama.Options) {
			o.Host = cfg.OllamaHost
			o.Temperature = cfg.Temperature
			o.NumPredict = cfg.MaxTokens

			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		})
		if err != nil {
			return nil, err
		}

		return m, nil
	default:
		return nil, core.NewConfigurationError("MODEL_PROVIDER", fmt.Sprintf("unknown model provider %q", name), nil)
	}
}

func missingKey(field string, name Name) error {
	return core.NewConfigurationError(field, fmt.Sprintf("%s provider requires %s", name, field), nil)
}
