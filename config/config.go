// Package config loads service settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/joho/godotenv"
)

// Config holds every setting of the service.
type Config struct {
	// Model selection
	Provider    string  // MODEL_PROVIDER
	ModelName   string  // MODEL_NAME, empty means provider default
	Temperature float64 // MODEL_TEMPERATURE
	MaxTokens   int     // MODEL_MAX_TOKENS

	// Provider credentials / endpoints
	GroqAPIKey      string // GROQ_API_KEY
	OpenAIAPIKey    string // OPENAI_API_KEY
	OpenAIBaseURL   string // OPENAI_BASE_URL
	AnthropicAPIKey string // ANTHROPIC_API_KEY
	GoogleAPIKey    string // GOOGLE_API_KEY
	OllamaHost      string // OLLAMA_HOST

	// Tool credentials
	OpenWeatherMapAPIKey string // OPENWEATHERMAP_API_KEY
	TavilyAPIKey         string // TAVILY_API_KEY
	ExchangeRateAPIKey   string // EXCHANGE_RATE_API_KEY

	// Orchestration
	MaxSteps          int           // MAX_STEPS
	InvocationTimeout time.Duration // INVOCATION_TIMEOUT
	ToolParallelism   int           // TOOL_PARALLELISM

	// Diagnostics
	GraphImagePath string // GRAPH_IMAGE_PATH
	GraphRender    bool   // GRAPH_RENDER

	// HTTP surface
	Port            int    // PORT
	CORSAllowOrigin string // CORS_ALLOW_ORIGIN

	// Logging
	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Provider:          "groq",
		Temperature:       0.2,
		MaxTokens:         4096,
		OllamaHost:        "http://localhost:11434",
		MaxSteps:          10,
		InvocationTimeout: 60 * time.Second,
		ToolParallelism:   4,
		GraphImagePath:    "my_graph.png",
		GraphRender:       true,
		Port:              8000,
		CORSAllowOrigin:   "*",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Options configures Load.
type Options struct {
	// EnvFiles are read with godotenv; missing files are ignored. Values from
	// the process environment take precedence, as with godotenv.Load.
	EnvFiles []string
	// Lookup reads the process environment.
	Lookup func(key string) (string, bool)
}

// Load reads the configuration. Malformed values are reported as
// *core.ConfigurationError.
func Load(optFns ...func(o *Options)) (Config, error) {
	opts := Options{
		EnvFiles: []string{".env"},
		Lookup:   os.LookupEnv,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	fileEnv := map[string]string{}

	for _, f := range opts.EnvFiles {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return Config{}, core.NewConfigurationError(f, "cannot read env file", err)
		}

		for k, v := range vals {
			if _, seen := fileEnv[k]; !seen {
				fileEnv[k] = v
			}
		}
	}

	l := &loader{lookup: func(key string) (string, bool) {
		if v, ok := opts.Lookup(key); ok {
			return v, true
		}

		v, ok := fileEnv[key]

		return v, ok
	}}

	cfg := Default()

	l.stringVar("MODEL_PROVIDER", &cfg.Provider)
	l.stringVar("MODEL_NAME", &cfg.ModelName)
	l.floatVar("MODEL_TEMPERATURE", &cfg.Temperature)
	l.intVar("MODEL_MAX_TOKENS", &cfg.MaxTokens, 1)

	l.stringVar("GROQ_API_KEY", &cfg.GroqAPIKey)
	l.stringVar("OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	l.stringVar("OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	l.stringVar("ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
	l.stringVar("GOOGLE_API_KEY", &cfg.GoogleAPIKey)
	l.stringVar("OLLAMA_HOST", &cfg.OllamaHost)

	l.stringVar("OPENWEATHERMAP_API_KEY", &cfg.OpenWeatherMapAPIKey)
	l.stringVar("TAVILY_API_KEY", &cfg.TavilyAPIKey)
	l.stringVar("EXCHANGE_RATE_API_KEY", &cfg.ExchangeRateAPIKey)

	l.intVar("MAX_STEPS", &cfg.MaxSteps, 1)
	l.durationVar("INVOCATION_TIMEOUT", &cfg.InvocationTimeout)
	l.intVar("TOOL_PARALLELISM", &cfg.ToolParallelism, 1)

	l.stringVar("GRAPH_IMAGE_PATH", &cfg.GraphImagePath)
	l.boolVar("GRAPH_RENDER", &cfg.GraphRender)

	l.intVar("PORT", &cfg.Port, 1)
	l.stringVar("CORS_ALLOW_ORIGIN", &cfg.CORSAllowOrigin)

	l.stringVar("LOG_LEVEL", &cfg.LogLevel)
	l.stringVar("LOG_FORMAT", &cfg.LogFormat)

	if l.err != nil {
		return Config{}, l.err
	}

	return cfg, nil
}

// loader records the first parse failure.
type loader struct {
	lookup func(string) (string, bool)
	err    error
}

func (l *loader) value(key string) (string, bool) {
	v, ok := l.lookup(key)
	if !ok {
		return "", false
	}

	v = strings.TrimSpace(v)

	return v, v != ""
}

func (l *loader) fail(key, msg string, err error) {
	if l.err == nil {
		l.err = core.NewConfigurationError(key, msg, err)
	}
}

func (l *loader) stringVar(key string, dst *string) {
	if v, ok := l.value(key); ok {
		*dst = v
	}
}

func (l *loader) intVar(key string, dst *int, minVal int) {
	v, ok := l.value(key)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(key, "must be an integer", err)
		return
	}

	if n < minVal {
		l.fail(key, "must be at least "+strconv.Itoa(minVal), nil)
		return
	}

	*dst = n
}

func (l *loader) floatVar(key string, dst *float64) {
	v, ok := l.value(key)
	if !ok {
		return
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(key, "must be a number", err)
		return
	}

	*dst = f
}

func (l *loader) boolVar(key string, dst *bool) {
	v, ok := l.value(key)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(key, "must be a boolean", err)
		return
	}

	*dst = b
}

// durationVar accepts Go duration strings ("90s") and bare seconds ("90").
func (l *loader) durationVar(key string, dst *time.Duration) {
	v, ok := l.value(key)
	if !ok {
		return
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			l.fail(key, "must be positive", nil)
			return
		}

		*dst = time.Duration(secs) * time.Second

		return
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, "must be a duration", err)
		return
	}

	if d <= 0 {
		l.fail(key, "must be positive", nil)
		return
	}

	*dst = d
}
