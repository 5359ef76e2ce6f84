package tripmesh

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/tripmesh/config"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/graph"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/provider"
	"github.com/hupe1980/tripmesh/tool"
	"github.com/hupe1980/tripmesh/tool/travel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T, script func(m *model.MockModel), optFns ...func(o *graph.Options)) *graph.Builder {
	t.Helper()

	registry, err := tool.NewRegistry(travel.Tools())
	require.NoError(t, err)

	return graph.NewBuilder(graph.ModelFactoryFunc(func(_ context.Context, name provider.Name) (model.Model, error) {
		m := model.NewMockModel(string(name))
		script(m)

		return m, nil
	}), registry, optFns...)
}

func TestPlanner_Ask(t *testing.T) {
	p := New(newBuilder(t, func(m *model.MockModel) {
		m.AddToolCalls(core.ToolCall{Name: "calculate_daily_budget", Arguments: `{"total":1200,"days":4}`}).
			AddAnswer("Plan for 300 EUR per day.")
	}))

	answer, err := p.Ask(context.Background(), "4 days in Lisbon for 1200 EUR")
	require.NoError(t, err)
	assert.Equal(t, "Plan for 300 EUR per day.", answer)
}

func TestPlanner_DiagramFailureIsSwallowed(t *testing.T) {
	rendered := 0

	p := New(newBuilder(t, func(m *model.MockModel) { m.AddAnswer("Sintra.") }), func(o *Options) {
		o.GraphImagePath = filepath.Join(t.TempDir(), "graph.png")
		o.Renderer = graph.RendererFunc(func(context.Context, string) ([]byte, error) {
			rendered++
			return nil, errors.New("mermaid.ink unreachable")
		})
	})

	answer, err := p.Ask(context.Background(), "What's a good day trip from Lisbon?")
	require.NoError(t, err)
	assert.Equal(t, "Sintra.", answer)

	p.diagrams.Wait()
	assert.Equal(t, 1, rendered)
	assert.NoFileExists(t, p.opts.GraphImagePath)
}

func TestPlanner_DiagramPanicIsSwallowed(t *testing.T) {
	var rendered atomic.Int32

	p := New(newBuilder(t, func(m *model.MockModel) { m.AddAnswer("Porto.") }), func(o *Options) {
		o.GraphImagePath = filepath.Join(t.TempDir(), "graph.png")
		o.Renderer = graph.RendererFunc(func(context.Context, string) ([]byte, error) {
			rendered.Add(1)
			panic("renderer exploded")
		})
	})

	for range 2 {
		answer, err := p.Ask(context.Background(), "Where should I go next?")
		require.NoError(t, err)
		assert.Equal(t, "Porto.", answer)

		p.diagrams.Wait()
	}

	assert.Equal(t, int32(2), rendered.Load())
	assert.NoFileExists(t, p.opts.GraphImagePath)
}

func TestPlanner_DiagramOffRequestPath(t *testing.T) {
	release := make(chan struct{})

	var rendered atomic.Int32

	p := New(newBuilder(t, func(m *model.MockModel) { m.AddAnswer("Madeira.") }), func(o *Options) {
		o.GraphImagePath = filepath.Join(t.TempDir(), "graph.png")
		o.RenderTimeout = time.Minute
		o.Renderer = graph.RendererFunc(func(context.Context, string) ([]byte, error) {
			rendered.Add(1)
			<-release

			return []byte("PNG"), nil
		})
	})

	start := time.Now()

	for range 3 {
		answer, err := p.Ask(context.Background(), "Island ideas?")
		require.NoError(t, err)
		assert.Equal(t, "Madeira.", answer)
	}

	assert.Less(t, time.Since(start), 5*time.Second)

	close(release)
	p.diagrams.Wait()

	assert.Equal(t, int32(1), rendered.Load())
	assert.FileExists(t, p.opts.GraphImagePath)

	_, err := p.Ask(context.Background(), "Island ideas?")
	require.NoError(t, err)

	p.diagrams.Wait()
	assert.Equal(t, int32(1), rendered.Load())
}

func TestPlanner_DiagramWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.png")

	p := New(newBuilder(t, func(m *model.MockModel) { m.AddAnswer("ok") }), func(o *Options) {
		o.GraphImagePath = path
		o.Renderer = graph.RendererFunc(func(context.Context, string) ([]byte, error) {
			return []byte("PNG"), nil
		})
	})

	_, err := p.Ask(context.Background(), "hi")
	require.NoError(t, err)

	p.diagrams.Wait()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(b))
}

func TestPlanner_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  func(m *model.MockModel)
		optFns  []func(o *graph.Options)
		status  int
		failure core.FailureKind
	}{
		{
			name:    "provider",
			script:  func(m *model.MockModel) { m.AddError(core.NewProviderError("groq", 401, errors.New("bad key"))) },
			status:  http.StatusBadGateway,
			failure: core.FailureProvider,
		},
		{
			name: "step limit",
			script: func(m *model.MockModel) {
				m.WithFallback(func(model.Request) (model.Response, error) {
					return model.Response{Message: core.NewAssistantMessage("", core.ToolCall{Name: "calculate_daily_budget", Arguments: `{"total":1,"days":1}`})}, nil
				})
			},
			optFns:  []func(o *graph.Options){func(o *graph.Options) { o.MaxSteps = 2 }},
			status:  http.StatusInternalServerError,
			failure: core.FailureStepLimitExceeded,
		},
		{
			name: "timeout",
			script: func(m *model.MockModel) {
				m.WithFallback(func(model.Request) (model.Response, error) {
					time.Sleep(50 * time.Millisecond)
					return model.Response{Message: core.NewAssistantMessage("", core.ToolCall{Name: "calculate_daily_budget", Arguments: `{"total":1,"days":1}`})}, nil
				})
			},
			optFns:  []func(o *graph.Options){func(o *graph.Options) { o.Timeout = 20 * time.Millisecond }},
			status:  http.StatusGatewayTimeout,
			failure: core.FailureTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(newBuilder(t, tt.script, tt.optFns...))

			_, err := p.Ask(context.Background(), "plan my trip")

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.status, e.Status)

			var f *core.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tt.failure, f.Kind)
		})
	}
}

func TestPlanner_UnknownProvider(t *testing.T) {
	p := New(newBuilder(t, func(*model.MockModel) {}), func(o *Options) { o.Provider = "mistral" })

	_, err := p.Ask(context.Background(), "hi")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusInternalServerError, e.Status)

	var ce *core.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestToError(t *testing.T) {
	assert.Nil(t, ToError(nil))

	e := &Error{Status: http.StatusTeapot, Message: "tea"}
	assert.Same(t, e, ToError(e))

	canceled := ToError(core.NewFailure(core.FailureCanceled, "gone", context.Canceled))
	assert.Equal(t, StatusClientClosedRequest, canceled.Status)
	assert.ErrorIs(t, canceled, context.Canceled)

	assert.Equal(t, http.StatusInternalServerError, ToError(errors.New("boom")).Status)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.GroqAPIKey = "test-key"
	cfg.GraphRender = false

	p, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, p.opts.Renderer)
	assert.Equal(t, "my_graph.png", p.opts.GraphImagePath)

	cfg.Provider = "mistral"
	_, err = NewFromConfig(cfg, nil)

	var ce *core.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestNewFromConfig_MissingKey(t *testing.T) {
	cfg := config.Default()
	cfg.GraphRender = false

	p, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)

	_, err = p.Ask(context.Background(), "hi")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
}
