// Package tripmesh provides the request-level façade of the trip planning
// agent. A Planner answers one free-text travel query per call by:
//  1. Building a fresh orchestration graph for the configured provider
//  2. Writing the graph diagram in the background as a best-effort
//     diagnostic artifact (until the first successful write)
//  3. Invoking the graph and translating its outcome into an answer or *Error
//
// Nothing is kept between calls; every query gets its own model client and
// conversation while the tool registry is shared read-only.
package tripmesh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/tripmesh/config"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/graph"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/provider"
	"github.com/hupe1980/tripmesh/tool/travel"
)

// StatusClientClosedRequest is reported when the caller went away before the
// invocation finished.
const StatusClientClosedRequest = 499

// Options configures the Planner.
type Options struct {
	// Provider is the model provider selector; empty selects the default.
	Provider string
	// Renderer produces the diagram image; nil disables rendering.
	Renderer graph.Renderer
	// GraphImagePath is where the diagram image is written.
	GraphImagePath string
	// RenderTimeout bounds one diagram rendering.
	RenderTimeout time.Duration
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Planner answers travel queries.
type Planner struct {
	builder *graph.Builder
	opts    Options

	rendered  atomic.Bool
	rendering atomic.Bool
	diagrams  sync.WaitGroup
}

// New creates a Planner around a graph builder.
func New(builder *graph.Builder, optFns ...func(o *Options)) *Planner {
	opts := Options{
		GraphImagePath: "my_graph.png",
		RenderTimeout:  5 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Planner{builder: builder, opts: opts}
}

// NewFromConfig wires the complete stack (travel tools, provider factory,
// graph builder, diagram renderer) from cfg.
func NewFromConfig(cfg config.Config, logger logging.Logger) (*Planner, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	if _, err := provider.Parse(cfg.Provider); err != nil {
		return nil, err
	}

	registry, err := travel.NewRegistry(logger, func(o *travel.Options) {
		o.OpenWeatherMapKey = cfg.OpenWeatherMapAPIKey
		o.TavilyKey = cfg.TavilyAPIKey
		o.ExchangeRateKey = cfg.ExchangeRateAPIKey
	})
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	builder := graph.NewBuilder(provider.NewFactory(cfg), registry, func(o *graph.Options) {
		o.MaxSteps = cfg.MaxSteps
		o.Timeout = cfg.InvocationTimeout
		o.ToolParallelism = cfg.ToolParallelism
		o.Logger = logger
	})

	return New(builder, func(o *Options) {
		o.Provider = cfg.Provider
		o.GraphImagePath = cfg.GraphImagePath
		o.Logger = logger

		if cfg.GraphRender {
			o.Renderer = graph.NewMermaidInkRenderer()
		}
	}), nil
}

// Ask answers query. Failures are returned as *Error.
func (p *Planner) Ask(ctx context.Context, query string) (string, error) {
	g, err := p.builder.Build(ctx, p.opts.Provider)
	if err != nil {
		p.opts.Logger.Error("planner.build.failed", "provider", p.opts.Provider, "error", err.Error())
		return "", ToError(err)
	}

	defer func() {
		if err := g.Close(); err != nil {
			p.opts.Logger.Debug("planner.close.failed", "error", err.Error())
		}
	}()

	p.writeDiagram(ctx)

	res := g.Invoke(ctx, query)

	answer, err := res.Answer()
	if err != nil {
		p.opts.Logger.Error("planner.ask.failed", "invocation_id", res.InvocationID, "error", err.Error())
		return "", ToError(err)
	}

	p.opts.Logger.Info("planner.ask.completed", "invocation_id", res.InvocationID, "steps", res.Steps, "duration_ms", res.Duration.Milliseconds())

	return answer, nil
}

// writeDiagram starts rendering the graph image on a detached goroutine so
// the request never waits for it. At most one rendering runs at a time and
// none start after the first success. Errors and panics are logged only.
func (p *Planner) writeDiagram(ctx context.Context) {
	if p.opts.Renderer == nil || p.opts.GraphImagePath == "" || p.rendered.Load() {
		return
	}

	if !p.rendering.CompareAndSwap(false, true) {
		return
	}

	ctx = context.WithoutCancel(ctx)

	p.diagrams.Add(1)

	go func() {
		defer p.diagrams.Done()
		defer p.rendering.Store(false)

		defer func() {
			if r := recover(); r != nil {
				p.opts.Logger.Debug("planner.diagram.panic", "path", p.opts.GraphImagePath, "panic", fmt.Sprint(r))
			}
		}()

		if p.opts.RenderTimeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, p.opts.RenderTimeout)
			defer cancel()
		}

		if err := graph.WriteDiagram(ctx, p.opts.Renderer, p.opts.GraphImagePath); err != nil {
			p.opts.Logger.Debug("planner.diagram.failed", "path", p.opts.GraphImagePath, "error", err.Error())
			return
		}

		p.rendered.Store(true)
	}()
}

// Error is a request failure carrying the HTTP status it maps to.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// ToError maps an error from building or invoking a graph to *Error.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var ce *core.ConfigurationError
	if errors.As(err, &ce) {
		return &Error{Status: http.StatusInternalServerError, Message: "service misconfigured", Err: err}
	}

	var f *core.Failure
	if errors.As(err, &f) {
		switch f.Kind {
		case core.FailureProvider:
			return &Error{Status: http.StatusBadGateway, Message: "model provider failed", Err: err}
		case core.FailureTimeout:
			return &Error{Status: http.StatusGatewayTimeout, Message: "request timed out", Err: err}
		case core.FailureStepLimitExceeded:
			return &Error{Status: http.StatusInternalServerError, Message: "couldn't complete the trip plan within the allowed steps", Err: err}
		case core.FailureCanceled:
			return &Error{Status: StatusClientClosedRequest, Message: "request canceled", Err: err}
		}
	}

	return &Error{Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}
