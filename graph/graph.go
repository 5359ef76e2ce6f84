package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/util"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/tool"
)

// Defaults applied by New and Builder.
const (
	DefaultMaxSteps        = 10
	DefaultTimeout         = 60 * time.Second
	DefaultToolParallelism = 4
)

// Options configures a Graph.
type Options struct {
	// MaxSteps bounds the Reasoning -> ToolDispatch round trips per invocation.
	MaxSteps int
	// Timeout bounds one invocation; zero disables the deadline.
	Timeout time.Duration
	// ToolParallelism bounds concurrent tool executions within one turn.
	ToolParallelism int
	// Instructions is the system prompt template.
	Instructions string
	Logger       logging.Logger
	// Now supplies the date rendered into the instructions.
	Now func() time.Time
}

func defaultOptions() Options {
	return Options{
		MaxSteps:        DefaultMaxSteps,
		Timeout:         DefaultTimeout,
		ToolParallelism: DefaultToolParallelism,
		Instructions:    DefaultInstructions,
		Logger:          logging.NoOpLogger{},
		Now:             time.Now,
	}
}

// Result is what one invocation produced.
type Result struct {
	InvocationID string
	Outcome      core.Outcome
	// Conversation is the final conversation state. It is nil when the
	// invocation timed out.
	Conversation *core.Conversation
	// Steps counts the completed Reasoning -> ToolDispatch round trips.
	Steps      int
	ModelCalls int
	Duration   time.Duration
}

// Answer returns the answer text, or the failure.
func (r *Result) Answer() (string, error) {
	if text, ok := core.AnswerText(r.Outcome); ok {
		return text, nil
	}

	var f *core.Failure
	if fo, ok := r.Outcome.(*core.Failure); ok {
		f = fo
	} else {
		f = core.NewFailure(core.FailureProvider, "invocation produced no outcome", nil)
	}

	return "", f
}

// Graph is the orchestration graph for one request. It owns its model
// client and shares the read-only tool registry.
type Graph struct {
	model    model.Model
	registry *tool.Registry
	opts     Options
}

// New wires a graph from a model and a registry.
func New(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) (*Graph, error) {
	if m == nil {
		return nil, errors.New("graph: model is required")
	}

	if registry == nil {
		return nil, errors.New("graph: tool registry is required")
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	if opts.ToolParallelism <= 0 {
		opts.ToolParallelism = DefaultToolParallelism
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Graph{model: m, registry: registry, opts: opts}, nil
}

// Model returns the model client used by the graph.
func (g *Graph) Model() model.Model { return g.model }

// Close releases the model client if it holds resources.
func (g *Graph) Close() error {
	if c, ok := g.model.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// invocation is the mutable state of one Invoke call. It never escapes the
// invoking goroutine.
type invocation struct {
	id           string
	conv         *core.Conversation
	limiter      *core.StepLimiter
	executor     *tool.Executor
	logger       logging.Logger
	instructions string
	modelCalls   int
}

// Invoke runs the graph for query until it reaches Terminal and returns
// exactly one outcome. It never returns a nil Result.
func (g *Graph) Invoke(ctx context.Context, query string) *Result {
	start := time.Now()
	id := core.NewID()

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	ctx = core.WithInvocationID(ctx, id)
	logger := invocationLogger(g.opts.Logger, id)

	inv := &invocation{
		id:      id,
		conv:    core.NewConversation(core.NewUserMessage(query)),
		limiter: core.NewStepLimiter(g.opts.MaxSteps),
		executor: tool.NewExecutor(g.registry, func(o *tool.ExecutorOptions) {
			o.MaxParallel = g.opts.ToolParallelism
			o.Logger = logger
		}),
		logger: logger,
	}

	instructions, err := util.RenderTemplate(g.opts.Instructions, map[string]any{
		"today": g.opts.Now().Format("2006-01-02"),
	})
	if err != nil {
		logger.Warn("graph.instructions.render_failed", "error", err.Error())

		instructions = g.opts.Instructions
	}

	inv.instructions = instructions

	logger.Info("graph.invoke.start", "model", g.model.Info().Name, "provider", g.model.Info().Provider, "max_steps", g.opts.MaxSteps)

	var outcome core.Outcome

	state := StateReasoning
	for state != StateTerminal {
		switch state {
		case StateReasoning:
			state, outcome = g.reason(ctx, inv)
		case StateToolDispatch:
			state, outcome = g.dispatch(ctx, inv)
		}
	}

	res := &Result{
		InvocationID: id,
		Outcome:      outcome,
		Conversation: inv.conv,
		Steps:        inv.limiter.Count(),
		ModelCalls:   inv.modelCalls,
		Duration:     time.Since(start),
	}

	if f, ok := outcome.(*core.Failure); ok && f.Kind == core.FailureTimeout {
		res.Conversation = nil
	}

	logGraphExecution(logger, res)

	return res
}

// reason performs one model call and picks the next state.
func (g *Graph) reason(ctx context.Context, inv *invocation) (State, core.Outcome) {
	if f := contextFailure(ctx); f != nil {
		return StateTerminal, f
	}

	inv.logger.Debug("graph.reasoning.start", "messages", inv.conv.Len(), "step", inv.limiter.Count())

	req := model.Request{
		Instructions: inv.instructions,
		Messages:     inv.conv.Messages(),
		Tools:        g.registry.Definitions(),
	}

	start := time.Now()
	resp, err := await(ctx, func() (model.Response, error) { return g.model.Generate(ctx, req) })
	inv.modelCalls++

	logLLMCall(inv.logger, g.model.Info().Name, resp.Usage, time.Since(start), err)

	if err != nil {
		return StateTerminal, g.modelFailure(ctx, err)
	}

	if resp.IsFinal() {
		inv.conv.Append(resp.Message)
		return StateTerminal, core.Answer{Text: normalizeAnswer(resp)}
	}

	if err := inv.limiter.Increment(); err != nil {
		inv.logger.Warn("graph.step_limit.exceeded", "max_steps", g.opts.MaxSteps, "requested_tools", len(resp.Message.ToolCalls))

		return StateTerminal, core.NewFailure(core.FailureStepLimitExceeded,
			fmt.Sprintf("no final answer after %d tool round trips", g.opts.MaxSteps), err)
	}

	inv.conv.Append(resp.Message)

	return StateToolDispatch, nil
}

// dispatch executes the pending tool calls and appends one result per call
// in request order.
func (g *Graph) dispatch(ctx context.Context, inv *invocation) (State, core.Outcome) {
	calls := inv.conv.PendingToolCalls()

	inv.logger.Debug("graph.tool_dispatch.start", "count", len(calls), "step", inv.limiter.Count())

	results, err := await(ctx, func() ([]core.ToolResult, error) { return inv.executor.Execute(ctx, calls), nil })
	if err != nil {
		inv.logger.Warn("graph.tool_dispatch.abandoned", "count", len(calls), "error", err.Error())

		// Every call still gets exactly one result.
		results = make([]core.ToolResult, len(calls))
		for i, call := range calls {
			results[i] = core.NewToolFailure(call, err)
		}
	}

	for _, res := range results {
		inv.conv.Append(core.NewToolMessage(res))
	}

	if f := contextFailure(ctx); f != nil {
		return StateTerminal, f
	}

	return StateReasoning, nil
}

// await runs fn on its own goroutine and returns when it finishes or ctx is
// done, whichever comes first. This keeps the invocation deadline even for
// models and tools that ignore ctx; an abandoned fn runs to completion in
// the background and its result is dropped. Panics are returned as errors.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)

	go func() {
		var r result

		defer func() {
			if rec := recover(); rec != nil {
				r.err = fmt.Errorf("panic recovered: %v", rec)
			}

			done <- r
		}()

		r.val, r.err = fn()
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// modelFailure classifies a model call error.
func (g *Graph) modelFailure(ctx context.Context, err error) *core.Failure {
	if f := contextFailure(ctx); f != nil {
		f.Err = err
		return f
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return core.NewFailure(core.FailureTimeout, "invocation deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return core.NewFailure(core.FailureCanceled, "invocation canceled", err)
	}

	var pe *core.ProviderError
	if !errors.As(err, &pe) {
		err = &core.ProviderError{Provider: g.model.Info().Provider, Kind: core.ProviderUnknown, Err: err}
	}

	return core.NewFailure(core.FailureProvider, "model provider call failed", err)
}

func contextFailure(ctx context.Context) *core.Failure {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return core.NewFailure(core.FailureTimeout, "invocation deadline exceeded", err)
	default:
		return core.NewFailure(core.FailureCanceled, "invocation canceled", err)
	}
}

// normalizeAnswer returns the final assistant text. When the model produced
// no text the raw provider payload is rendered instead, or the message
// itself when there is no payload.
func normalizeAnswer(resp model.Response) string {
	if text := strings.TrimSpace(resp.Message.Text); text != "" {
		return resp.Message.Text
	}

	if resp.Raw == nil {
		return core.Stringify(resp.Message)
	}

	if b, err := json.Marshal(resp.Raw); err == nil {
		return string(b)
	}

	return fmt.Sprintf("%+v", resp.Raw)
}

func invocationLogger(l logging.Logger, id string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent("graph").WithInvocation(id)
	}

	return l
}

func logLLMCall(l logging.Logger, name string, usage *model.TokenUsage, dur time.Duration, err error) {
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}

	if sl, ok := l.(*logging.StructuredLogger); ok {
		sl.LogLLMCall(name, tokens, dur, err == nil, err)
		return
	}

	if err != nil {
		l.Error("llm.call.failed", "model", name, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}

	l.Info("llm.call.completed", "model", name, "token_count", tokens, "duration_ms", dur.Milliseconds())
}

func logGraphExecution(l logging.Logger, res *Result) {
	outcome := "answer"
	if f, ok := res.Outcome.(*core.Failure); ok {
		outcome = string(f.Kind)
	}

	success := outcome == "answer"

	if sl, ok := l.(*logging.StructuredLogger); ok {
		sl.LogGraphExecution(outcome, res.Steps, res.Duration, success)
		return
	}

	l.Info("graph.invoke.completed", "outcome", outcome, "step_count", res.Steps, "duration_ms", res.Duration.Milliseconds(), "success", success)
}
