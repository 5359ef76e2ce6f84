package tool

import (
	"context"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"golang.org/x/sync/errgroup"
)

// ExecutorOptions configures the batch executor.
type ExecutorOptions struct {
	MaxParallel int // 0 or <1 => no explicit limit (len(calls))
	Logger      logging.Logger
}

// Executor executes the batch of tool calls requested in one reasoning turn,
// possibly in parallel. It guarantees exactly one ToolResult per call,
// returned in request order regardless of completion order.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions
}

// NewExecutor constructs an executor over registry.
func NewExecutor(registry *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{registry: registry, opts: opts}
}

// Execute runs calls and returns their results in request order. A call
// whose turn comes after ctx is done is reported as a failed result carrying
// the context error.
func (e *Executor) Execute(ctx context.Context, calls []core.ToolCall) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	invocationID := core.InvocationIDFromContext(ctx)
	results := make([]core.ToolResult, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeOne(ctx, invocationID, calls[0])
		return results
	}

	maxPar := e.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPar)

	for i := range calls {
		g.Go(func() error {
			results[i] = e.executeOne(gctx, invocationID, calls[i])
			return nil
		})
	}

	_ = g.Wait() // workers never return errors

	e.opts.Logger.Debug(
		"tool.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *Executor) executeOne(ctx context.Context, invocationID string, call core.ToolCall) core.ToolResult {
	if err := ctx.Err(); err != nil {
		return core.NewToolFailure(call, err)
	}

	e.opts.Logger.Debug("tool.call.start", "tool", call.Name, "fc_id", call.ID)

	tc := core.NewToolContext(ctx, invocationID, call, e.opts.Logger)

	return e.registry.Execute(tc, call)
}
