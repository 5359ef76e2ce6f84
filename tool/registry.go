package tool

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
)

// Registry maps tool names to implementations. It is populated once at
// startup and then shared read-only by every invocation.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	logger logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry creates a registry populated with tools.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{tools: make(map[string]Tool, len(tools)), logger: opts.Logger}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds t. Empty and duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool registry: tool must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool registry: duplicate tool %q", t.Name())
	}

	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())

	return nil
}

// Resolve returns the tool registered under name or core.ErrToolNotFound.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrToolNotFound, name)
	}

	return t, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)

	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Definitions exposes the registered tools to a model in registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// Execute runs one tool call and always produces a ToolResult. Unknown
// tools, undecodable arguments, tool errors and panics become failed
// results; they never escape as errors.
func (r *Registry) Execute(tc *core.ToolContext, call core.ToolCall) core.ToolResult {
	logger := tc.Logger()
	start := time.Now()

	var (
		result any
		err    error
	)

	func() { // panic safety
		defer func() {
			if rec := recover(); rec != nil {
				err = panicError(call.Name, rec)
				logger.Error("tool.call.panic", "tool", call.Name, "fc_id", call.ID, "recover", rec)
			}
		}()

		result, err = r.execute(tc, call)
	}()

	if sl, ok := logger.(*logging.StructuredLogger); ok {
		sl.LogToolCall(call.Name, time.Since(start), err == nil, err)
	} else {
		logger.Info("tool.call.executed", "tool", call.Name, "fc_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
	}

	if err != nil {
		return core.NewToolFailure(call, err)
	}

	return core.NewToolSuccess(call, result)
}

// execute centralizes tool lookup, argument decoding & execution.
func (r *Registry) execute(tc *core.ToolContext, call core.ToolCall) (any, error) {
	impl, err := r.Resolve(call.Name)
	if err != nil {
		return nil, &ToolError{Tool: call.Name, Message: "tool is not registered", Code: CodeNotFound, Err: err}
	}

	var argMap map[string]any
	if call.Arguments == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(call.Arguments), &argMap); err != nil {
		return nil, &ToolError{Tool: call.Name, Message: fmt.Sprintf("failed to unmarshal args: %v", err), Code: CodeInvalidArguments, Err: err}
	}

	if argMap == nil { // literal "null"
		argMap = map[string]any{}
	}

	return impl.Call(tc, argMap)
}

// panicError converts a recovered panic value to a ToolError.
func panicError(tool string, r any) error {
	return &ToolError{
		Tool:    tool,
		Message: fmt.Sprintf("panic recovered: %v", r),
		Code:    CodePanic,
		Details: string(debug.Stack()),
	}
}
