package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/tripmesh/logging"
)

// ToolContext provides a constrained surface for tool implementations
// invoked by the orchestration graph: cancellation, correlation identifiers
// and a logger pre-bound to the call.
type ToolContext struct {
	ctx            context.Context
	invocationID   string
	functionCallID string
	toolName       string
	logger         logging.Logger
}

// NewToolContext constructs a tool context for one call within an invocation.
// A nil logger is replaced by a NoOpLogger.
func NewToolContext(ctx context.Context, invocationID string, call ToolCall, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ToolContext{
		ctx:            ctx,
		invocationID:   invocationID,
		functionCallID: call.ID,
		toolName:       call.Name,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// InvocationID returns the identifier of the owning graph invocation.
func (tc *ToolContext) InvocationID() string { return tc.invocationID }

// FunctionCallID returns the call ID correlating request and result.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the requested tool name.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}
