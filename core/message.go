package core

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Message.
type Role string

const (
	// RoleUser marks the traveller's query.
	RoleUser Role = "user"
	// RoleAssistant marks model output (answers and tool call requests).
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a tool execution.
	RoleTool Role = "tool"
)

// ToolCall describes a tool invocation request emitted by the model.
type ToolCall struct {
	ID        string `json:"id"`                  // Correlates the request with its ToolResult
	Name      string `json:"name"`                // Tool name as registered
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument object
}

// ToolStatus reports whether a tool execution succeeded.
type ToolStatus string

const (
	// ToolStatusOK marks a successful execution.
	ToolStatusOK ToolStatus = "ok"
	// ToolStatusError marks a failed execution (unknown tool, bad arguments, tool error).
	ToolStatusError ToolStatus = "error"
)

// ToolResult captures the outcome of exactly one ToolCall.
type ToolResult struct {
	CallID string     `json:"call_id"`          // Matches originating ToolCall.ID
	Name   string     `json:"name"`             // Tool name as requested
	Status ToolStatus `json:"status"`           // ok | error
	Output any        `json:"output,omitempty"` // Successful result (any JSON-serializable shape)
	Error  string     `json:"error,omitempty"`  // Populated on failure
}

// Failed reports whether the execution failed.
func (r ToolResult) Failed() bool { return r.Status == ToolStatusError }

// Content renders the result as the text handed back to a model. Failures
// are rendered as a JSON object with an "error" key so the model can see
// and recover from them.
func (r ToolResult) Content() string {
	if r.Failed() {
		b, _ := json.Marshal(map[string]string{"error": r.Error})
		return string(b)
	}

	return Stringify(r.Output)
}

// NewToolSuccess builds a successful ToolResult for call.
func NewToolSuccess(call ToolCall, output any) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Status: ToolStatusOK, Output: output}
}

// NewToolFailure builds a failed ToolResult for call carrying err's message.
func NewToolFailure(call ToolCall, err error) ToolResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	return ToolResult{CallID: call.ID, Name: call.Name, Status: ToolStatusError, Error: msg}
}

// Message is one turn of the conversation.
type Message struct {
	Role       Role        `json:"role"`
	Text       string      `json:"text,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// NewAssistantMessage creates an assistant message with optional tool calls.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Text: text, ToolCalls: calls}
}

// NewToolMessage wraps a ToolResult as a tool-role message.
func NewToolMessage(result ToolResult) Message {
	r := result
	return Message{Role: RoleTool, Text: r.Content(), ToolResult: &r}
}

// HasToolCalls reports whether the message requests tool executions.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// clone returns a deep copy so callers cannot reach into an appended message.
func (m Message) clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}

	if m.ToolResult != nil {
		r := *m.ToolResult
		c.ToolResult = &r
	}

	return c
}

// Stringify renders an arbitrary value as text: strings pass through,
// everything else is JSON encoded with a fmt fallback.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}

	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}

	return fmt.Sprintf("%v", v)
}
