// Package core provides the foundational domain types shared by the
// trip-planning agent. It defines:
//
//   - Messages and the append-only Conversation owned by one invocation
//   - Tool call requests and their results
//   - The Outcome sealed union (Answer / Failure) terminating an invocation
//   - Typed errors (configuration, provider, step limit) used across packages
//   - ToolContext, the constrained surface handed to tool implementations
//
// The package keeps provider SDKs, tool implementations and orchestration out
// of scope so higher layers can depend on small, stable types.
package core
