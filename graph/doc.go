// Package graph implements the per-request orchestration graph that drives
// the trip planner.
//
// A Graph is a small state machine with three states:
//
//	Reasoning    -> the model sees the whole conversation and either answers
//	                or requests tools
//	ToolDispatch -> every requested tool runs (bounded parallelism) and its
//	                result is appended in request order
//	Terminal     -> exactly one core.Outcome has been produced
//
// Graphs are built per request by a Builder, which resolves the provider
// selector and constructs a fresh model client. The tool registry is the only
// state shared between graphs and it is read-only.
package graph
