// Package model defines the provider‑agnostic abstractions for interacting
// with language models inside the trip planner.
//
// Core goals:
//   - One synchronous Generate call per reasoning turn
//   - Normalize tool / function call representation (ToolDefinition, core.ToolCall)
//   - Classify provider failures as *core.ProviderError
//   - Facilitate lightweight scripting for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Groq, Gemini, Ollama) live in sub-packages
// and implement the Model interface so the orchestration graph stays
// decoupled from vendor SDKs.
package model
