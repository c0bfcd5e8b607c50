// Package model defines the provider-agnostic contract between agents and
// language models, plus helpers for tests and wiring.
//
// Agents drive a text protocol: the model receives instructions, the task
// header and the memory turns, and returns plain text which the agent parses
// into a final answer or an action call. Providers (e.g. OpenAI, Anthropic)
// implement Client so that agents remain decoupled from vendor SDKs.
//
// Transport failures are mapped onto the core error taxonomy:
// *core.ModelUnavailableError (5xx, connection errors, 429 with RateLimited)
// and *core.ModelTimeoutError (deadline exceeded). Agents retry both.
package model
