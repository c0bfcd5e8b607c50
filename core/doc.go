// Package core provides the foundational domain types and interfaces shared by
// every agentlite package:
//
//   - TaskPackage (the unit of work passed between agents, with its lifecycle)
//   - Turn and Observation (the entries of an agent's reasoning log)
//   - Agent (the capability interface implemented by leaf agents and managers)
//   - The error taxonomy surfaced as observations or terminal diagnostics
//   - IterationBudget (the cap on reasoning/acting cycles of a single run)
//
// The package intentionally keeps implementation concerns (model providers,
// action execution, delegation) out of scope, exposing small types that the
// agent, action, memory and engine packages build on.
package core
