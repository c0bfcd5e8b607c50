// Package action implements the action subsystem that lets agents invoke
// named capabilities with schema validated parameters:
//
//   - Action / FunctionAction: the handler contract and a func adapter
//   - Schema: an ordered parameter list with validation and type coercion
//   - Registry: the catalog of actions, sealed before execution starts
//   - Executor: validates a requested call and invokes the handler, turning
//     every failure into a core.Observation instead of a control-flow error
//
// It also ships the built-in think, plan and finish actions.
package action
