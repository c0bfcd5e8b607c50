// Package agent contains the reasoning loop and the delegation layer built on
// top of it. The package focuses on three concerns:
//
//  1. The reasoning loop (Agent): prompt, model call, Parse, execute, observe
//  2. Response interpretation (Parse): final answers, action calls and
//     malformed output
//  3. Delegation (Manager, Roster): child task packages run on team members
//
// Execution Model:
//   - Run drives one TaskPackage to Completed or Failed with a fresh Memory
//   - Each iteration consumes one unit of the IterationBudget and asks the
//     model exactly once (plus retries of retryable model errors)
//   - Actions run through a sealed action.Executor; failures come back as
//     observations, never as loop errors
//   - A Manager's delegate action runs the child synchronously; its
//     delegate_parallel action fans out with errgroup and joins the results
//     in input order
//
// Agents are safe for concurrent use; per-task state lives in the TaskPackage
// and the Memory created for each run.
package agent
