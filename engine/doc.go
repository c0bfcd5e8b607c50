// Package engine implements task submission for agentlite.
//
// The Engine is the entry point for external callers: it keeps a registry of
// named agents (leaf agents and managers alike), wraps every submitted
// instruction in a top-level TaskPackage and drives it to a terminal status.
//
// # Core Responsibilities
//
// Agent Management:
//   - Thread-safe agent registry with name-based lookup
//   - Unknown names fail fast with *core.UnknownAgentError
//
// Task Orchestration:
//   - Synchronous (Invoke) and asynchronous (InvokeAsync) submission
//   - Bounded concurrency via golang.org/x/sync/semaphore
//   - Cancellation by task id and graceful Shutdown
//
// Service Integration:
//   - Terminal top-level tasks are saved to an archive.Store
//   - Callbacks run before and after every task
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Config.MaxConcurrentInvocations = 4
//	    o.Logger = logger
//	})
//	eng.Register(calc, lead)
//
//	task, err := eng.Invoke(ctx, "lead", "What is 2+2?")
//	if err != nil {
//	    return err // unknown agent
//	}
//	fmt.Println(task.Status(), task.Result())
//
// Delegated child tasks are not admitted separately; they run inside the slot
// of the top-level task that created them.
package engine
