package core

import "context"

// Agent defines the capability every runnable agent exposes. Leaf agents and
// managers are variants behind this single interface; rosters and the engine
// select them by Name, never by concrete type.
//
// Implementations must:
//   - Drive the given TaskPackage to a terminal status (Completed or Failed)
//   - Respect context cancellation at their loop boundaries
//   - Never share their working memory with other agents
//
// The returned error only reports that the task could not be started (for
// example because it was not Pending). Every failure after the task started
// is recorded on the TaskPackage itself.
type Agent interface {
	Name() string
	Description() string
	Run(ctx context.Context, task *TaskPackage) error
}

// UserOriginator is the originator recorded on top-level task packages
// submitted by external callers.
const UserOriginator = "user"
