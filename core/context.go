package core

import "context"

type taskKey struct{}

// WithTask returns a context carrying the task package being executed. Action
// handlers that need provenance (the manager's delegation actions) read it
// back with TaskFromContext.
func WithTask(ctx context.Context, t *TaskPackage) context.Context {
	return context.WithValue(ctx, taskKey{}, t)
}

// TaskFromContext returns the task package stored by WithTask, or nil.
func TaskFromContext(ctx context.Context) *TaskPackage {
	t, _ := ctx.Value(taskKey{}).(*TaskPackage)
	return t
}
