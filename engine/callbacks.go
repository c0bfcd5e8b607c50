package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/logging"
)

// CallbackType names a point in the life of a submitted task package.
type CallbackType string

const (
	// CallbackBeforeTask runs once the task was admitted and before its
	// agent starts it. An error fails the task and the agent never runs.
	CallbackBeforeTask CallbackType = "before_task"

	// CallbackAfterTask runs after the task reached a terminal status and
	// was archived. Errors are logged only.
	CallbackAfterTask CallbackType = "after_task"
)

// CallbackContext is what a callback sees of the task.
type CallbackContext struct {
	// Task is the top-level task package.
	Task *core.TaskPackage

	// Agent is the name the task was submitted to.
	Agent string

	CallbackType CallbackType

	// Elapsed is the time since the engine picked the task up, including
	// the wait for admission. It is zero for CallbackBeforeTask.
	Elapsed time.Duration
}

// Callback hooks into one lifecycle point of every submitted task.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// CallbackFunc is the signature of function callbacks.
type CallbackFunc func(ctx context.Context, cc *CallbackContext) error

// FunctionCallback adapts a CallbackFunc to Callback.
type FunctionCallback struct {
	typ CallbackType
	fn  CallbackFunc
}

// NewFunctionCallback creates a callback for typ from fn.
//
//	cb := engine.NewFunctionCallback(engine.CallbackAfterTask, func(ctx context.Context, cc *engine.CallbackContext) error {
//	    fmt.Println(cc.Task.ID, cc.Task.Status(), cc.Elapsed)
//	    return nil
//	})
func NewFunctionCallback(typ CallbackType, fn CallbackFunc) *FunctionCallback {
	return &FunctionCallback{typ: typ, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.typ }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager holds callbacks per lifecycle point and runs them in
// registration order. It is safe for concurrent use.
type CallbackManager struct {
	mu    sync.RWMutex
	hooks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty CallbackManager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{hooks: make(map[CallbackType][]Callback)}
}

// RegisterCallback appends cb to the callbacks of its lifecycle point.
func (cm *CallbackManager) RegisterCallback(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.hooks[cb.Type()] = append(cm.hooks[cb.Type()], cb)
}

// ExecuteCallbacks runs the callbacks registered for typ. The first error
// stops the run and is returned wrapped with typ.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, typ CallbackType, cc *CallbackContext) error {
	cm.mu.RLock()
	hooks := append([]Callback(nil), cm.hooks[typ]...)
	cm.mu.RUnlock()

	for _, cb := range hooks {
		if err := cb.Execute(ctx, cc); err != nil {
			return fmt.Errorf("%s callback: %w", typ, err)
		}
	}
	return nil
}

// LoggingCallback writes one entry per task. Failed tasks are logged at
// warn level with the error kind.
type LoggingCallback struct {
	typ    CallbackType
	logger logging.Logger
}

// NewLoggingCallback creates a LoggingCallback for typ.
func NewLoggingCallback(typ CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{typ: typ, logger: logging.OrNoOp(logger)}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.typ }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	t := cc.Task
	args := []any{"callback", string(c.typ), "agent", cc.Agent, "task_id", t.ID, "status", string(t.Status())}
	if cc.Elapsed > 0 {
		args = append(args, "elapsed", cc.Elapsed)
	}

	if err := t.Err(); err != nil {
		c.logger.Warn("engine.callback", append(args, "kind", core.ErrorKind(err), "error", err.Error())...)
		return nil
	}
	c.logger.Info("engine.callback", args...)
	return nil
}
