package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentlite/archive"
	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/logging"
)

// ErrTaskNotFound is returned by Cancel for ids that are not running.
var ErrTaskNotFound = errors.New("task not found")

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentInvocations limits the number of top-level tasks that run
	// simultaneously. Further submissions wait for a free slot. Set to 0 for
	// unlimited.
	MaxConcurrentInvocations int
}

// DefaultConfig provides the default engine configuration.
//
// Configuration values:
//   - MaxConcurrentInvocations: 10
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := New(func(o *Options) {
//	    o.Config.MaxConcurrentInvocations = 50
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Archive stores every top-level task package once it is terminal.
	// Defaults to an in-memory store.
	Archive archive.Store

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger

	// Callbacks are registered on the engine's CallbackManager.
	Callbacks []Callback
}

// Engine accepts top-level task submissions and routes them to registered
// agents by name.
//
// Core Responsibilities:
//   - Agent Registry: thread-safe registration and lookup of named agents
//   - Task Submission: sync and async execution with a terminal TaskPackage
//   - Admission Control: bounded concurrent tasks via a weighted semaphore
//   - Cancellation: running tasks can be cancelled by task id
//   - Archiving: terminal task packages are stored for later inspection
//
// Concurrency Model:
//   - Thread-safe agent registration and lookup via RWMutex
//   - One goroutine per submitted task with cancellation propagation
//   - Delegated child tasks run inside their manager's slot
type Engine struct {
	archive   archive.Store
	logger    logging.Logger
	callbacks *CallbackManager

	config Config
	sem    *semaphore.Weighted // nil means unlimited

	agents map[string]core.Agent
	mu     sync.RWMutex

	active   map[string]context.CancelFunc
	activeMu sync.Mutex
	wg       sync.WaitGroup
}

// New creates a new Engine instance with sensible defaults and optional
// configuration.
//
// Default Services:
//   - Archive: in-memory task archive
//   - Logger: no-op logger
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:  DefaultConfig,
		Archive: archive.NewInMemoryStore(),
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		archive:   opts.Archive,
		logger:    logging.OrNoOp(opts.Logger),
		callbacks: NewCallbackManager(),
		config:    opts.Config,
		agents:    make(map[string]core.Agent),
		active:    make(map[string]context.CancelFunc),
	}
	if opts.Config.MaxConcurrentInvocations > 0 {
		e.sem = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentInvocations))
	}
	for _, cb := range opts.Callbacks {
		e.callbacks.RegisterCallback(cb)
	}

	return e
}

// Register adds agents to the registry. An agent registered under an
// existing name replaces the previous one.
func (e *Engine) Register(agents ...core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range agents {
		e.agents[a.Name()] = a
	}
}

// Agent returns the registered agent called name or *core.UnknownAgentError.
func (e *Engine) Agent(name string) (core.Agent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if a, ok := e.agents[name]; ok {
		return a, nil
	}
	return nil, &core.UnknownAgentError{Name: name, Available: e.namesLocked()}
}

// Names returns the registered agent names in lexical order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.namesLocked()
}

func (e *Engine) namesLocked() []string {
	out := make([]string, 0, len(e.agents))
	for n := range e.agents {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Callbacks returns the callback manager of the engine.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Archive returns the store holding terminal top-level tasks.
func (e *Engine) Archive() archive.Store { return e.archive }

// Invoke submits instruction to the named agent and blocks until the task
// package is terminal. The error only reports an unknown agent; the outcome
// of the task is recorded on the returned package.
func (e *Engine) Invoke(ctx context.Context, agentName, instruction string) (*core.TaskPackage, error) {
	_, done, err := e.InvokeAsync(ctx, agentName, instruction)
	if err != nil {
		return nil, err
	}
	return <-done, nil
}

// InvokeAsync submits instruction to the named agent and returns immediately
// with the task id and a channel that yields the terminal task package once.
//
// The task runs under ctx: cancelling ctx or calling Cancel with the returned
// id cancels the agent cooperatively. A task cancelled while waiting for
// admission fails without ever starting.
func (e *Engine) InvokeAsync(ctx context.Context, agentName, instruction string) (string, <-chan *core.TaskPackage, error) {
	agent, err := e.Agent(agentName)
	if err != nil {
		return "", nil, err
	}

	task := core.NewTaskPackage(instruction, core.UserOriginator)
	runCtx, cancel := context.WithCancel(ctx)

	e.activeMu.Lock()
	e.active[task.ID] = cancel
	e.activeMu.Unlock()

	done := make(chan *core.TaskPackage, 1)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			cancel()
			e.activeMu.Lock()
			delete(e.active, task.ID)
			e.activeMu.Unlock()
			done <- task
			close(done)
		}()

		e.run(runCtx, agent, task)
	}()

	e.logger.Debug("engine.task.submitted", "agent", agentName, "task_id", task.ID)

	return task.ID, done, nil
}

func (e *Engine) run(ctx context.Context, agent core.Agent, task *core.TaskPackage) {
	start := time.Now()

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.fail(task, err)
			e.finish(ctx, agent, task, start)
			return
		}
		defer e.sem.Release(1)
	}

	cc := &CallbackContext{Task: task, Agent: agent.Name(), CallbackType: CallbackBeforeTask}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTask, cc); err != nil {
		e.fail(task, err)
		e.finish(ctx, agent, task, start)
		return
	}

	if err := agent.Run(ctx, task); err != nil {
		e.logger.Warn("engine.task.rejected", "agent", agent.Name(), "task_id", task.ID, "error", err.Error())
	}
	if !task.IsTerminal() {
		e.fail(task, fmt.Errorf("agent %q returned without closing the task", agent.Name()))
	}

	e.finish(ctx, agent, task, start)
}

func (e *Engine) fail(task *core.TaskPackage, cause error) {
	if err := task.Fail(cause); err != nil {
		e.logger.Error("engine.task.unresolved", "task_id", task.ID, "error", err.Error())
	}
}

func (e *Engine) finish(ctx context.Context, agent core.Agent, task *core.TaskPackage, start time.Time) {
	if e.archive != nil {
		if err := e.archive.Save(task); err != nil {
			e.logger.Warn("engine.archive.failed", "task_id", task.ID, "error", err.Error())
		}
	}

	cc := &CallbackContext{Task: task, Agent: agent.Name(), CallbackType: CallbackAfterTask, Elapsed: time.Since(start)}
	if err := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackAfterTask, cc); err != nil {
		e.logger.Warn("engine.callback.failed", "task_id", task.ID, "error", err.Error())
	}

	args := []any{"agent", agent.Name(), "task_id", task.ID, "status", string(task.Status()), "duration", time.Since(start)}
	if err := task.Err(); err != nil {
		args = append(args, "kind", core.ErrorKind(err), "error", err.Error())
	}
	e.logger.Info("engine.task.finished", args...)
}

// Cancel cancels the running task with the given id.
func (e *Engine) Cancel(taskID string) error {
	e.activeMu.Lock()
	cancel, ok := e.active[taskID]
	e.activeMu.Unlock()

	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	cancel()
	return nil
}

// Active returns the ids of tasks that have been submitted and are not
// terminal yet.
func (e *Engine) Active() []string {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	out := make([]string, 0, len(e.active))
	for id := range e.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Shutdown cancels every running task and waits until all of them are
// terminal or ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.activeMu.Lock()
	for _, cancel := range e.active {
		cancel()
	}
	e.activeMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
