// Package agentlite provides a high-level façade over the engine, the task
// archive and logging, enabling rapid construction of hierarchical
// multi-agent systems. Most applications interact with this package by:
//  1. Creating an AgentLite via New() or FromConfig()
//  2. Registering leaf agents (agent.New) and managers (agent.NewManager)
//  3. Invoking agents synchronously (Invoke) or asynchronously (InvokeAsync)
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing.
package agentlite

import (
	"context"

	"github.com/hupe1980/agentlite/archive"
	"github.com/hupe1980/agentlite/config"
	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/engine"
	"github.com/hupe1980/agentlite/logging"
)

// Options configures the AgentLite instance.
type Options struct {
	// EngineConfig holds admission control settings.
	EngineConfig engine.Config

	// Archive receives every terminal top-level task package. Defaults to an
	// in-memory store.
	Archive archive.Store

	// Logger defaults to the NoOp logger if nil.
	Logger logging.Logger

	// Callbacks run before and after every submitted task.
	Callbacks []engine.Callback
}

// AgentLite is the high-level façade aggregating the engine and its services.
type AgentLite struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new AgentLite instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentLite {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Archive:      archive.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Archive = opts.Archive
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})

	return &AgentLite{opts: opts, engine: e}
}

// FromConfig creates an AgentLite whose engine settings and logger come from
// cfg. optFns are applied afterwards.
func FromConfig(cfg config.Config, optFns ...func(o *Options)) (*AgentLite, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}

	return New(append([]func(o *Options){func(o *Options) {
		o.EngineConfig = cfg.EngineConfig()
		o.Logger = logger
	}}, optFns...)...), nil
}

// Register adds agents to the underlying engine.
func (l *AgentLite) Register(agents ...core.Agent) { l.engine.Register(agents...) }

// Engine returns the underlying engine.
func (l *AgentLite) Engine() *engine.Engine { return l.engine }

// Archive returns the store of terminal top-level tasks.
func (l *AgentLite) Archive() archive.Store { return l.opts.Archive }

// Logger returns the configured logger.
func (l *AgentLite) Logger() logging.Logger { return logging.OrNoOp(l.opts.Logger) }

// Invoke submits instruction to the named agent and blocks until the task
// package is terminal.
func (l *AgentLite) Invoke(ctx context.Context, agentName, instruction string) (*core.TaskPackage, error) {
	return l.engine.Invoke(ctx, agentName, instruction)
}

// InvokeAsync submits instruction and returns the task id together with a
// channel yielding the terminal task package.
func (l *AgentLite) InvokeAsync(ctx context.Context, agentName, instruction string) (string, <-chan *core.TaskPackage, error) {
	return l.engine.InvokeAsync(ctx, agentName, instruction)
}

// Cancel cancels the running task with the given id.
func (l *AgentLite) Cancel(taskID string) error { return l.engine.Cancel(taskID) }

// Shutdown cancels all running tasks and waits for them to terminate.
func (l *AgentLite) Shutdown(ctx context.Context) error { return l.engine.Shutdown(ctx) }
