package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hupe1980/agentlite/action"
	"github.com/hupe1980/agentlite/archive"
	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/internal/testutil"
	"github.com/hupe1980/agentlite/logging"
	"github.com/hupe1980/agentlite/metrics"
	"github.com/hupe1980/agentlite/model"
)

func newCalcMember(t *testing.T) *Agent {
	t.Helper()
	return newCalcAgent(t, model.NewScriptedReplies(`Action: calculator(expr="2+2")`, "Final Answer: 4"),
		func(o *Options) { o.Profile.Description = "Evaluates arithmetic." })
}

func newShoutMember(t *testing.T, replies ...string) *Agent {
	t.Helper()
	a, err := New("shouter", model.NewScriptedReplies(replies...), func(o *Options) {
		o.Actions = []action.Action{testutil.Echo()}
		o.Profile.Description = "Repeats text loudly."
	})
	require.NoError(t, err)
	return a
}

func newManager(t *testing.T, client model.Client, roster *Roster, optFns ...func(o *ManagerOptions)) *Manager {
	t.Helper()
	m, err := NewManager("lead", client, roster, optFns...)
	require.NoError(t, err)
	return m
}

func runManager(t *testing.T, m *Manager, ctx context.Context, instruction string) (*core.TaskPackage, []core.Turn) {
	t.Helper()
	task := core.NewTaskPackage(instruction, core.UserOriginator)
	mem := m.NewMemory(task)
	require.NoError(t, m.Execute(ctx, task, mem))
	return task, mem.Turns()
}

// -------------------- Delegation Tests --------------------

func TestManager_Delegate(t *testing.T) {
	roster, err := NewRoster(newCalcMember(t))
	require.NoError(t, err)
	store := archive.NewInMemoryStore()

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="calc", instruction="What is 2+2?")`,
		"Final Answer: The team says 4",
	)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Archive = store })

	task, turns := runManager(t, m, context.Background(), "Ask the team for 2+2")

	assert.Equal(t, core.StatusCompleted, task.Status())
	assert.Equal(t, "The team says 4", task.Result())

	require.Len(t, turns, 4)
	assert.Equal(t, core.ObservationTurn("4"), turns[2])

	children := task.Children()
	require.Len(t, children, 1)
	child := children[0]
	assert.Equal(t, core.StatusCompleted, child.Status())
	assert.Equal(t, "4", child.Result())
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, task.ID, child.ParentID)
	assert.Equal(t, "lead", child.Originator)
	assert.Equal(t, "calc", child.Assignee())

	rec, err := store.Get(child.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, rec.Status)

	req := client.Requests()[0]
	assert.Contains(t, req.Task, "Team members you can delegate to:\n- calc: Evaluates arithmetic.")
	assert.Contains(t, req.Instructions, "delegate(agent_name: string, instruction: string)")
	assert.Contains(t, req.Instructions, "delegate_parallel(tasks: array)")
}

func TestManager_UnknownAgent(t *testing.T) {
	roster, err := NewRoster(newCalcMember(t))
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="wordbot", instruction="Count the words")`,
		"Final Answer: Nobody on the team can count words.",
	)
	m := newManager(t, client, roster)

	task, turns := runManager(t, m, context.Background(), "Count the words in 'hello world'")

	assert.Equal(t, core.StatusCompleted, task.Status())
	assert.Empty(t, task.Children(), "no child is created for an unknown agent")

	require.Len(t, turns, 4)
	assert.Contains(t, turns[2].Content, "Error [unknown_agent]")
	assert.Contains(t, turns[2].Content, "calc")
}

func TestManager_DepthExceeded(t *testing.T) {
	roster, err := NewRoster(newCalcMember(t))
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="calc", instruction="2+2")`,
		"Final Answer: I will do it myself: 4",
	)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Delegation.MaxDepth = 0 })

	task, turns := runManager(t, m, context.Background(), "2+2")

	assert.Equal(t, core.StatusCompleted, task.Status())
	assert.Empty(t, task.Children())
	assert.Contains(t, turns[2].Content, "Error [delegation_depth_exceeded]")
}

func TestManager_SelfDelegationTerminatesAtMaxDepth(t *testing.T) {
	client := model.FuncClient(func(_ context.Context, req model.Request) (model.Response, error) {
		if n := len(req.Turns); n > 0 && req.Turns[n-1].Role == core.RoleObservation {
			return model.Response{Text: "Final Answer: " + req.Turns[n-1].Content}, nil
		}
		return model.Response{Text: `Action: delegate(agent_name="lead", instruction="go deeper")`}, nil
	})

	roster, err := NewRoster()
	require.NoError(t, err)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Delegation.MaxDepth = 2 })
	require.NoError(t, roster.Add(m))

	task, _ := runManager(t, m, context.Background(), "recurse")

	assert.Equal(t, core.StatusCompleted, task.Status())
	assert.Contains(t, task.Result(), "delegation_depth_exceeded")

	deepest := 0
	var walk func(*core.TaskPackage)
	walk = func(tp *core.TaskPackage) {
		assert.True(t, tp.IsTerminal())
		if tp.Depth > deepest {
			deepest = tp.Depth
		}
		for _, c := range tp.Children() {
			walk(c)
		}
	}
	walk(task)
	assert.Equal(t, 2, deepest)
}

func TestManager_DelegationTimeout(t *testing.T) {
	member, err := New("sleeper", model.NewScriptedReplies("Action: wait()"), func(o *Options) {
		o.Actions = []action.Action{testutil.Blocking("wait", nil)}
	})
	require.NoError(t, err)
	roster, err := NewRoster(member)
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="sleeper", instruction="take a nap")`,
		"Final Answer: the sleeper did not answer",
	)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Delegation.Timeout = 20 * time.Millisecond })

	task, turns := runManager(t, m, context.Background(), "wake me")

	assert.Equal(t, core.StatusCompleted, task.Status())
	assert.Contains(t, turns[2].Content, "Error [delegation_timeout]")

	children := task.Children()
	require.Len(t, children, 1)
	assert.Equal(t, core.StatusFailed, children[0].Status())
}

// watchedAgent reports when Run returned.
type watchedAgent struct {
	core.Agent
	returned chan struct{}
}

func (w watchedAgent) Run(ctx context.Context, task *core.TaskPackage) error {
	defer close(w.returned)
	return w.Agent.Run(ctx, task)
}

func TestManager_DelegationTimeoutIgnoredByMember(t *testing.T) {
	release := make(chan struct{})
	stubborn := model.FuncClient(func(context.Context, model.Request) (model.Response, error) {
		<-release
		return model.Response{Text: "Final Answer: late"}, nil
	})
	inner, err := New("stubborn", stubborn)
	require.NoError(t, err)
	member := watchedAgent{Agent: inner, returned: make(chan struct{})}
	roster, err := NewRoster(member)
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="stubborn", instruction="answer eventually")`,
		"Final Answer: gave up waiting",
	)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Delegation.Timeout = 30 * time.Millisecond })

	start := time.Now()
	task, turns := runManager(t, m, context.Background(), "ask stubborn")
	elapsed := time.Since(start)
	close(release)

	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, core.StatusCompleted, task.Status())
	assert.Equal(t, "gave up waiting", task.Result())
	assert.Contains(t, turns[2].Content, "Error [delegation_timeout]")

	children := task.Children()
	require.Len(t, children, 1)
	var timeout *core.DelegationTimeoutError
	require.ErrorAs(t, children[0].Err(), &timeout)
	assert.Equal(t, "stubborn", timeout.Agent)

	select {
	case <-member.returned:
	case <-time.After(time.Second):
		t.Fatal("member did not return after release")
	}
	assert.Equal(t, core.StatusFailed, children[0].Status(), "late answer is discarded")
	assert.Empty(t, children[0].Result())
}

func TestManager_FailureChain(t *testing.T) {
	boom := errors.New("invalid request")
	member, err := New("calc", model.NewScriptedClient(model.Fail(boom)))
	require.NoError(t, err)
	roster, err := NewRoster(member)
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="calc", instruction="2+2")`,
		"Final Answer: never reached",
	)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Config.MaxIterations = 1 })

	task, turns := runManager(t, m, context.Background(), "2+2")

	assert.Equal(t, core.StatusFailed, task.Status())
	assert.Contains(t, turns[2].Content, "Error [delegation_failed]")

	var failed *core.DelegationFailedError
	require.ErrorAs(t, task.Err(), &failed)
	assert.Equal(t, "calc", failed.Agent)
	assert.ErrorIs(t, task.Err(), boom)

	diag := task.Diagnostic()
	assert.True(t, strings.HasPrefix(diag, "[budget_exceeded]"), diag)
	assert.Contains(t, diag, "\n[delegation_failed] delegation to \"calc\"")
	assert.Contains(t, diag, "\n  [error] invalid request")
}

func TestManager_CancellationReachesChildren(t *testing.T) {
	member, err := New("sleeper", model.NewScriptedReplies("Action: wait()"), func(o *Options) {
		o.Actions = []action.Action{testutil.Blocking("wait", nil)}
	})
	require.NoError(t, err)
	roster, err := NewRoster(member)
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="sleeper", instruction="nap")`,
		"Final Answer: never",
	)
	m := newManager(t, client, roster)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	task, _ := runManager(t, m, ctx, "x")

	assert.Equal(t, core.StatusFailed, task.Status())
	assert.ErrorIs(t, task.Err(), context.DeadlineExceeded)

	children := task.Children()
	require.Len(t, children, 1)
	assert.Equal(t, core.StatusFailed, children[0].Status())
	assert.ErrorIs(t, children[0].Err(), context.DeadlineExceeded)
}

func TestManager_LogsCarryTaskPosition(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewZapAdapter(zap.New(observed))

	member := newCalcAgent(t, model.NewScriptedReplies(`Action: calculator(expr="2+2")`, "Final Answer: 4"),
		func(o *Options) { o.Logger = logger })
	roster, err := NewRoster(member)
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate(agent_name="calc", instruction="2+2")`,
		"Final Answer: 4",
	)
	m := newManager(t, client, roster, func(o *ManagerOptions) { o.Logger = logger })

	task, _ := runManager(t, m, context.Background(), "2+2")
	require.Equal(t, core.StatusCompleted, task.Status())
	child := task.Children()[0]

	require.NotEmpty(t, logs.All())
	for _, e := range logs.All() {
		assert.Contains(t, e.ContextMap(), "task_id", e.Message)
		assert.Contains(t, e.ContextMap(), "depth", e.Message)
	}

	calc := logs.FilterMessage("action.call.completed").FilterField(zap.String("action", "calculator")).All()
	require.Len(t, calc, 1)
	assert.Equal(t, child.ID, calc[0].ContextMap()["task_id"])
	assert.Equal(t, task.ID, calc[0].ContextMap()["parent_id"])
	assert.Equal(t, int64(1), calc[0].ContextMap()["depth"])

	deleg := logs.FilterMessage("manager.delegate.completed").All()
	require.Len(t, deleg, 1)
	assert.Equal(t, "lead", deleg[0].ContextMap()["agent"])
	assert.Equal(t, task.ID, deleg[0].ContextMap()["task_id"])

	modelCalls := logs.FilterMessage("model.call.completed").All()
	require.Len(t, modelCalls, 4)
}

// -------------------- Parallel Delegation Tests --------------------

func TestManager_DelegateParallel(t *testing.T) {
	for _, limit := range []int{0, 1} {
		roster, err := NewRoster(newCalcMember(t), newShoutMember(t, `Action: shout(text="hi")`, "Final Answer: HI"))
		require.NoError(t, err)
		reg := prometheus.NewRegistry()

		client := model.NewScriptedReplies(
			`Action: delegate_parallel(tasks=[{"agent_name": "calc", "instruction": "2+2"}, {"agent_name": "shouter", "instruction": "say hi"}, {"agent_name": "ghost", "instruction": "boo"}])`,
			"Final Answer: done",
		)
		m := newManager(t, client, roster, func(o *ManagerOptions) {
			o.Delegation.MaxParallel = limit
			o.Metrics = metrics.NewCollector(reg)
		})

		task, turns := runManager(t, m, context.Background(), "fan out")

		assert.Equal(t, core.StatusCompleted, task.Status())
		require.Len(t, turns, 4)

		lines := strings.Split(turns[2].Content, "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "[1] calc: 4", lines[0])
		assert.Equal(t, "[2] shouter: HI", lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "[3] ghost: Error [unknown_agent]"), lines[2])

		assert.Len(t, task.Children(), 2)
		for _, c := range task.Children() {
			assert.Equal(t, core.StatusCompleted, c.Status())
			assert.Equal(t, 1, c.Depth)
		}

		n, err := promtest.GatherAndCount(reg, "agentlite_delegations_total")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
}

func TestManager_DelegateParallelInvalid(t *testing.T) {
	roster, err := NewRoster(newCalcMember(t))
	require.NoError(t, err)

	client := model.NewScriptedReplies(
		`Action: delegate_parallel(tasks=[])`,
		`Action: delegate_parallel(tasks=[{"agent_name": "calc"}])`,
		"Final Answer: gave up",
	)
	m := newManager(t, client, roster)

	task, turns := runManager(t, m, context.Background(), "x")

	assert.Equal(t, core.StatusCompleted, task.Status())
	require.Len(t, turns, 7)
	assert.Contains(t, turns[2].Content, "Error [invalid_parameters]")
	assert.Contains(t, turns[5].Content, "item 1")
	assert.Empty(t, task.Children())
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager("lead", model.NewScriptedReplies(), nil)
	require.Error(t, err)

	roster, err := NewRoster()
	require.NoError(t, err)
	_, err = NewManager("lead", model.NewScriptedReplies(), roster, func(o *ManagerOptions) { o.Delegation.MaxDepth = -1 })
	require.Error(t, err)

	_, err = NewManager("lead", model.NewScriptedReplies(), roster, func(o *ManagerOptions) {
		o.Actions = []action.Action{action.NewFunctionAction(DelegateActionName, "", action.Schema{}, nil)}
	})
	var dup *core.DuplicateActionError
	require.ErrorAs(t, err, &dup)
}
