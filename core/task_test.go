package core

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPackage_Lifecycle(t *testing.T) {
	task := NewTaskPackage("say hi", UserOriginator)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, StatusPending, task.Status())
	assert.Equal(t, 0, task.Depth)
	assert.Empty(t, task.ParentID)

	require.NoError(t, task.Start("greeter"))
	assert.Equal(t, StatusInProgress, task.Status())
	assert.Equal(t, "greeter", task.Assignee())

	require.NoError(t, task.Complete("hi"))
	assert.Equal(t, StatusCompleted, task.Status())
	assert.Equal(t, "hi", task.Result())
	assert.True(t, task.IsTerminal())
	assert.False(t, task.CompletedAt().IsZero())
	assert.Empty(t, task.Diagnostic())
}

func TestTaskPackage_TransitionsAreMonotonic(t *testing.T) {
	task := NewTaskPackage("x", UserOriginator)

	var transErr *InvalidTransitionError
	require.ErrorAs(t, task.Complete("too early"), &transErr)
	assert.Equal(t, StatusPending, transErr.From)
	assert.Equal(t, StatusCompleted, transErr.To)

	require.NoError(t, task.Start("a"))
	require.ErrorAs(t, task.Start("a"), &transErr)

	require.NoError(t, task.Fail(errors.New("boom")))
	require.ErrorAs(t, task.Complete("late"), &transErr)
	require.ErrorAs(t, task.Fail(errors.New("again")), &transErr)
	assert.Equal(t, StatusFailed, task.Status())
	assert.EqualError(t, task.Err(), "boom")
}

func TestTaskPackage_PendingMayFail(t *testing.T) {
	task := NewTaskPackage("x", UserOriginator)
	require.NoError(t, task.Fail(nil))
	assert.Equal(t, StatusFailed, task.Status())
	assert.Error(t, task.Err())
}

func TestTaskPackage_ChildrenMustResolveBeforeParentCloses(t *testing.T) {
	parent := NewTaskPackage("parent", UserOriginator)
	require.NoError(t, parent.Start("manager"))

	child := parent.NewChild("child work", "manager")
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, "manager", child.Originator)
	assert.Len(t, parent.Children(), 1)

	require.ErrorIs(t, parent.Complete("done"), ErrUnresolvedChildren)
	require.ErrorIs(t, parent.Fail(errors.New("x")), ErrUnresolvedChildren)

	require.NoError(t, child.Start("worker"))
	require.NoError(t, child.Complete("ok"))
	require.NoError(t, parent.Complete("done"))
}

func TestTaskPackage_AbortClosesOpenDescendants(t *testing.T) {
	root := NewTaskPackage("plan", UserOriginator)
	require.NoError(t, root.Start("lead"))
	child := root.NewChild("research", "lead")
	require.NoError(t, child.Start("researcher"))
	grandchild := child.NewChild("lookup", "researcher")
	require.NoError(t, grandchild.Start("searcher"))
	done := child.NewChild("summarize", "researcher")
	require.NoError(t, done.Start("writer"))
	require.NoError(t, done.Complete("summary"))

	stalled := errors.New("stalled")
	assert.True(t, child.Abort(stalled))

	assert.Equal(t, StatusFailed, child.Status())
	assert.Equal(t, StatusFailed, grandchild.Status())
	assert.ErrorIs(t, grandchild.Err(), stalled)
	assert.Equal(t, StatusCompleted, done.Status())

	assert.False(t, child.Abort(stalled), "already closed")
	assert.Error(t, child.Complete("late"))
	require.NoError(t, root.Complete("done"))
}

func TestTaskPackage_DiagnosticChain(t *testing.T) {
	root := NewTaskPackage("root", UserOriginator)
	require.NoError(t, root.Start("boss"))

	child := root.NewChild("sub", "boss")
	require.NoError(t, child.Start("mathbot"))
	require.NoError(t, child.Fail(&BudgetExceededError{Iterations: 3}))

	root.RecordChildFailure(&DelegationFailedError{Agent: "mathbot", TaskID: child.ID, Cause: child.Err()})
	require.NoError(t, root.Fail(&BudgetExceededError{Iterations: 5}))

	diag := root.Diagnostic()
	lines := strings.Split(diag, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[budget_exceeded] iteration budget exceeded after 5 iterations", lines[0])
	assert.Contains(t, lines[1], `[delegation_failed] delegation to "mathbot"`)
	assert.Equal(t, "  [budget_exceeded] iteration budget exceeded after 3 iterations", lines[2])

	var budget *BudgetExceededError
	assert.ErrorAs(t, root.Err(), &budget)
}

func TestTaskPackage_ConcurrentChildren(t *testing.T) {
	parent := NewTaskPackage("fan out", UserOriginator)
	require.NoError(t, parent.Start("manager"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := parent.NewChild("work", "manager")
			_ = c.Start("worker")
			_ = c.Complete("ok")
		}()
	}
	wg.Wait()

	assert.Len(t, parent.Children(), 20)
	require.NoError(t, parent.Complete("all done"))
}

func TestTaskPackage_IDUniqueness(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
