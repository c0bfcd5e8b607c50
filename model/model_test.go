package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentlite/core"
)

// -------------------- ScriptedClient Tests --------------------

func TestScriptedClient_PlaysStepsInOrder(t *testing.T) {
	boom := &core.ModelUnavailableError{Provider: "scripted"}
	c := NewScriptedClient(Reply("one"), Fail(boom), Reply("two"))

	resp, err := c.Complete(context.Background(), Request{Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Text)

	_, err = c.Complete(context.Background(), Request{Task: "t"})
	assert.ErrorIs(t, err, boom)

	resp, err = c.Complete(context.Background(), Request{Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, "two", resp.Text)

	_, err = c.Complete(context.Background(), Request{Task: "t"})
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Equal(t, 4, c.Calls())
	assert.Equal(t, 0, c.Remaining())
	assert.Equal(t, "scripted", InfoOf(c).Provider)
}

func TestScriptedClient_RecordsRequestCopies(t *testing.T) {
	c := NewScriptedReplies("ok")
	turns := []core.Turn{core.ModelTurn("a")}

	_, err := c.Complete(context.Background(), Request{Task: "t", Turns: turns})
	require.NoError(t, err)
	turns[0].Content = "changed"

	reqs := c.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "a", reqs[0].Turns[0].Content)
}

func TestScriptedClient_CancelledContext(t *testing.T) {
	c := NewScriptedReplies("never")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Calls())
	assert.Equal(t, 1, c.Remaining())
}

func TestFuncClient(t *testing.T) {
	c := FuncClient(func(_ context.Context, req Request) (Response, error) {
		return Response{Text: "echo: " + req.Task}, nil
	})

	resp, err := c.Complete(context.Background(), Request{Task: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Text)
	assert.Equal(t, Info{}, InfoOf(c))
	assert.Equal(t, 0, resp.Tokens())
}

// -------------------- Messages Tests --------------------

func TestMessages_FoldsTurns(t *testing.T) {
	req := Request{
		Task: "What is 2+2?",
		Turns: []core.Turn{
			core.ModelTurn(`Action: calculator(expr="2+2")`),
			core.ActionTurn(`calculator(expr="2+2")`),
			core.ObservationTurn("4"),
			core.ModelTurn("Final Answer: 4"),
		},
	}

	msgs := Messages(req)
	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Role: RoleUser, Content: "What is 2+2?"}, msgs[0])
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, Message{Role: RoleUser, Content: "Action: calculator(expr=\"2+2\")\nObservation: 4"}, msgs[2])
	assert.Equal(t, RoleAssistant, msgs[3].Role)
}

func TestMessages_ParseFailureObservationMergesWithTask(t *testing.T) {
	msgs := Messages(Request{Task: "task", Turns: []core.Turn{core.ObservationTurn("bad format")}})

	require.Len(t, msgs, 1)
	assert.Equal(t, "task\nObservation: bad format", msgs[0].Content)
}

// -------------------- Error Classification Tests --------------------

func TestClassifyError(t *testing.T) {
	base := errors.New("boom")

	var unavailable *core.ModelUnavailableError
	var timeout *core.ModelTimeoutError

	err := ClassifyError("openai", http.StatusTooManyRequests, base)
	require.ErrorAs(t, err, &unavailable)
	assert.True(t, unavailable.RateLimited)

	err = ClassifyError("openai", http.StatusBadGateway, base)
	require.ErrorAs(t, err, &unavailable)
	assert.False(t, unavailable.RateLimited)

	err = ClassifyError("openai", 0, base)
	assert.ErrorAs(t, err, &unavailable)

	err = ClassifyError("anthropic", 0, fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.ErrorAs(t, err, &timeout)

	err = ClassifyError("anthropic", http.StatusGatewayTimeout, base)
	assert.ErrorAs(t, err, &timeout)

	err = ClassifyError("anthropic", http.StatusUnauthorized, base)
	assert.False(t, core.IsRetryable(err))
	assert.ErrorIs(t, err, base)

	assert.Same(t, context.Canceled, ClassifyError("openai", 0, context.Canceled))
	assert.NoError(t, ClassifyError("openai", 500, nil))
}

// -------------------- RateLimited Tests --------------------

func TestRateLimited_PassesThrough(t *testing.T) {
	c := RateLimited(NewScriptedReplies("a", "b"), rate.Inf, 1)

	for _, want := range []string{"a", "b"} {
		resp, err := c.Complete(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Text)
	}
	assert.Equal(t, "scripted", c.Info().Provider)
}

func TestRateLimited_DeadlineBecomesTimeout(t *testing.T) {
	c := RateLimited(NewScriptedReplies("a", "b"), rate.Every(time.Hour), 1)

	_, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Complete(ctx, Request{})
	var timeout *core.ModelTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.True(t, core.IsRetryable(err))
}
