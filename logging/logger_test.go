package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hupe1980/agentlite/core"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStructuredLogger_ContextAndKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	root := core.NewTaskPackage("plan", core.UserOriginator)
	child := root.NewChild("2+2", "boss")

	l.WithComponent("agent").WithTask("mathbot", child).WithContext("run", 7).
		Info("agent.run.start", "iterations", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "agent.run.start", lines[0]["msg"])
	assert.Equal(t, "agent", lines[0]["component"])
	assert.Equal(t, "mathbot", lines[0]["agent"])
	assert.Equal(t, child.ID, lines[0]["task_id"])
	assert.Equal(t, root.ID, lines[0]["parent_id"])
	assert.Equal(t, float64(1), lines[0]["depth"])
	assert.Equal(t, float64(7), lines[0]["run"])
	assert.Equal(t, float64(3), lines[0]["iterations"])
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestStructuredLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.LogActionCall("calculator", time.Millisecond, true, nil)
	l.LogDelegation("boss", "wordbot", 1, time.Second, false, &core.UnknownAgentError{Name: "wordbot"})
	l.LogLoopExecution("boss", 3, time.Second, false, &core.BudgetExceededError{Iterations: 3})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "action.call.completed", lines[0]["msg"])
	assert.Equal(t, "calculator", lines[0]["action"])
	assert.Equal(t, "manager.delegate.failed", lines[1]["msg"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "unknown_agent", lines[1]["kind"])
	assert.Equal(t, "agent.loop.failed", lines[2]["msg"])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "budget_exceeded", lines[2]["kind"])
}

func TestStructuredLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	_ = parent.WithContext("k", "v")

	parent.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["k"]
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"debug": LogLevelDebug, "INFO": LogLevelInfo, "warning": LogLevelWarn, "error": LogLevelError, "": LogLevelInfo} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestZapAdapter(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(observed))

	l.Info("action.call.success", "action", "calculator", "duration_ms", int64(3))
	l.Warn("dangling", "only-key")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "action.call.success", entries[0].Message)
	assert.Equal(t, "calculator", entries[0].ContextMap()["action"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["duration_ms"])
	assert.Equal(t, "only-key", entries[1].ContextMap()["!BADKEY"])
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	z := NewZapAdapter(nil)
	assert.Same(t, z, OrNoOp(z))
}

func TestEventHelpers_FallbackToKeyValues(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(observed))

	LogModelCall(l, "gpt", 12, time.Millisecond, nil)
	LogDelegation(l, "boss", "mathbot", 1, time.Millisecond, errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "model.call.completed", entries[0].Message)
	assert.Equal(t, "manager.delegate.failed", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "error", entries[1].ContextMap()["kind"])
}

func TestEventHelpers_UseStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	LogLoopExecution(l, "mathbot", 2, time.Millisecond, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "agent.loop.completed", lines[0]["msg"])
	assert.Equal(t, float64(2), lines[0]["iterations"])
}

func TestStructuredLogger_OutcomeRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelError, Format: "json", Output: &buf})

	l.LogActionCall("calculator", time.Millisecond, false, errors.New("division by zero"))
	l.LogModelCall("gpt", 0, time.Millisecond, true, nil)

	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestFromSlog(t *testing.T) {
	var buf bytes.Buffer
	l := FromSlog(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.WithComponent("engine").Debug("engine.task.submitted", "agent", "mathbot")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "mathbot", lines[0]["agent"])
}

type recordingLogger struct {
	NoOpLogger
	args [][]any
}

func (r *recordingLogger) Info(_ string, args ...any) { r.args = append(r.args, args) }

func TestForTask(t *testing.T) {
	root := core.NewTaskPackage("plan", core.UserOriginator)
	child := root.NewChild("2+2", "boss")

	t.Run("structured", func(t *testing.T) {
		var buf bytes.Buffer
		l := ForTask(NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}), "mathbot", child)
		l.Info("agent.run.start")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "agent", lines[0]["component"])
		assert.Equal(t, child.ID, lines[0]["task_id"])
		assert.Equal(t, root.ID, lines[0]["parent_id"])
	})

	t.Run("zap", func(t *testing.T) {
		observed, logs := observer.New(zapcore.DebugLevel)
		ForTask(NewZapAdapter(zap.New(observed)), "mathbot", root).Info("agent.run.start")

		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "mathbot", fields["agent"])
		assert.Equal(t, root.ID, fields["task_id"])
		assert.Equal(t, int64(0), fields["depth"])
		assert.NotContains(t, fields, "parent_id")
	})

	t.Run("custom", func(t *testing.T) {
		rec := &recordingLogger{}
		ForTask(rec, "mathbot", child).Info("agent.run.start", "iterations", 2)

		require.Len(t, rec.args, 1)
		assert.Equal(t, []any{"agent", "mathbot", "task_id", child.ID, "depth", 1, "parent_id", root.ID, "iterations", 2}, rec.args[0])
	})

	t.Run("noop", func(t *testing.T) {
		assert.Equal(t, NoOpLogger{}, ForTask(NoOpLogger{}, "mathbot", root))
	})
}
