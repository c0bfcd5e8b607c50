package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlite/core"
)

func TestMemory_AppendAndRead(t *testing.T) {
	m := New("What is 2+2?")
	assert.Equal(t, "What is 2+2?", m.Task())
	assert.Equal(t, 0, m.Len())

	_, ok := m.Last()
	assert.False(t, ok)

	m.Append(core.ModelTurn("Action: calculator(expr=\"2+2\")"))
	m.Append(core.ActionTurn(`calculator(expr="2+2")`), core.ObservationTurn("4"))

	require.Equal(t, 3, m.Len())
	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, core.RoleObservation, last.Role)
	assert.Equal(t, 1, m.Count(core.RoleModel))

	turns := m.Turns()
	turns[0].Content = "mutated"
	assert.NotEqual(t, "mutated", m.Turns()[0].Content)
}

func TestMemory_Window(t *testing.T) {
	m := New("task")
	for i := 0; i < 5; i++ {
		m.Append(core.ObservationTurn(fmt.Sprint(i)))
	}

	w := m.Window(2)
	require.Len(t, w, 2)
	assert.Equal(t, "3", w[0].Content)
	assert.Equal(t, "4", w[1].Content)

	assert.Len(t, m.Window(0), 5)
	assert.Len(t, m.Window(10), 5)
}

func TestMemory_Reset(t *testing.T) {
	m := New("task")
	m.Append(core.ModelTurn("alpha"), core.ModelTurn("beta"), core.ModelTurn("alphabet"))

	m.Reset()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "task", m.Task())
}

func TestMemory_Transcript(t *testing.T) {
	m := New("say hi")
	m.Append(core.ModelTurn("hi"))

	assert.Equal(t, "Task: say hi\nmodel: hi", m.Transcript())
}

func TestMemory_ConcurrentReaders(t *testing.T) {
	m := New("task")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			m.Append(core.ModelTurn("x"))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = m.Turns()
				_ = m.Len()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
}
