package memory

import (
	"strings"
	"sync"

	"github.com/hupe1980/agentlite/core"
)

// Memory is an append-only turn log seeded with a task header. The header is
// part of every rendered context but is not itself a turn.
//
// Concurrency: protected by RWMutex. Readers receive copies.
type Memory struct {
	mu    sync.RWMutex
	task  string
	turns []core.Turn
}

// New creates a memory seeded with the task header, usually the instruction
// of the task package being executed.
func New(task string) *Memory {
	return &Memory{task: task}
}

// Task returns the seeded task header.
func (m *Memory) Task() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.task
}

// Append adds turns in order.
func (m *Memory) Append(turns ...core.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// Turns returns a copy of all turns in insertion order.
func (m *Memory) Turns() []core.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of turns, excluding the task header.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Last returns the most recent turn.
func (m *Memory) Last() (core.Turn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.turns) == 0 {
		return core.Turn{}, false
	}
	return m.turns[len(m.turns)-1], true
}

// Window returns a copy of the last n turns. n <= 0 returns all turns.
func (m *Memory) Window(n int) []core.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if n > 0 && n < len(m.turns) {
		start = len(m.turns) - n
	}
	out := make([]core.Turn, len(m.turns)-start)
	copy(out, m.turns[start:])
	return out
}

// Count returns the number of turns with the given role.
func (m *Memory) Count(role core.Role) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.turns {
		if t.Role == role {
			n++
		}
	}
	return n
}

// Reset drops all turns but keeps the task header.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}

// Transcript renders the header and turns as plain text, one turn per line.
func (m *Memory) Transcript() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(m.task)
	for _, t := range m.turns {
		b.WriteByte('\n')
		b.WriteString(t.String())
	}
	return b.String()
}
