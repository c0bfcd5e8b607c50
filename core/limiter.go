package core

import "sync"

// IterationBudget enforces the maximum number of reasoning/acting cycles of a
// single agent run.
type IterationBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationBudget creates a budget allowing max cycles.
// If max == 0, unlimited cycles are allowed.
func NewIterationBudget(max int) *IterationBudget {
	return &IterationBudget{max: max}
}

// Next consumes one cycle and returns a *BudgetExceededError once the cap has
// already been used up.
func (b *IterationBudget) Next() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.count >= b.max {
		return &BudgetExceededError{Iterations: b.count}
	}

	b.count++

	return nil
}

// Count returns the number of cycles consumed so far.
func (b *IterationBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many cycles are left before hitting the cap.
func (b *IterationBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1 // unlimited
	}

	return b.max - b.count
}
