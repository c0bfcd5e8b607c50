package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterationBudget(t *testing.T) {
	b := NewIterationBudget(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Next())
	}
	assert.Equal(t, 3, b.Count())
	assert.Equal(t, 0, b.Remaining())

	err := b.Next()
	var budget *BudgetExceededError
	require.ErrorAs(t, err, &budget)
	assert.Equal(t, 3, budget.Iterations)
	assert.Equal(t, 3, b.Count())
}

func TestIterationBudget_Unlimited(t *testing.T) {
	b := NewIterationBudget(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Next())
	}
	assert.Equal(t, -1, b.Remaining())
}
