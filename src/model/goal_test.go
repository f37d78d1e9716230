package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalProgress(t *testing.T) {
	goal := &Goal{
		TargetAmount:  decimal.RequireFromString("1000.00"),
		CurrentAmount: decimal.RequireFromString("250.00"),
	}
	assert.InDelta(t, 25.0, goal.Progress(), 0.001)

	// Overshoot caps at 100.
	goal.CurrentAmount = decimal.RequireFromString("1500.00")
	assert.InDelta(t, 100.0, goal.Progress(), 0.001)

	// Zero target never divides.
	goal.TargetAmount = decimal.Zero
	assert.Zero(t, goal.Progress())
}

func TestGoalAddProgressMarksCompleted(t *testing.T) {
	db := newTestDB(t)

	goal := &Goal{
		UserID:        1,
		Name:          "Reserva de emergência",
		TargetAmount:  decimal.RequireFromString("1000.00"),
		CurrentAmount: decimal.RequireFromString("900.00"),
		Priority:      "high",
	}
	require.NoError(t, goal.Create(db))

	require.NoError(t, goal.AddProgress(db, decimal.RequireFromString("150.00")))
	assert.True(t, goal.IsCompleted)
	assert.True(t, goal.CurrentAmount.Equal(decimal.RequireFromString("1050.00")))

	stored, err := GetGoalByID(db, goal.ID, 1)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.True(t, stored.CurrentAmount.Equal(decimal.RequireFromString("1050.00")))
}

func TestListGoalsCompletionFilter(t *testing.T) {
	db := newTestDB(t)

	done := &Goal{
		UserID:        1,
		Name:          "Concluída",
		TargetAmount:  decimal.RequireFromString("100.00"),
		CurrentAmount: decimal.RequireFromString("100.00"),
		Priority:      "low",
		IsCompleted:   true,
	}
	require.NoError(t, done.Create(db))

	open := &Goal{
		UserID:       1,
		Name:         "Em andamento",
		TargetAmount: decimal.RequireFromString("500.00"),
		Priority:     "medium",
	}
	require.NoError(t, open.Create(db))

	completed := true
	goals, err := ListGoals(db, 1, &completed)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Concluída", goals[0].Name)

	completed = false
	goals, err = ListGoals(db, 1, &completed)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Em andamento", goals[0].Name)

	goals, err = ListGoals(db, 1, nil)
	require.NoError(t, err)
	assert.Len(t, goals, 2)
}
