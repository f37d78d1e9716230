package model

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetPeriodIsValid(t *testing.T) {
	assert.True(t, PeriodMonthly.IsValid())
	assert.True(t, PeriodQuarterly.IsValid())
	assert.True(t, PeriodYearly.IsValid())
	assert.False(t, BudgetPeriod("weekly").IsValid())
}

func TestGetBudgetStatus(t *testing.T) {
	db := newTestDB(t)

	budget := &Budget{
		UserID:     1,
		CategoryID: 3,
		Amount:     decimal.RequireFromString("500.00"),
		Period:     PeriodMonthly,
		StartDate:  "2024-03-01",
	}
	require.NoError(t, budget.Create(db))

	for _, amount := range []string{"120.00", "80.00"} {
		tx := &Transaction{
			UserID:      1,
			Description: "compra",
			Amount:      decimal.RequireFromString(amount),
			Date:        "2024-03-10",
			Type:        TypeExpense,
			CategoryID:  ValidInt64(3),
		}
		require.NoError(t, tx.Create(db))
	}
	// Different category, must not count.
	other := &Transaction{
		UserID:      1,
		Description: "outra",
		Amount:      decimal.RequireFromString("999.00"),
		Date:        "2024-03-11",
		Type:        TypeExpense,
		CategoryID:  ValidInt64(4),
	}
	require.NoError(t, other.Create(db))

	status, err := GetBudgetStatus(db, budget.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, budget.ID, status.BudgetID)
	assert.True(t, status.Spent.Equal(decimal.RequireFromString("200.00")))
	assert.True(t, status.Remaining.Equal(decimal.RequireFromString("300.00")))
	assert.InDelta(t, 40.0, status.Percentage, 0.001)
	assert.False(t, status.OverBudget)
}

func TestGetBudgetStatusOverBudget(t *testing.T) {
	db := newTestDB(t)

	budget := &Budget{
		UserID:     1,
		CategoryID: 3,
		Amount:     decimal.RequireFromString("100.00"),
		Period:     PeriodMonthly,
		StartDate:  "2024-03-01",
	}
	require.NoError(t, budget.Create(db))

	tx := &Transaction{
		UserID:      1,
		Description: "estouro",
		Amount:      decimal.RequireFromString("150.00"),
		Date:        "2024-03-10",
		Type:        TypeExpense,
		CategoryID:  ValidInt64(3),
	}
	require.NoError(t, tx.Create(db))

	status, err := GetBudgetStatus(db, budget.ID, 1)
	require.NoError(t, err)

	assert.True(t, status.OverBudget)
	assert.True(t, status.Remaining.IsNegative())
	assert.InDelta(t, 150.0, status.Percentage, 0.001)
}

func TestGetBudgetByIDScopedToUser(t *testing.T) {
	db := newTestDB(t)

	budget := &Budget{
		UserID:     1,
		CategoryID: 3,
		Amount:     decimal.RequireFromString("100.00"),
		Period:     PeriodYearly,
		StartDate:  "2024-01-01",
	}
	require.NoError(t, budget.Create(db))

	_, err := GetBudgetByID(db, budget.ID, 2)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
