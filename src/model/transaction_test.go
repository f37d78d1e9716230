package model

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTx(t *testing.T, db *sql.DB, userID int64, amount, date string, txType TransactionType, categoryID int64) *Transaction {
	t.Helper()
	tx := &Transaction{
		UserID:      userID,
		Description: "seed",
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Type:        txType,
	}
	if categoryID != 0 {
		tx.CategoryID = ValidInt64(categoryID)
	}
	require.NoError(t, tx.Create(db))
	return tx
}

func TestListTransactionsFilters(t *testing.T) {
	db := newTestDB(t)

	seedTx(t, db, 1, "100.00", "2024-01-05", TypeIncome, 0)
	seedTx(t, db, 1, "50.00", "2024-01-10", TypeExpense, 3)
	seedTx(t, db, 1, "25.00", "2024-02-01", TypeExpense, 3)
	seedTx(t, db, 2, "999.00", "2024-01-10", TypeExpense, 3)

	byType, err := ListTransactions(db, 1, TransactionFilter{Type: "expense"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	byWindow, err := ListTransactions(db, 1, TransactionFilter{StartDate: "2024-01-01", EndDate: "2024-01-31"})
	require.NoError(t, err)
	assert.Len(t, byWindow, 2)

	byCategory, err := ListTransactions(db, 1, TransactionFilter{CategoryID: 3})
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	count, err := CountTransactions(db, 1, TransactionFilter{Type: "expense"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListTransactionsOrderedNewestFirst(t *testing.T) {
	db := newTestDB(t)

	seedTx(t, db, 1, "10.00", "2024-01-01", TypeExpense, 0)
	seedTx(t, db, 1, "20.00", "2024-03-01", TypeExpense, 0)
	seedTx(t, db, 1, "30.00", "2024-02-01", TypeExpense, 0)

	list, err := ListTransactions(db, 1, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-03-01", list[0].Date)
	assert.Equal(t, "2024-02-01", list[1].Date)
	assert.Equal(t, "2024-01-01", list[2].Date)
}

func TestTransactionAmountStoredWithTwoDecimals(t *testing.T) {
	db := newTestDB(t)

	tx := seedTx(t, db, 1, "19.9", "2024-01-05", TypeExpense, 0)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT amount FROM transactions WHERE id = ?`, tx.ID).Scan(&stored))
	assert.Equal(t, "19.90", stored)
}

func TestUpdateTransactionScopedToOwner(t *testing.T) {
	db := newTestDB(t)

	tx := seedTx(t, db, 1, "10.00", "2024-01-01", TypeExpense, 0)

	tx.UserID = 2
	tx.Description = "hijacked"
	err := tx.Update(db)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteTransaction(t *testing.T) {
	db := newTestDB(t)

	tx := seedTx(t, db, 1, "10.00", "2024-01-01", TypeExpense, 0)

	assert.ErrorIs(t, DeleteTransaction(db, tx.ID, 2), sql.ErrNoRows)
	require.NoError(t, DeleteTransaction(db, tx.ID, 1))
	assert.ErrorIs(t, DeleteTransaction(db, tx.ID, 1), sql.ErrNoRows)
}
