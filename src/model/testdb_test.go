package model

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newTestDB opens an in-memory database with the tables the model touches.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);
	CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		category_id INTEGER,
		notes TEXT,
		is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
		recurring_transaction_id INTEGER,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);
	CREATE TABLE budgets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL,
		amount NUMERIC NOT NULL,
		period TEXT NOT NULL,
		start_date TEXT NOT NULL,
		notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);
	CREATE TABLE goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		target_amount NUMERIC NOT NULL,
		current_amount NUMERIC NOT NULL DEFAULT 0,
		deadline TEXT,
		category TEXT,
		priority TEXT NOT NULL DEFAULT 'medium',
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);`

	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}
