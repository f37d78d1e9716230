package services

import (
	"database/sql"
	"os"
	"testing"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// newTestDB opens an in-memory database with the tables the services touch.
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
	CREATE TABLE recurring_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT,
		type TEXT NOT NULL,
		category_id INTEGER,
		frequency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		next_execution_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		notes TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);
	CREATE TABLE whitelist_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ip_address TEXT NOT NULL UNIQUE,
		description TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by INTEGER,
		expires_at DATETIME,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);`

	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}
