package scheduler

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newSchedulerTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
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
	);`)
	require.NoError(t, err)
	return db
}

func TestNotifyDoesNotBlock(t *testing.T) {
	s := New(services.NewRecurringService(newSchedulerTestDB(t)), time.Hour)

	done := make(chan struct{})
	go func() {
		// Repeated notifications without a running loop must not block.
		s.Notify()
		s.Notify()
		s.Notify()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s := New(services.NewRecurringService(newSchedulerTestDB(t)), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestNotifyTriggersImmediatePass(t *testing.T) {
	db := newSchedulerTestDB(t)
	svc := services.NewRecurringService(db)

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	_, err := db.Exec(`
		INSERT INTO recurring_transactions
			(user_id, description, amount, type, frequency, start_date, next_execution_date, is_active, created_at, updated_at)
		VALUES (1, 'Mensalidade', ?, 'expense', 'monthly', ?, ?, TRUE, ?, ?)`,
		decimal.RequireFromString("120.00").StringFixed(2), yesterday, yesterday, time.Now(), time.Now())
	require.NoError(t, err)

	s := New(svc, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Notify()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
		if count == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Fail(t, "notified pass did not materialize the due transaction")
}
