package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/plutusgrip/backend/src/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportService(t *testing.T) (*ReportService, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewReportService(db, cache.New(DefaultCacheExpiration, CacheCleanupInterval)), db
}

func seedTransaction(t *testing.T, db *sql.DB, userID int64, amount, date string, txType model.TransactionType, categoryID int64) {
	t.Helper()
	tx := &model.Transaction{
		UserID:      userID,
		Description: "test",
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Type:        txType,
	}
	if categoryID != 0 {
		tx.CategoryID = model.ValidInt64(categoryID)
	}
	require.NoError(t, tx.Create(db))
}

func TestGetDashboardSummary(t *testing.T) {
	svc, db := newTestReportService(t)

	seedTransaction(t, db, 1, "3000.00", "2024-02-01", model.TypeIncome, 0)
	seedTransaction(t, db, 1, "450.50", "2024-02-05", model.TypeExpense, 0)
	seedTransaction(t, db, 1, "120.00", "2024-02-10", model.TypeExpense, 0)
	// Another user's data must not leak in.
	seedTransaction(t, db, 2, "999.00", "2024-02-01", model.TypeIncome, 0)

	summary, err := svc.GetDashboardSummary(1)
	require.NoError(t, err)

	assert.True(t, summary.TotalIncome.Equal(decimal.RequireFromString("3000.00")))
	assert.True(t, summary.TotalExpense.Equal(decimal.RequireFromString("570.50")))
	assert.True(t, summary.Balance.Equal(decimal.RequireFromString("2429.50")))
	assert.Equal(t, 3, summary.TransactionCount)
	assert.Equal(t, 1, summary.IncomeCount)
	assert.Equal(t, 2, summary.ExpenseCount)
}

func TestDashboardSummaryCacheInvalidation(t *testing.T) {
	svc, db := newTestReportService(t)

	seedTransaction(t, db, 1, "100.00", "2024-02-01", model.TypeIncome, 0)

	first, err := svc.GetDashboardSummary(1)
	require.NoError(t, err)
	require.True(t, first.TotalIncome.Equal(decimal.RequireFromString("100.00")))

	seedTransaction(t, db, 1, "50.00", "2024-02-02", model.TypeIncome, 0)

	// Still the cached snapshot.
	cached, err := svc.GetDashboardSummary(1)
	require.NoError(t, err)
	assert.True(t, cached.TotalIncome.Equal(decimal.RequireFromString("100.00")))

	svc.InvalidateUserCache(1)

	fresh, err := svc.GetDashboardSummary(1)
	require.NoError(t, err)
	assert.True(t, fresh.TotalIncome.Equal(decimal.RequireFromString("150.00")))
}

func TestGetFinancialSummaryPeriodFiltering(t *testing.T) {
	svc, db := newTestReportService(t)

	_, err := db.Exec(`INSERT INTO categories (name, type, is_default) VALUES ('Alimentação', 'expense', TRUE)`)
	require.NoError(t, err)

	seedTransaction(t, db, 1, "2500.00", "2024-03-01", model.TypeIncome, 0)
	seedTransaction(t, db, 1, "80.00", "2024-03-10", model.TypeExpense, 1)
	seedTransaction(t, db, 1, "60.00", "2024-03-15", model.TypeExpense, 0)
	// Outside the window.
	seedTransaction(t, db, 1, "500.00", "2024-02-28", model.TypeExpense, 0)

	summary, err := svc.GetFinancialSummary(1, "2024-03-01", "2024-03-31")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", summary.PeriodStart)
	assert.Equal(t, "2024-03-31", summary.PeriodEnd)
	assert.True(t, summary.TotalIncome.Equal(decimal.RequireFromString("2500.00")))
	assert.True(t, summary.TotalExpense.Equal(decimal.RequireFromString("140.00")))
	assert.True(t, summary.NetBalance.Equal(decimal.RequireFromString("2360.00")))
	assert.Equal(t, 3, summary.TransactionCount)

	require.Len(t, summary.ExpenseByCategory, 2)
	assert.Equal(t, "Alimentação", summary.ExpenseByCategory[0].CategoryName)
	assert.True(t, summary.ExpenseByCategory[0].Total.Equal(decimal.RequireFromString("80.00")))
	assert.Equal(t, "Sem categoria", summary.ExpenseByCategory[1].CategoryName)

	require.Len(t, summary.DailyTotals, 3)
	assert.Equal(t, "2024-03-01", summary.DailyTotals[0].Date)
	assert.True(t, summary.DailyTotals[0].Income.Equal(decimal.RequireFromString("2500.00")))
}

func TestGetSpendingPatterns(t *testing.T) {
	svc, db := newTestReportService(t)

	recent := time.Now().AddDate(0, 0, -5).Format("2006-01-02")
	seedTransaction(t, db, 1, "300.00", recent, model.TypeExpense, 0)

	patterns, err := svc.GetSpendingPatterns(1)
	require.NoError(t, err)

	assert.True(t, patterns.Last30DaysExpense.Equal(decimal.RequireFromString("300.00")))
	assert.True(t, patterns.DailyAverageExpense.Equal(decimal.RequireFromString("10.00")))
	require.Len(t, patterns.TopCategories, 1)
}

func TestGetMonthlyTrendsSeriesLength(t *testing.T) {
	svc, _ := newTestReportService(t)

	trends, err := svc.GetMonthlyTrends(1, 3)
	require.NoError(t, err)

	assert.Len(t, trends.Income, 3)
	assert.Len(t, trends.Expense, 3)
	assert.Len(t, trends.Balance, 3)
}
