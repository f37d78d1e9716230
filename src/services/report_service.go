package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/shopspring/decimal"
)

const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

// ReportService aggregates transaction data for dashboards and summaries.
// Results for the heavier queries are cached per user and invalidated on
// any transaction write.
type ReportService struct {
	db          *sql.DB
	reportCache *cache.Cache
}

func NewReportService(db *sql.DB, reportCache *cache.Cache) *ReportService {
	return &ReportService{db: db, reportCache: reportCache}
}

type DashboardSummary struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transaction_count"`
	IncomeCount      int             `json:"income_count"`
	ExpenseCount     int             `json:"expense_count"`
}

type CategoryTotal struct {
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

type DailyTotal struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type FinancialSummary struct {
	PeriodStart       string          `json:"period_start"`
	PeriodEnd         string          `json:"period_end"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpense      decimal.Decimal `json:"total_expense"`
	NetBalance        decimal.Decimal `json:"net_balance"`
	TransactionCount  int             `json:"transaction_count"`
	IncomeByCategory  []CategoryTotal `json:"income_by_category"`
	ExpenseByCategory []CategoryTotal `json:"expense_by_category"`
	DailyTotals       []DailyTotal    `json:"daily_totals"`
}

type MonthlyPoint struct {
	Month string          `json:"month"` // e.g. "Jan/2024"
	Value decimal.Decimal `json:"value"`
}

type MonthlyTrends struct {
	Income  []MonthlyPoint `json:"income"`
	Expense []MonthlyPoint `json:"expense"`
	Balance []MonthlyPoint `json:"balance"`
}

type SpendingPatterns struct {
	TopCategories       []CategoryTotal `json:"top_categories"`
	DailyAverageExpense decimal.Decimal `json:"daily_average_expense"`
	Last30DaysExpense   decimal.Decimal `json:"last_30_days_expense"`
}

func dashboardCacheKey(userID int64) string {
	return fmt.Sprintf("dashboard_%d", userID)
}

// InvalidateUserCache drops cached report data for a user. Called after any
// transaction write.
func (s *ReportService) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(dashboardCacheKey(userID))
}

func (s *ReportService) sumAmount(userID int64, txType model.TransactionType, startDate, endDate string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ? AND type = ?`
	args := []interface{}{userID, txType}
	if startDate != "" {
		query += " AND date >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND date <= ?"
		args = append(args, endDate)
	}

	var total string
	if err := s.db.QueryRow(query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}

func (s *ReportService) countTransactions(userID int64, txType model.TransactionType) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM transactions WHERE user_id = ? AND type = ?`,
		userID, txType,
	).Scan(&count)
	return count, err
}

// GetDashboardSummary returns overall totals and counts for a user,
// serving from cache when fresh.
func (s *ReportService) GetDashboardSummary(userID int64) (*DashboardSummary, error) {
	if cached, found := s.reportCache.Get(dashboardCacheKey(userID)); found {
		if summary, ok := cached.(*DashboardSummary); ok {
			return summary, nil
		}
	}

	totalIncome, err := s.sumAmount(userID, model.TypeIncome, "", "")
	if err != nil {
		return nil, err
	}
	totalExpense, err := s.sumAmount(userID, model.TypeExpense, "", "")
	if err != nil {
		return nil, err
	}
	incomeCount, err := s.countTransactions(userID, model.TypeIncome)
	if err != nil {
		return nil, err
	}
	expenseCount, err := s.countTransactions(userID, model.TypeExpense)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		TotalIncome:      totalIncome,
		TotalExpense:     totalExpense,
		Balance:          totalIncome.Sub(totalExpense),
		TransactionCount: incomeCount + expenseCount,
		IncomeCount:      incomeCount,
		ExpenseCount:     expenseCount,
	}
	s.reportCache.Set(dashboardCacheKey(userID), summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *ReportService) totalsByCategory(userID int64, txType model.TransactionType, startDate, endDate string) ([]CategoryTotal, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(t.category_id, 0), COALESCE(c.name, 'Sem categoria'), SUM(t.amount), COUNT(1)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.type = ? AND t.date >= ? AND t.date <= ?
		GROUP BY t.category_id, c.name
		ORDER BY SUM(t.amount) DESC`,
		userID, txType, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		var total string
		if err := rows.Scan(&ct.CategoryID, &ct.CategoryName, &total, &ct.Count); err != nil {
			return nil, err
		}
		if ct.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		totals = append(totals, ct)
	}
	if totals == nil {
		totals = []CategoryTotal{}
	}
	return totals, rows.Err()
}

func (s *ReportService) dailyTotals(userID int64, startDate, endDate string) ([]DailyTotal, error) {
	rows, err := s.db.Query(`
		SELECT date,
		       COALESCE(SUM(CASE WHEN type = 'income' THEN amount END), 0),
		       COALESCE(SUM(CASE WHEN type = 'expense' THEN amount END), 0)
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?
		GROUP BY date
		ORDER BY date`,
		userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var dt DailyTotal
		var income, expense string
		if err := rows.Scan(&dt.Date, &income, &expense); err != nil {
			return nil, err
		}
		if dt.Income, err = decimal.NewFromString(income); err != nil {
			return nil, err
		}
		if dt.Expense, err = decimal.NewFromString(expense); err != nil {
			return nil, err
		}
		totals = append(totals, dt)
	}
	if totals == nil {
		totals = []DailyTotal{}
	}
	return totals, rows.Err()
}

// GetFinancialSummary returns the detailed summary for a period. Empty
// dates default to the current month up to today.
func (s *ReportService) GetFinancialSummary(userID int64, startDate, endDate string) (*FinancialSummary, error) {
	now := time.Now()
	if startDate == "" {
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(dateLayout)
	}
	if endDate == "" {
		endDate = now.Format(dateLayout)
	}

	totalIncome, err := s.sumAmount(userID, model.TypeIncome, startDate, endDate)
	if err != nil {
		return nil, err
	}
	totalExpense, err := s.sumAmount(userID, model.TypeExpense, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var txCount int
	err = s.db.QueryRow(`
		SELECT COUNT(1) FROM transactions WHERE user_id = ? AND date >= ? AND date <= ?`,
		userID, startDate, endDate,
	).Scan(&txCount)
	if err != nil {
		return nil, err
	}

	incomeByCat, err := s.totalsByCategory(userID, model.TypeIncome, startDate, endDate)
	if err != nil {
		return nil, err
	}
	expenseByCat, err := s.totalsByCategory(userID, model.TypeExpense, startDate, endDate)
	if err != nil {
		return nil, err
	}
	daily, err := s.dailyTotals(userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	return &FinancialSummary{
		PeriodStart:       startDate,
		PeriodEnd:         endDate,
		TotalIncome:       totalIncome,
		TotalExpense:      totalExpense,
		NetBalance:        totalIncome.Sub(totalExpense),
		TransactionCount:  txCount,
		IncomeByCategory:  incomeByCat,
		ExpenseByCategory: expenseByCat,
		DailyTotals:       daily,
	}, nil
}

// GetCategoryBreakdown returns per-category totals of one type for a period,
// defaulting to the current month.
func (s *ReportService) GetCategoryBreakdown(userID int64, txType model.TransactionType, startDate, endDate string) ([]CategoryTotal, error) {
	now := time.Now()
	if startDate == "" {
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(dateLayout)
	}
	if endDate == "" {
		endDate = now.Format(dateLayout)
	}
	return s.totalsByCategory(userID, txType, startDate, endDate)
}

// GetMonthlyTrends returns income/expense/balance series for the last n
// calendar months, oldest first.
func (s *ReportService) GetMonthlyTrends(userID int64, months int) (*MonthlyTrends, error) {
	if months <= 0 {
		months = 6
	}

	trends := &MonthlyTrends{
		Income:  []MonthlyPoint{},
		Expense: []MonthlyPoint{},
		Balance: []MonthlyPoint{},
	}

	now := time.Now()
	for i := months - 1; i >= 0; i-- {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		var monthEnd time.Time
		if i == 0 {
			monthEnd = now
		} else {
			monthEnd = monthStart.AddDate(0, 1, -1)
		}

		income, err := s.sumAmount(userID, model.TypeIncome, monthStart.Format(dateLayout), monthEnd.Format(dateLayout))
		if err != nil {
			return nil, err
		}
		expense, err := s.sumAmount(userID, model.TypeExpense, monthStart.Format(dateLayout), monthEnd.Format(dateLayout))
		if err != nil {
			return nil, err
		}

		label := monthStart.Format("Jan/2006")
		trends.Income = append(trends.Income, MonthlyPoint{Month: label, Value: income})
		trends.Expense = append(trends.Expense, MonthlyPoint{Month: label, Value: expense})
		trends.Balance = append(trends.Balance, MonthlyPoint{Month: label, Value: income.Sub(expense)})
	}

	return trends, nil
}

// GetSpendingPatterns returns the top expense categories and averages for
// the last 30 days.
func (s *ReportService) GetSpendingPatterns(userID int64) (*SpendingPatterns, error) {
	now := time.Now()
	thirtyDaysAgo := now.AddDate(0, 0, -30).Format(dateLayout)
	today := now.Format(dateLayout)

	topCategories, err := s.totalsByCategory(userID, model.TypeExpense, thirtyDaysAgo, today)
	if err != nil {
		return nil, err
	}
	if len(topCategories) > 5 {
		topCategories = topCategories[:5]
	}

	last30, err := s.sumAmount(userID, model.TypeExpense, thirtyDaysAgo, today)
	if err != nil {
		return nil, err
	}

	patterns := &SpendingPatterns{
		TopCategories:       topCategories,
		Last30DaysExpense:   last30,
		DailyAverageExpense: last30.Div(decimal.NewFromInt(30)).Round(2),
	}

	logger.L.Debug("Spending patterns computed", "userID", userID, "topCategories", len(topCategories))
	return patterns, nil
}
