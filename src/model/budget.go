package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is the interval a budget amount applies to.
type BudgetPeriod string

const (
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
)

func (p BudgetPeriod) IsValid() bool {
	return p == PeriodMonthly || p == PeriodQuarterly || p == PeriodYearly
}

type Budget struct {
	ID                   int64           `json:"id"`
	UserID               int64           `json:"user_id"`
	CategoryID           int64           `json:"category_id"`
	Amount               decimal.Decimal `json:"amount"`
	Period               BudgetPeriod    `json:"period"`
	StartDate            string          `json:"start_date"` // YYYY-MM-DD
	NotificationsEnabled bool            `json:"notifications_enabled"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// BudgetStatus reports actual spending against a budget's limit.
type BudgetStatus struct {
	BudgetID   int64           `json:"budget_id"`
	CategoryID int64           `json:"category_id"`
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage float64         `json:"percentage"`
	OverBudget bool            `json:"over_budget"`
}

func (b *Budget) Create(db *sql.DB) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Period == "" {
		b.Period = PeriodMonthly
	}

	query := `
	INSERT INTO budgets (user_id, category_id, amount, period, start_date, notifications_enabled, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		b.UserID, b.CategoryID, b.Amount.StringFixed(2), b.Period, b.StartDate,
		b.NotificationsEnabled, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func scanBudget(scanner interface {
	Scan(dest ...interface{}) error
}) (*Budget, error) {
	var b Budget
	var amount string
	err := scanner.Scan(
		&b.ID, &b.UserID, &b.CategoryID, &amount, &b.Period, &b.StartDate,
		&b.NotificationsEnabled, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	return &b, nil
}

func GetBudgetByID(db *sql.DB, id, userID int64) (*Budget, error) {
	query := `
	SELECT id, user_id, category_id, amount, period, start_date, notifications_enabled, created_at, updated_at
	FROM budgets
	WHERE id = ? AND user_id = ?`
	b, err := scanBudget(db.QueryRow(query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return b, nil
}

func ListBudgets(db *sql.DB, userID int64) ([]Budget, error) {
	rows, err := db.Query(`
		SELECT id, user_id, category_id, amount, period, start_date, notifications_enabled, created_at, updated_at
		FROM budgets
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if budgets == nil {
		budgets = []Budget{}
	}
	return budgets, nil
}

func (b *Budget) Update(db *sql.DB) error {
	b.UpdatedAt = time.Now()

	query := `
	UPDATE budgets
	SET category_id = ?, amount = ?, period = ?, start_date = ?, notifications_enabled = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		b.CategoryID, b.Amount.StringFixed(2), b.Period, b.StartDate,
		b.NotificationsEnabled, b.UpdatedAt, b.ID, b.UserID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func DeleteBudget(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetBudgetStatus compares total expense spending in the budget's category
// against its limit.
func GetBudgetStatus(db *sql.DB, id, userID int64) (*BudgetStatus, error) {
	budget, err := GetBudgetByID(db, id, userID)
	if err != nil {
		return nil, err
	}

	var spentStr sql.NullString
	err = db.QueryRow(`
		SELECT SUM(amount) FROM transactions
		WHERE user_id = ? AND category_id = ? AND type = ?`,
		userID, budget.CategoryID, TypeExpense,
	).Scan(&spentStr)
	if err != nil {
		return nil, err
	}

	spent := decimal.Zero
	if spentStr.Valid {
		spent, err = decimal.NewFromString(spentStr.String)
		if err != nil {
			return nil, fmt.Errorf("invalid spent total %q: %w", spentStr.String, err)
		}
	}

	status := &BudgetStatus{
		BudgetID:   budget.ID,
		CategoryID: budget.CategoryID,
		Limit:      budget.Amount,
		Spent:      spent,
		Remaining:  budget.Amount.Sub(spent),
		OverBudget: spent.GreaterThan(budget.Amount),
	}
	if budget.Amount.IsPositive() {
		pct, _ := spent.Div(budget.Amount).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		status.Percentage = pct
	}
	return status, nil
}
