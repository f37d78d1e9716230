package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the recurrence interval of a template.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringTransaction is a standing instruction to materialize a concrete
// transaction on a schedule.
type RecurringTransaction struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	Type              TransactionType `json:"type"`
	CategoryID        NullInt64       `json:"category_id"`
	Frequency         Frequency       `json:"frequency"`
	StartDate         string          `json:"start_date"` // YYYY-MM-DD
	EndDate           string          `json:"end_date,omitempty"`
	NextExecutionDate string          `json:"next_execution_date"`
	IsActive          bool            `json:"is_active"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (r *RecurringTransaction) Create(db *sql.DB) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	query := `
	INSERT INTO recurring_transactions (user_id, description, amount, currency, type, category_id, frequency, start_date, end_date, next_execution_date, is_active, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		r.UserID, r.Description, r.Amount.StringFixed(2), nullableString(r.Currency),
		r.Type, r.CategoryID, r.Frequency, r.StartDate, nullableString(r.EndDate),
		r.NextExecutionDate, r.IsActive, nullableString(r.Notes),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func scanRecurring(scanner interface {
	Scan(dest ...interface{}) error
}) (*RecurringTransaction, error) {
	var r RecurringTransaction
	var currency, endDate, notes sql.NullString
	var amount string
	err := scanner.Scan(
		&r.ID, &r.UserID, &r.Description, &amount, &currency, &r.Type,
		&r.CategoryID, &r.Frequency, &r.StartDate, &endDate,
		&r.NextExecutionDate, &r.IsActive, &notes,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	r.Currency = currency.String
	r.EndDate = endDate.String
	r.Notes = notes.String
	return &r, nil
}

const recurringColumns = `id, user_id, description, amount, currency, type, category_id, frequency, start_date, end_date, next_execution_date, is_active, notes, created_at, updated_at`

func GetRecurringByID(db *sql.DB, id, userID int64) (*RecurringTransaction, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE id = ? AND user_id = ?`
	r, err := scanRecurring(db.QueryRow(query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return r, nil
}

func ListRecurring(db *sql.DB, userID int64, isActive *bool) ([]RecurringTransaction, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE user_id = ?`
	args := []interface{}{userID}
	if isActive != nil {
		query += " AND is_active = ?"
		args = append(args, *isActive)
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []RecurringTransaction{}
	}
	return templates, nil
}

// ListRecurringDue returns active templates due on or before the given date,
// ordered by owner then id so a due pass is deterministic.
func ListRecurringDue(tx *sql.Tx, date string) ([]RecurringTransaction, error) {
	rows, err := tx.Query(`
		SELECT `+recurringColumns+`
		FROM recurring_transactions
		WHERE is_active = TRUE AND next_execution_date <= ?
		ORDER BY user_id, id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *r)
	}
	return templates, rows.Err()
}

func (r *RecurringTransaction) Update(db *sql.DB) error {
	r.UpdatedAt = time.Now()

	query := `
	UPDATE recurring_transactions
	SET description = ?, amount = ?, currency = ?, type = ?, category_id = ?, frequency = ?, start_date = ?, end_date = ?, next_execution_date = ?, is_active = ?, notes = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		r.Description, r.Amount.StringFixed(2), nullableString(r.Currency),
		r.Type, r.CategoryID, r.Frequency, r.StartDate, nullableString(r.EndDate),
		r.NextExecutionDate, r.IsActive, nullableString(r.Notes),
		r.UpdatedAt, r.ID, r.UserID,
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

func DeleteRecurring(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID)
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
