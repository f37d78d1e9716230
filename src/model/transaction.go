package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID                     int64           `json:"id"`
	UserID                 int64           `json:"user_id"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency,omitempty"`
	Date                   string          `json:"date"` // YYYY-MM-DD
	Type                   TransactionType `json:"type"`
	CategoryID             NullInt64       `json:"category_id"`
	Notes                  string          `json:"notes,omitempty"`
	IsRecurring            bool            `json:"is_recurring"`
	RecurringTransactionID NullInt64       `json:"recurring_transaction_id"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// TransactionFilter narrows ListTransactions results. Zero values mean "no filter".
type TransactionFilter struct {
	Type       string
	CategoryID int64
	StartDate  string // YYYY-MM-DD, inclusive
	EndDate    string // YYYY-MM-DD, inclusive
	Limit      int
	Offset     int
}

func (t *Transaction) Create(db *sql.DB) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
	INSERT INTO transactions (user_id, description, amount, currency, date, type, category_id, notes, is_recurring, recurring_transaction_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		t.UserID, t.Description, t.Amount.StringFixed(2), nullableString(t.Currency),
		t.Date, t.Type, t.CategoryID, nullableString(t.Notes),
		t.IsRecurring, t.RecurringTransactionID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func scanTransaction(scanner interface {
	Scan(dest ...interface{}) error
}) (*Transaction, error) {
	var tx Transaction
	var currency, notes sql.NullString
	var amount string
	err := scanner.Scan(
		&tx.ID, &tx.UserID, &tx.Description, &amount, &currency, &tx.Date, &tx.Type,
		&tx.CategoryID, &notes, &tx.IsRecurring, &tx.RecurringTransactionID,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	tx.Currency = currency.String
	tx.Notes = notes.String
	return &tx, nil
}

const transactionColumns = `id, user_id, description, amount, currency, date, type, category_id, notes, is_recurring, recurring_transaction_id, created_at, updated_at`

func GetTransactionByID(db *sql.DB, id, userID int64) (*Transaction, error) {
	query := `
	SELECT ` + transactionColumns + `
	FROM transactions
	WHERE id = ? AND user_id = ?`
	tx, err := scanTransaction(db.QueryRow(query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return tx, nil
}

func ListTransactions(db *sql.DB, userID int64, filter TransactionFilter) ([]Transaction, error) {
	query := `
	SELECT ` + transactionColumns + `
	FROM transactions
	WHERE user_id = ?`
	args := []interface{}{userID}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.CategoryID != 0 {
		query += " AND category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	return transactions, nil
}

func CountTransactions(db *sql.DB, userID int64, filter TransactionFilter) (int, error) {
	query := `SELECT COUNT(1) FROM transactions WHERE user_id = ?`
	args := []interface{}{userID}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.CategoryID != 0 {
		query += " AND category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}

	var count int
	err := db.QueryRow(query, args...).Scan(&count)
	return count, err
}

func (t *Transaction) Update(db *sql.DB) error {
	t.UpdatedAt = time.Now()

	query := `
	UPDATE transactions
	SET description = ?, amount = ?, currency = ?, date = ?, type = ?, category_id = ?, notes = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		t.Description, t.Amount.StringFixed(2), nullableString(t.Currency), t.Date,
		t.Type, t.CategoryID, nullableString(t.Notes), t.UpdatedAt, t.ID, t.UserID,
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

func DeleteTransaction(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
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

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
