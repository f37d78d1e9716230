package model

import (
	"database/sql"
	"errors"
	"time"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	return t == TypeIncome || t == TypeExpense
}

type Category struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      TransactionType `json:"type"`
	Color     string          `json:"color,omitempty"`
	Icon      string          `json:"icon,omitempty"`
	IsDefault bool            `json:"is_default"`
	UserID    NullInt64       `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func scanCategory(scanner interface {
	Scan(dest ...interface{}) error
}) (*Category, error) {
	var c Category
	var color, icon sql.NullString
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Type, &color, &icon, &c.IsDefault, &c.UserID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Color = color.String
	c.Icon = icon.String
	return &c, nil
}

// ListCategories returns default categories plus the user's own,
// optionally filtered by type.
func ListCategories(db *sql.DB, userID int64, categoryType string) ([]Category, error) {
	query := `
	SELECT id, name, type, color, icon, is_default, user_id, created_at, updated_at
	FROM categories
	WHERE (is_default = TRUE OR user_id = ?)`
	args := []interface{}{userID}

	if categoryType != "" {
		query += " AND type = ?"
		args = append(args, categoryType)
	}
	query += " ORDER BY is_default DESC, name"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func GetCategoryByID(db *sql.DB, id int64) (*Category, error) {
	query := `
	SELECT id, name, type, color, icon, is_default, user_id, created_at, updated_at
	FROM categories
	WHERE id = ?`
	c, err := scanCategory(db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return c, nil
}

// CategoryVisibleToUser reports whether the category exists and is either a
// default category or owned by the given user.
func CategoryVisibleToUser(db *sql.DB, categoryID, userID int64) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(1) FROM categories
		WHERE id = ? AND (is_default = TRUE OR user_id = ?)`,
		categoryID, userID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
