package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Goal struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Deadline      string          `json:"deadline,omitempty"` // YYYY-MM-DD
	Category      string          `json:"category,omitempty"`
	Priority      string          `json:"priority"` // low, medium, high
	IsCompleted   bool            `json:"is_completed"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Progress returns the completion percentage, capped at 100.
func (g *Goal) Progress() float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	pct, _ := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}

func (g *Goal) Create(db *sql.DB) error {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Priority == "" {
		g.Priority = "medium"
	}

	query := `
	INSERT INTO goals (user_id, name, description, target_amount, current_amount, deadline, category, priority, is_completed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		g.UserID, g.Name, nullableString(g.Description),
		g.TargetAmount.StringFixed(2), g.CurrentAmount.StringFixed(2),
		nullableString(g.Deadline), nullableString(g.Category),
		g.Priority, g.IsCompleted, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func scanGoal(scanner interface {
	Scan(dest ...interface{}) error
}) (*Goal, error) {
	var g Goal
	var description, deadline, category sql.NullString
	var target, current string
	err := scanner.Scan(
		&g.ID, &g.UserID, &g.Name, &description, &target, &current,
		&deadline, &category, &g.Priority, &g.IsCompleted,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Description = description.String
	g.Deadline = deadline.String
	g.Category = category.String
	g.TargetAmount, err = decimal.NewFromString(target)
	if err != nil {
		return nil, fmt.Errorf("invalid stored target amount %q: %w", target, err)
	}
	g.CurrentAmount, err = decimal.NewFromString(current)
	if err != nil {
		return nil, fmt.Errorf("invalid stored current amount %q: %w", current, err)
	}
	return &g, nil
}

const goalColumns = `id, user_id, name, description, target_amount, current_amount, deadline, category, priority, is_completed, created_at, updated_at`

func GetGoalByID(db *sql.DB, id, userID int64) (*Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = ? AND user_id = ?`
	g, err := scanGoal(db.QueryRow(query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return g, nil
}

func ListGoals(db *sql.DB, userID int64, isCompleted *bool) ([]Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	args := []interface{}{userID}
	if isCompleted != nil {
		query += " AND is_completed = ?"
		args = append(args, *isCompleted)
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []Goal{}
	}
	return goals, nil
}

func (g *Goal) Update(db *sql.DB) error {
	g.UpdatedAt = time.Now()

	query := `
	UPDATE goals
	SET name = ?, description = ?, target_amount = ?, current_amount = ?, deadline = ?, category = ?, priority = ?, is_completed = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		g.Name, nullableString(g.Description),
		g.TargetAmount.StringFixed(2), g.CurrentAmount.StringFixed(2),
		nullableString(g.Deadline), nullableString(g.Category),
		g.Priority, g.IsCompleted, g.UpdatedAt, g.ID, g.UserID,
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

func DeleteGoal(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
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

// AddProgress increments the saved amount and marks the goal completed when
// the target is reached.
func (g *Goal) AddProgress(db *sql.DB, amount decimal.Decimal) error {
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.IsCompleted = true
	}
	return g.Update(db)
}
