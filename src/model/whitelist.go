package model

import (
	"database/sql"
	"errors"
	"time"
)

// WhitelistEntry is one IP address exempted from rate limiting.
type WhitelistEntry struct {
	ID          int64     `json:"id"`
	IPAddress   string    `json:"ip_address"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   NullInt64 `json:"created_by"`
	ExpiresAt   NullTime  `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsValid reports whether the entry currently exempts its IP: it must be
// active and either carry no expiry or expire in the future.
func (e *WhitelistEntry) IsValid(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.ExpiresAt.Valid && !e.ExpiresAt.Time.After(now) {
		return false
	}
	return true
}

func (e *WhitelistEntry) Create(db *sql.DB) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
	INSERT INTO whitelist_entries (ip_address, description, is_active, created_by, expires_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		e.IPAddress, nullableString(e.Description), e.IsActive,
		e.CreatedBy, e.ExpiresAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func scanWhitelistEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (*WhitelistEntry, error) {
	var e WhitelistEntry
	var description sql.NullString
	err := scanner.Scan(
		&e.ID, &e.IPAddress, &description, &e.IsActive, &e.CreatedBy,
		&e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	return &e, nil
}

const whitelistColumns = `id, ip_address, description, is_active, created_by, expires_at, created_at, updated_at`

func GetWhitelistEntryByID(db *sql.DB, id int64) (*WhitelistEntry, error) {
	query := `SELECT ` + whitelistColumns + ` FROM whitelist_entries WHERE id = ?`
	e, err := scanWhitelistEntry(db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return e, nil
}

func ListWhitelistEntries(db *sql.DB) ([]WhitelistEntry, error) {
	rows, err := db.Query(`
		SELECT ` + whitelistColumns + `
		FROM whitelist_entries
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []WhitelistEntry
	for rows.Next() {
		e, err := scanWhitelistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []WhitelistEntry{}
	}
	return entries, nil
}

// ListValidWhitelistIPs returns the IPs of entries that are active and not
// expired as of now. This derived predicate, not is_active alone, is what
// the cache must hold.
func ListValidWhitelistIPs(db *sql.DB, now time.Time) ([]string, error) {
	rows, err := db.Query(`
		SELECT ip_address FROM whitelist_entries
		WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at > ?)`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

// DeactivateWhitelistEntry soft-deletes an entry by flipping is_active.
func DeactivateWhitelistEntry(db *sql.DB, id int64) error {
	res, err := db.Exec(`
		UPDATE whitelist_entries SET is_active = FALSE, updated_at = ? WHERE id = ?`,
		time.Now(), id)
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

func DeleteWhitelistEntry(db *sql.DB, id int64) error {
	res, err := db.Exec(`DELETE FROM whitelist_entries WHERE id = ?`, id)
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
