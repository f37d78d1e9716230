package model

import (
	"database/sql"
	"database/sql/driver"
	"strconv"
)

// NullInt64 is an alias for sql.NullInt64 that marshals to a bare number or null.
type NullInt64 sql.NullInt64

func (n NullInt64) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(n.Int64, 10)), nil
}

func (n *NullInt64) Scan(value interface{}) error {
	return (*sql.NullInt64)(n).Scan(value)
}

func (n NullInt64) Value() (driver.Value, error) {
	return sql.NullInt64(n).Value()
}

// ValidInt64 builds a non-null NullInt64.
func ValidInt64(v int64) NullInt64 {
	return NullInt64{Int64: v, Valid: true}
}

// NullTime is an alias for sql.NullTime for better JSON handling.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

func (nt *NullTime) Scan(value interface{}) error {
	return (*sql.NullTime)(nt).Scan(value)
}

func (nt NullTime) Value() (driver.Value, error) {
	return sql.NullTime(nt).Value()
}
