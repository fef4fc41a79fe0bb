package models

import "time"

// Institution groups subjects under a single owning user. UserID is
// authoritative for authorization and never changes after creation.
type Institution struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AbsenceLimit float64   `db:"absence_limit" json:"absence_limit"`
	UserID       int64     `db:"user_id" json:"user_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
