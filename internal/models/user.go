package models

import "time"

// User represents an account stored in the users table. A user owns zero or
// more institutions; deleting a user removes its institutions and their
// subjects.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsPremium    bool      `db:"is_premium" json:"is_premium"`
	PhotoURL     string    `db:"photo_url" json:"photo_url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
