package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skipd/skipd-api/internal/models"
)

// UserRepository provides database access for user accounts and their
// refresh token sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, is_premium, photo_url, created_at, updated_at`

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// ExistsByEmail checks email uniqueness, optionally excluding one user id.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check user email: %w", err)
	}
	return true, nil
}

// Create persists a new user and assigns its generated id.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `INSERT INTO users (name, email, password_hash, is_premium, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.GetContext(ctx, &user.ID, query,
		user.Name, user.Email, user.PasswordHash, user.IsPremium, user.PhotoURL, user.CreatedAt, user.UpdatedAt); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateFields applies a changeset of column→value pairs to a user row.
// It reports whether the row existed.
func (r *UserRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	query, args := buildPartialUpdate("users", id, fields)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update user rows: %w", err)
	}
	return affected > 0, nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes a user together with all owned institutions and their
// subjects in a single transaction. It reports whether the user existed.
func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin user delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subjects WHERE institution_id IN (SELECT id FROM institutions WHERE user_id = $1)`, id); err != nil {
		return false, fmt.Errorf("delete user subjects: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM institutions WHERE user_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete user institutions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit user delete: %w", err)
	}
	return affected > 0, nil
}

// CreateRefreshToken persists a refresh token session.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, ip_address, user_agent)
		VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken loads a refresh token by its opaque value.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
		FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var stored models.RefreshToken
	if err := r.db.GetContext(ctx, &stored, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &stored, nil
}

// RevokeRefreshToken marks a single refresh token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every active session of a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// buildPartialUpdate renders an UPDATE statement touching only the supplied
// columns. Columns are sorted so the generated SQL is deterministic.
func buildPartialUpdate(table string, id int64, fields map[string]interface{}) (string, []interface{}) {
	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+2)
	args = append(args, id)
	for _, column := range columns {
		args = append(args, fields[column])
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	args = append(args, time.Now().UTC())
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(args)))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(assignments, ", "))
	return query, args
}
