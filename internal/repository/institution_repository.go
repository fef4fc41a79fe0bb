package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skipd/skipd-api/internal/models"
)

// InstitutionRepository handles persistence for institutions.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository creates a new repository instance.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

const institutionColumns = `id, name, absence_limit, user_id, created_at, updated_at`

// FindByID returns an institution by id.
func (r *InstitutionRepository) FindByID(ctx context.Context, id int64) (*models.Institution, error) {
	query := fmt.Sprintf(`SELECT %s FROM institutions WHERE id = $1 LIMIT 1`, institutionColumns)
	var institution models.Institution
	if err := r.db.GetContext(ctx, &institution, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find institution by id: %w", err)
	}
	return &institution, nil
}

// ListByUser returns every institution owned by the given user.
func (r *InstitutionRepository) ListByUser(ctx context.Context, userID int64) ([]models.Institution, error) {
	query := fmt.Sprintf(`SELECT %s FROM institutions WHERE user_id = $1 ORDER BY created_at ASC`, institutionColumns)
	var institutions []models.Institution
	if err := r.db.SelectContext(ctx, &institutions, query, userID); err != nil {
		return nil, fmt.Errorf("list institutions by user: %w", err)
	}
	return institutions, nil
}

// Create persists a new institution and assigns its generated id.
func (r *InstitutionRepository) Create(ctx context.Context, institution *models.Institution) error {
	now := time.Now().UTC()
	institution.CreatedAt = now
	institution.UpdatedAt = now

	const query = `INSERT INTO institutions (name, absence_limit, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &institution.ID, query,
		institution.Name, institution.AbsenceLimit, institution.UserID, institution.CreatedAt, institution.UpdatedAt); err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// UpdateFields applies a changeset to an institution row and reports whether
// the row existed. The user_id column is never part of a changeset.
func (r *InstitutionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	query, args := buildPartialUpdate("institutions", id, fields)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update institution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update institution rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes an institution and its subjects in one transaction. It
// reports whether the institution existed.
func (r *InstitutionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin institution delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE institution_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete institution subjects: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM institutions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete institution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete institution rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit institution delete: %w", err)
	}
	return affected > 0, nil
}
