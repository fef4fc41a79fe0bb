package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skipd/skipd-api/internal/models"
)

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = `id, name, required_hours, absence_count, status,
	classes_sunday, classes_monday, classes_tuesday, classes_wednesday,
	classes_thursday, classes_friday, classes_saturday,
	institution_id, created_at, updated_at`

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE id = $1 LIMIT 1`, subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// ListByInstitution returns every subject under the given institution.
func (r *SubjectRepository) ListByInstitution(ctx context.Context, institutionID int64) ([]models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE institution_id = $1 ORDER BY created_at ASC`, subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, institutionID); err != nil {
		return nil, fmt.Errorf("list subjects by institution: %w", err)
	}
	return subjects, nil
}

// OwnerOf resolves a subject's ownership chain with a single join, returning
// the parent institution id and its owning user id. sql.ErrNoRows means the
// subject or its institution is gone.
func (r *SubjectRepository) OwnerOf(ctx context.Context, subjectID int64) (*models.SubjectOwner, error) {
	const query = `SELECT i.id AS institution_id, i.user_id AS owner_user_id
		FROM subjects s JOIN institutions i ON i.id = s.institution_id
		WHERE s.id = $1 LIMIT 1`
	var owner models.SubjectOwner
	if err := r.db.GetContext(ctx, &owner, query, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("resolve subject owner: %w", err)
	}
	return &owner, nil
}

// Create persists a new subject and assigns its generated id.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (name, required_hours, absence_count, status,
			classes_sunday, classes_monday, classes_tuesday, classes_wednesday,
			classes_thursday, classes_friday, classes_saturday,
			institution_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	if err := r.db.GetContext(ctx, &subject.ID, query,
		subject.Name, subject.RequiredHours, subject.AbsenceCount, subject.Status,
		subject.ClassesSun, subject.ClassesMon, subject.ClassesTue, subject.ClassesWed,
		subject.ClassesThu, subject.ClassesFri, subject.ClassesSat,
		subject.InstitutionID, subject.CreatedAt, subject.UpdatedAt); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// UpdateFields applies a changeset to a subject row and reports whether the
// row existed. The institution_id column is never part of a changeset.
func (r *SubjectRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	query, args := buildPartialUpdate("subjects", id, fields)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update subject rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a subject record and reports whether it existed.
func (r *SubjectRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subject rows: %w", err)
	}
	return affected > 0, nil
}
